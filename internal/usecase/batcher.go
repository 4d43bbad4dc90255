package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"ledgerd/internal/domain"
)

// Batcher periodically anchors receipts that accumulated outside an
// explicit anchor call. It is optional; with a zero interval nothing
// runs and anchoring stays purely on-demand.
type Batcher struct {
	Anchorer  *AnchorReceipts
	BatchSize int
	Interval  time.Duration
}

func (b *Batcher) Run(ctx context.Context) {
	if b == nil || b.Anchorer == nil || b.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()
	log.Printf("auto-anchor batcher running: interval=%s batch_size=%d", b.Interval, b.BatchSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

// RunOnce anchors one pending batch if any receipts are waiting.
func (b *Batcher) RunOnce(ctx context.Context) {
	anchor, count, err := b.Anchorer.AnchorPending(ctx, b.BatchSize)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		log.Printf("auto-anchor: %v", err)
	default:
		log.Printf("auto-anchor: committed %d receipts under anchor %s", count, anchor.AnchorID)
	}
}
