package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"ledgerd/internal/domain"
	"ledgerd/internal/infra/merkle"
	"ledgerd/internal/metrics"
)

// AnchorReceipts stores submitted receipts and commits them under a
// Merkle anchor. Notary publication runs detached from the request
// path: the response never waits for it, and its failure never fails
// the anchor.
type AnchorReceipts struct {
	Receipts domain.ReceiptRepository
	Anchors  domain.AnchorRepository
	Proofs   domain.ProofRepository
	Notary   domain.AnchorNotary

	SignerKID string
	Clock     func() time.Time
	// Detach runs the notary publish; defaults to a goroutine.
	// Overridable so tests can run it inline.
	Detach func(func())
}

func (a *AnchorReceipts) Anchor(ctx context.Context, items []domain.LedgerReceipt) (domain.AnchorRecord, error) {
	if a == nil || a.Receipts == nil || a.Anchors == nil {
		return domain.AnchorRecord{}, errors.New("anchoring requires receipt and anchor repositories")
	}
	if len(items) > 0 {
		if err := a.Receipts.Add(ctx, items); err != nil {
			return domain.AnchorRecord{}, err
		}
		metrics.ReceiptsStored.Add(float64(len(items)))
	}
	return a.anchorStored(ctx, items)
}

// AnchorPending anchors up to limit receipts that are not yet part of
// any anchor. It reports ErrNotFound when nothing is pending.
func (a *AnchorReceipts) AnchorPending(ctx context.Context, limit int) (domain.AnchorRecord, int, error) {
	if a == nil || a.Receipts == nil || a.Anchors == nil {
		return domain.AnchorRecord{}, 0, errors.New("anchoring requires receipt and anchor repositories")
	}
	pending, err := a.Receipts.ListPending(ctx, limit)
	if err != nil {
		return domain.AnchorRecord{}, 0, fmt.Errorf("list pending receipts: %w", err)
	}
	if len(pending) == 0 {
		return domain.AnchorRecord{}, 0, domain.ErrNotFound
	}
	anchor, err := a.anchorStored(ctx, pending)
	if err != nil {
		return domain.AnchorRecord{}, 0, err
	}
	return anchor, len(pending), nil
}

func (a *AnchorReceipts) anchorStored(ctx context.Context, items []domain.LedgerReceipt) (domain.AnchorRecord, error) {
	payloads := make([][]byte, len(items))
	for i, item := range items {
		payloads[i] = item.Payload
	}
	root := merkle.Root(payloads)
	paths := merkle.Paths(payloads)

	anchor := domain.AnchorRecord{
		AnchorID:   merkle.ShortID(root),
		AnchorHash: hex.EncodeToString(root),
		CreatedAt:  a.now().UTC(),
	}
	updates := make([]domain.ReceiptAnchorUpdate, len(items))
	for i, item := range items {
		updates[i] = domain.ReceiptAnchorUpdate{
			ReceiptID:  item.ReceiptID,
			MerklePath: merkleStepsFromPath(paths[i]),
		}
	}
	if err := a.Anchors.CreateWithReceipts(ctx, anchor, updates); err != nil {
		return domain.AnchorRecord{}, err
	}
	metrics.AnchorsCreated.Inc()
	metrics.AnchorBatchSize.Observe(float64(len(items)))

	a.publishDetached(anchor)
	return anchor, nil
}

func (a *AnchorReceipts) publishDetached(anchor domain.AnchorRecord) {
	if a.Notary == nil || !a.Notary.Enabled() {
		return
	}
	detach := a.Detach
	if detach == nil {
		detach = func(fn func()) { go fn() }
	}
	detach(func() {
		// Deliberately not the request context: the caller has long
		// since received its response when retries run.
		ctx := context.Background()
		proof := a.Notary.Publish(ctx, anchor.AnchorID, anchor.AnchorHash, a.SignerKID)
		if proof == nil || a.Proofs == nil {
			return
		}
		if _, err := a.Proofs.Append(ctx, *proof); err != nil {
			log.Printf("persist proof for anchor %s: %v", anchor.AnchorID, err)
		}
	})
}

func (a *AnchorReceipts) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func merkleStepsFromPath(path []merkle.PathStep) []domain.MerkleStep {
	if len(path) == 0 {
		return nil
	}
	steps := make([]domain.MerkleStep, len(path))
	for i, step := range path {
		steps[i] = domain.MerkleStep{
			Hash: hex.EncodeToString(step.Hash),
			Left: step.Left,
		}
	}
	return steps
}
