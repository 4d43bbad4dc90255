package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"log"

	"ledgerd/internal/domain"
)

// AuditQuery reconstructs the audit bundle for a business operation:
// its digest checkpoints, any receipts that correlate with them, and
// the most recent anchor with all of its external proofs.
//
// The digest-to-receipt correlation is deliberately loose: digests
// carry no foreign key to receipts or anchors, so receipts are matched
// by anchor hashes equal to either recorded digest. Treat the result as
// best-available correlation, not an exact join; a future revision may
// add an explicit anchor_id column to digests.
type AuditQuery struct {
	Receipts domain.ReceiptRepository
	Digests  domain.DigestRepository
	Anchors  domain.AnchorRepository
	Proofs   domain.ProofRepository
}

type AuditBundle struct {
	Receipts []string              `json:"receipts"`
	Digests  []domain.DigestRecord `json:"digests"`
	Anchor   *AuditAnchor          `json:"anchor"`
}

type AuditAnchor struct {
	AnchorID   string               `json:"anchor_id"`
	AnchorHash string               `json:"anchor_hash"`
	Proofs     []domain.ProofRecord `json:"proofs"`
}

// Audit never fails: an op with no associated data yields empty arrays
// and a nil anchor, and read errors degrade the bundle rather than
// aborting it.
func (q *AuditQuery) Audit(ctx context.Context, opID string) AuditBundle {
	bundle := AuditBundle{
		Receipts: []string{},
		Digests:  []domain.DigestRecord{},
	}
	if q == nil {
		return bundle
	}

	if q.Digests != nil {
		digests, err := q.Digests.ListByOpID(ctx, opID)
		if err != nil {
			log.Printf("audit op=%s: list digests: %v", opID, err)
		} else {
			bundle.Digests = digests
		}
	}

	if q.Receipts != nil {
		seen := map[string]bool{}
		for _, digest := range bundle.Digests {
			for _, ref := range []string{digest.PGDigest, digest.OtherDigest} {
				if ref == "" {
					continue
				}
				receipts, err := q.Receipts.ListByAnchorHash(ctx, ref)
				if err != nil {
					log.Printf("audit op=%s: list receipts for %s: %v", opID, ref, err)
					continue
				}
				for _, receipt := range receipts {
					if seen[receipt.ReceiptID] {
						continue
					}
					seen[receipt.ReceiptID] = true
					bundle.Receipts = append(bundle.Receipts, hex.EncodeToString(receipt.Payload))
				}
			}
		}
	}

	if q.Anchors != nil {
		anchor, err := q.Anchors.Latest(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			log.Printf("audit op=%s: latest anchor: %v", opID, err)
		default:
			view := &AuditAnchor{
				AnchorID:   anchor.AnchorID,
				AnchorHash: anchor.AnchorHash,
				Proofs:     []domain.ProofRecord{},
			}
			if q.Proofs != nil {
				proofs, err := q.Proofs.ListByAnchorID(ctx, anchor.AnchorID)
				if err != nil {
					log.Printf("audit op=%s: list proofs: %v", opID, err)
				} else {
					view.Proofs = proofs
				}
			}
			bundle.Anchor = view
		}
	}
	return bundle
}
