package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledgerd/internal/domain"
	"ledgerd/internal/infra/crypto"
	"ledgerd/internal/metrics"
)

// ReceiptIssuer canonicalizes a decision input, signs a receipt over
// its hash, and appends the receipt to the ledger under a
// content-derived id so retried submissions are naturally idempotent.
type ReceiptIssuer struct {
	Signer   *crypto.ReceiptSigner
	Receipts domain.ReceiptRepository
}

type IssueInput struct {
	Subject       map[string]any
	Action        map[string]any
	Resource      map[string]any
	Context       map[string]any
	PolicyVersion string
	Decision      string
}

type IssueResult struct {
	ReceiptID string
	Receipt   domain.Receipt
}

func (i *ReceiptIssuer) Issue(ctx context.Context, in IssueInput) (IssueResult, error) {
	if i == nil || i.Signer == nil {
		return IssueResult{}, fmt.Errorf("%w: issuer not configured", domain.ErrSigningKey)
	}
	if in.Decision == "" {
		return IssueResult{}, errors.New("decision is required")
	}
	inputHash, err := crypto.InputHash(in.Subject, in.Action, in.Resource, in.Context)
	if err != nil {
		return IssueResult{}, err
	}
	receipt, err := i.Signer.Sign(ctx, inputHash, in.PolicyVersion, in.Decision)
	if err != nil {
		return IssueResult{}, err
	}

	payload, err := receiptPayload(receipt)
	if err != nil {
		return IssueResult{}, err
	}
	sum := sha256.Sum256(payload)
	receiptID := hex.EncodeToString(sum[:])

	if i.Receipts != nil {
		err := i.Receipts.Add(ctx, []domain.LedgerReceipt{{
			ReceiptID: receiptID,
			Payload:   payload,
			CreatedAt: time.Unix(receipt.IssuedAt, 0).UTC(),
		}})
		switch {
		case errors.Is(err, domain.ErrDuplicateReceipt):
			// Same content resubmitted; the first row stands.
		case err != nil:
			return IssueResult{}, err
		default:
			metrics.ReceiptsStored.Inc()
		}
	}
	metrics.ReceiptsIssued.WithLabelValues(receipt.Decision).Inc()
	return IssueResult{ReceiptID: receiptID, Receipt: receipt}, nil
}

// receiptPayload is the canonical byte form of a receipt as stored in
// the ledger and fed to the Merkle tree.
func receiptPayload(receipt domain.Receipt) ([]byte, error) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotSerializable, err)
	}
	return crypto.CanonicalizeJSON(raw)
}
