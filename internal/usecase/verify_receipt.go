package usecase

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"

	"ledgerd/internal/domain"
	"ledgerd/internal/infra/crypto"
	"ledgerd/internal/infra/merkle"
)

// KeyResolver resolves the public half of a signing key by kid.
type KeyResolver interface {
	Public(kid string) (ed25519.PublicKey, error)
}

// ReceiptVerifier re-checks a stored receipt: its signature against the
// signer's public key and, once anchored, its inclusion path against
// the anchor hash.
type ReceiptVerifier struct {
	Receipts domain.ReceiptRepository
	Keys     KeyResolver
}

type VerificationResult struct {
	ReceiptID        string          `json:"receipt_id"`
	DecisionReceipt  bool            `json:"decision_receipt"`
	SignatureValid   bool            `json:"signature_valid"`
	SignerKID        string          `json:"signer_kid,omitempty"`
	Anchored         bool            `json:"anchored"`
	AnchorHash       string          `json:"anchor_hash,omitempty"`
	InclusionValid   bool            `json:"inclusion_valid"`
	Receipt          *domain.Receipt `json:"receipt,omitempty"`
	VerificationNote string          `json:"note,omitempty"`
}

func (v *ReceiptVerifier) Verify(ctx context.Context, receiptID string) (VerificationResult, error) {
	if v == nil || v.Receipts == nil {
		return VerificationResult{}, domain.ErrStorage
	}
	stored, err := v.Receipts.Get(ctx, receiptID)
	if err != nil {
		return VerificationResult{}, err
	}
	result := VerificationResult{ReceiptID: receiptID}

	var receipt domain.Receipt
	if err := json.Unmarshal(stored.Payload, &receipt); err == nil && receipt.Sig != "" {
		result.DecisionReceipt = true
		result.SignerKID = receipt.SignerKID
		result.Receipt = &receipt
		if v.Keys != nil {
			pub, err := v.Keys.Public(receipt.SignerKID)
			if err != nil {
				result.VerificationNote = "signer key unavailable"
			} else if err := crypto.VerifyReceipt(receipt, pub); err == nil {
				result.SignatureValid = true
			}
		} else {
			result.VerificationNote = "no key resolver configured"
		}
	} else {
		result.VerificationNote = "payload is not a decision receipt; signature not checked"
	}

	if stored.AnchorHash != "" {
		result.Anchored = true
		result.AnchorHash = stored.AnchorHash
		root, err := hex.DecodeString(stored.AnchorHash)
		if err == nil {
			result.InclusionValid = merkle.VerifyPath(stored.Payload, pathStepsFromMerkle(stored.MerklePath), root)
		}
	}
	return result, nil
}

func pathStepsFromMerkle(steps []domain.MerkleStep) []merkle.PathStep {
	if len(steps) == 0 {
		return nil
	}
	out := make([]merkle.PathStep, 0, len(steps))
	for _, step := range steps {
		hash, err := hex.DecodeString(step.Hash)
		if err != nil {
			return nil
		}
		out = append(out, merkle.PathStep{Hash: hash, Left: step.Left})
	}
	return out
}
