package domain

import (
	"context"
	"time"
)

// Receipt is a signed record asserting that a decision was made for a
// specific hashed input, at a specific time, under a specific policy
// version. The signature covers the pipe-delimited concatenation
// version|input_hash|policy_version|decision|issued_at; mutating any of
// those fields invalidates it. MerklePath and AnchorHash stay empty
// until the receipt is included in an anchor.
type Receipt struct {
	Version       string       `json:"version"`
	InputHash     string       `json:"input_hash"`
	PolicyVersion string       `json:"policy_version"`
	Decision      string       `json:"decision"`
	IssuedAt      int64        `json:"issued_at"`
	SignerKID     string       `json:"signer_kid"`
	Sig           string       `json:"sig"`
	MerklePath    []MerkleStep `json:"merkle_path,omitempty"`
	AnchorHash    string       `json:"anchor_hash,omitempty"`
}

const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// MerkleStep is one sibling on an inclusion path, bottom-up. Left marks
// the sibling as the left operand of the parent hash.
type MerkleStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// LedgerReceipt is a receipt row as persisted by the ledger: an opaque
// payload under a caller-chosen id. AnchorHash and MerklePath are
// populated exactly once, when the row is included in an anchor.
type LedgerReceipt struct {
	ReceiptID  string
	Payload    []byte
	AnchorHash string
	MerklePath []MerkleStep
	CreatedAt  time.Time
}

type ReceiptRepository interface {
	// Add appends rows; inserting an id that already exists fails the
	// whole call with ErrDuplicateReceipt.
	Add(ctx context.Context, receipts []LedgerReceipt) error
	Get(ctx context.Context, receiptID string) (LedgerReceipt, error)
	ListByAnchorHash(ctx context.Context, anchorHash string) ([]LedgerReceipt, error)
	// ListPending returns unanchored rows in insertion order, capped at limit.
	ListPending(ctx context.Context, limit int) ([]LedgerReceipt, error)
}
