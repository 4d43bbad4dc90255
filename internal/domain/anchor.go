package domain

import (
	"context"
	"time"
)

// AnchorRecord commits a batch of receipts under a single Merkle root.
// AnchorID is the first 16 hex characters of AnchorHash, a convenience
// short id only; integrity checks must resolve the full hash.
type AnchorRecord struct {
	AnchorID   string    `json:"anchor_id"`
	AnchorHash string    `json:"anchor_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProofRecord is external notarization evidence for an anchor. Zero or
// more proofs may exist per anchor; the anchor is valid without any.
type ProofRecord struct {
	ID         string    `json:"id"`
	AnchorID   string    `json:"anchor_id"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id"`
	URL        string    `json:"url,omitempty"`
	KID        string    `json:"kid,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const ProofProviderHTTPSNotary = "https-notary"

// DigestRecord is a cross-system integrity checkpoint for a business
// operation. It carries no foreign key to receipts or anchors;
// correlation happens at query time only.
type DigestRecord struct {
	ID          string    `json:"id"`
	OpID        string    `json:"op_id"`
	PGDigest    string    `json:"pg_digest"`
	OtherDigest string    `json:"other_digest"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReceiptAnchorUpdate names a receipt selected into an anchor together
// with its inclusion path.
type ReceiptAnchorUpdate struct {
	ReceiptID  string
	MerklePath []MerkleStep
}

type AnchorRepository interface {
	// CreateWithReceipts persists the anchor and stamps every listed
	// receipt with its anchor hash and path in one transaction. A
	// receipt that is already anchored fails the whole call with
	// ErrReceiptAnchored and nothing is persisted. Anchors are
	// content-addressed: committing a hash that already exists reuses
	// the existing anchor row instead of failing.
	CreateWithReceipts(ctx context.Context, anchor AnchorRecord, updates []ReceiptAnchorUpdate) error
	Get(ctx context.Context, anchorID string) (AnchorRecord, error)
	// Latest returns the most recently created anchor, ErrNotFound when
	// none exist.
	Latest(ctx context.Context) (AnchorRecord, error)
}

type ProofRepository interface {
	Append(ctx context.Context, proof ProofRecord) (string, error)
	ListByAnchorID(ctx context.Context, anchorID string) ([]ProofRecord, error)
}

type DigestRepository interface {
	Append(ctx context.Context, digest DigestRecord) (string, error)
	ListByOpID(ctx context.Context, opID string) ([]DigestRecord, error)
}

// AnchorNotary publishes an anchor hash to an external notarization
// endpoint. Implementations must never fail core flows on network or
// provider errors: Publish returns nil once retries are exhausted.
type AnchorNotary interface {
	Enabled() bool
	Publish(ctx context.Context, anchorID, anchorHash, kid string) *ProofRecord
}
