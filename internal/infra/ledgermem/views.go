package ledgermem

import (
	"context"

	"ledgerd/internal/domain"
)

// Repository views over the shared store. The postgres layer has one
// repository type per aggregate; these adapters keep the wiring shape
// identical in no-db mode.

func (s *Store) Receipts() domain.ReceiptRepository { return receiptsView{s} }
func (s *Store) Anchors() domain.AnchorRepository   { return anchorsView{s} }
func (s *Store) Proofs() domain.ProofRepository     { return proofsView{s} }
func (s *Store) Digests() domain.DigestRepository   { return digestsView{s} }

type receiptsView struct{ store *Store }

func (v receiptsView) Add(ctx context.Context, receipts []domain.LedgerReceipt) error {
	return v.store.Add(ctx, receipts)
}

func (v receiptsView) Get(ctx context.Context, receiptID string) (domain.LedgerReceipt, error) {
	return v.store.Get(ctx, receiptID)
}

func (v receiptsView) ListByAnchorHash(ctx context.Context, anchorHash string) ([]domain.LedgerReceipt, error) {
	return v.store.ListByAnchorHash(ctx, anchorHash)
}

func (v receiptsView) ListPending(ctx context.Context, limit int) ([]domain.LedgerReceipt, error) {
	return v.store.ListPending(ctx, limit)
}

type anchorsView struct{ store *Store }

func (v anchorsView) CreateWithReceipts(ctx context.Context, anchor domain.AnchorRecord, updates []domain.ReceiptAnchorUpdate) error {
	return v.store.CreateWithReceipts(ctx, anchor, updates)
}

func (v anchorsView) Get(ctx context.Context, anchorID string) (domain.AnchorRecord, error) {
	return v.store.GetAnchor(ctx, anchorID)
}

func (v anchorsView) Latest(ctx context.Context) (domain.AnchorRecord, error) {
	return v.store.Latest(ctx)
}

type proofsView struct{ store *Store }

func (v proofsView) Append(ctx context.Context, proof domain.ProofRecord) (string, error) {
	return v.store.AppendProof(ctx, proof)
}

func (v proofsView) ListByAnchorID(ctx context.Context, anchorID string) ([]domain.ProofRecord, error) {
	return v.store.ListProofs(ctx, anchorID)
}

type digestsView struct{ store *Store }

func (v digestsView) Append(ctx context.Context, digest domain.DigestRecord) (string, error) {
	return v.store.AppendDigest(ctx, digest)
}

func (v digestsView) ListByOpID(ctx context.Context, opID string) ([]domain.DigestRecord, error) {
	return v.store.ListDigests(ctx, opID)
}
