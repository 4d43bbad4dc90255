// Package ledgermem is the in-memory ledger used in no-db mode and in
// tests. It implements the same repository interfaces as the postgres
// layer, with a single mutex standing in for transaction isolation.
package ledgermem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgerd/internal/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	clock    func() time.Time
	receipts map[string]*domain.LedgerReceipt
	order    []string
	anchors  []domain.AnchorRecord
	proofs   []domain.ProofRecord
	digests  []domain.DigestRecord
}

func NewStore() *Store {
	return NewStoreWithClock(nil)
}

func NewStoreWithClock(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		clock:    clock,
		receipts: map[string]*domain.LedgerReceipt{},
	}
}

func (s *Store) Add(_ context.Context, receipts []domain.LedgerReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, receipt := range receipts {
		if receipt.ReceiptID == "" {
			return fmt.Errorf("receipt_id is required")
		}
		if _, exists := s.receipts[receipt.ReceiptID]; exists {
			return fmt.Errorf("receipt %s: %w", receipt.ReceiptID, domain.ErrDuplicateReceipt)
		}
	}
	for _, receipt := range receipts {
		stored := receipt
		stored.Payload = cloneBytes(receipt.Payload)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = s.clock().UTC()
		}
		s.receipts[stored.ReceiptID] = &stored
		s.order = append(s.order, stored.ReceiptID)
	}
	return nil
}

func (s *Store) Get(_ context.Context, receiptID string) (domain.LedgerReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.receipts[receiptID]
	if !ok {
		return domain.LedgerReceipt{}, domain.ErrNotFound
	}
	return cloneReceipt(stored), nil
}

func (s *Store) ListByAnchorHash(_ context.Context, anchorHash string) ([]domain.LedgerReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerReceipt, 0)
	for _, id := range s.order {
		stored := s.receipts[id]
		if stored.AnchorHash == anchorHash {
			out = append(out, cloneReceipt(stored))
		}
	}
	return out, nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]domain.LedgerReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerReceipt, 0)
	for _, id := range s.order {
		stored := s.receipts[id]
		if stored.AnchorHash != "" {
			continue
		}
		out = append(out, cloneReceipt(stored))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateWithReceipts(_ context.Context, anchor domain.AnchorRecord, updates []domain.ReceiptAnchorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range updates {
		stored, ok := s.receipts[update.ReceiptID]
		if !ok {
			return fmt.Errorf("receipt %s: %w", update.ReceiptID, domain.ErrNotFound)
		}
		if stored.AnchorHash != "" {
			return fmt.Errorf("receipt %s: %w", update.ReceiptID, domain.ErrReceiptAnchored)
		}
	}
	if anchor.CreatedAt.IsZero() {
		anchor.CreatedAt = s.clock().UTC()
	}
	for _, update := range updates {
		stored := s.receipts[update.ReceiptID]
		stored.AnchorHash = anchor.AnchorHash
		stored.MerklePath = append([]domain.MerkleStep(nil), update.MerklePath...)
	}
	// Anchor ids and hashes are content-derived: an identical batch
	// recommits the same anchor, so the existing row is reused rather
	// than duplicated.
	for _, existing := range s.anchors {
		if existing.AnchorHash == anchor.AnchorHash {
			return nil
		}
	}
	s.anchors = append(s.anchors, anchor)
	return nil
}

func (s *Store) GetAnchor(_ context.Context, anchorID string) (domain.AnchorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, anchor := range s.anchors {
		if anchor.AnchorID == anchorID {
			return anchor, nil
		}
	}
	return domain.AnchorRecord{}, domain.ErrNotFound
}

func (s *Store) Latest(_ context.Context) (domain.AnchorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.anchors) == 0 {
		return domain.AnchorRecord{}, domain.ErrNotFound
	}
	latest := s.anchors[0]
	for _, anchor := range s.anchors[1:] {
		// Same tie-break as the postgres layer: created_at, then
		// anchor_id descending.
		switch {
		case anchor.CreatedAt.After(latest.CreatedAt):
			latest = anchor
		case anchor.CreatedAt.Equal(latest.CreatedAt) && anchor.AnchorID > latest.AnchorID:
			latest = anchor
		}
	}
	return latest, nil
}

func (s *Store) AppendProof(_ context.Context, proof domain.ProofRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proof.AnchorID == "" {
		return "", fmt.Errorf("anchor_id is required")
	}
	if proof.ID == "" {
		proof.ID = uuid.NewString()
	}
	if proof.CreatedAt.IsZero() {
		proof.CreatedAt = s.clock().UTC()
	}
	s.proofs = append(s.proofs, proof)
	return proof.ID, nil
}

func (s *Store) ListProofs(_ context.Context, anchorID string) ([]domain.ProofRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProofRecord, 0)
	for _, proof := range s.proofs {
		if proof.AnchorID == anchorID {
			out = append(out, proof)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AppendDigest(_ context.Context, digest domain.DigestRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if digest.OpID == "" {
		return "", fmt.Errorf("op_id is required")
	}
	if digest.ID == "" {
		digest.ID = uuid.NewString()
	}
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = s.clock().UTC()
	}
	s.digests = append(s.digests, digest)
	return digest.ID, nil
}

func (s *Store) ListDigests(_ context.Context, opID string) ([]domain.DigestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DigestRecord, 0)
	for _, digest := range s.digests {
		if digest.OpID == opID {
			out = append(out, digest)
		}
	}
	return out, nil
}

func cloneReceipt(stored *domain.LedgerReceipt) domain.LedgerReceipt {
	out := *stored
	out.Payload = cloneBytes(stored.Payload)
	out.MerklePath = append([]domain.MerkleStep(nil), stored.MerklePath...)
	return out
}

func cloneBytes(in []byte) []byte {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
