package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerd/internal/domain"

	"gorm.io/gorm"
)

type ProofRepository struct {
	db *gorm.DB
}

func NewProofRepository(db *gorm.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

func (r *ProofRepository) Append(ctx context.Context, proof domain.ProofRecord) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	if proof.AnchorID == "" {
		return "", errors.New("anchor_id is required")
	}
	if proof.Provider == "" || proof.ProviderID == "" {
		return "", errors.New("provider and provider_id are required")
	}
	id := proof.ID
	if id == "" {
		generated, err := NewUUID()
		if err != nil {
			return "", err
		}
		id = generated
	}
	createdAt := proof.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := ProofModel{
		ID:         id,
		AnchorID:   proof.AnchorID,
		Provider:   proof.Provider,
		ProviderID: proof.ProviderID,
		URL:        stringPtrIfNotEmpty(proof.URL),
		KID:        stringPtrIfNotEmpty(proof.KID),
		CreatedAt:  createdAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("append proof for anchor %s: %w", proof.AnchorID, err)
	}
	return id, nil
}

func (r *ProofRepository) ListByAnchorID(ctx context.Context, anchorID string) ([]domain.ProofRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if anchorID == "" {
		return nil, errors.New("anchor_id is required")
	}
	var models []ProofModel
	if err := r.db.WithContext(ctx).
		Where("anchor_id = ?", anchorID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list proofs for anchor %s: %w", anchorID, err)
	}
	out := make([]domain.ProofRecord, 0, len(models))
	for _, model := range models {
		out = append(out, domain.ProofRecord{
			ID:         model.ID,
			AnchorID:   model.AnchorID,
			Provider:   model.Provider,
			ProviderID: model.ProviderID,
			URL:        stringValue(model.URL),
			KID:        stringValue(model.KID),
			CreatedAt:  model.CreatedAt,
		})
	}
	return out, nil
}
