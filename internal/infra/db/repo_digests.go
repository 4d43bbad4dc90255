package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerd/internal/domain"

	"gorm.io/gorm"
)

type DigestRepository struct {
	db *gorm.DB
}

func NewDigestRepository(db *gorm.DB) *DigestRepository {
	return &DigestRepository{db: db}
}

func (r *DigestRepository) Append(ctx context.Context, digest domain.DigestRecord) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	if digest.OpID == "" {
		return "", errors.New("op_id is required")
	}
	id := digest.ID
	if id == "" {
		generated, err := NewUUID()
		if err != nil {
			return "", err
		}
		id = generated
	}
	createdAt := digest.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := DigestModel{
		ID:          id,
		OpID:        digest.OpID,
		PGDigest:    digest.PGDigest,
		OtherDigest: digest.OtherDigest,
		CreatedAt:   createdAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("append digest for op %s: %w", digest.OpID, err)
	}
	return id, nil
}

func (r *DigestRepository) ListByOpID(ctx context.Context, opID string) ([]domain.DigestRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if opID == "" {
		return nil, errors.New("op_id is required")
	}
	var models []DigestModel
	if err := r.db.WithContext(ctx).
		Where("op_id = ?", opID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list digests for op %s: %w", opID, err)
	}
	out := make([]domain.DigestRecord, 0, len(models))
	for _, model := range models {
		out = append(out, domain.DigestRecord{
			ID:          model.ID,
			OpID:        model.OpID,
			PGDigest:    model.PGDigest,
			OtherDigest: model.OtherDigest,
			CreatedAt:   model.CreatedAt,
		})
	}
	return out, nil
}
