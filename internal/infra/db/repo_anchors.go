package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerd/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnchorRepository struct {
	db *gorm.DB
}

func NewAnchorRepository(db *gorm.DB) *AnchorRepository {
	return &AnchorRepository{db: db}
}

// CreateWithReceipts runs the anchoring write as one transaction: the
// anchor row plus a conditional anchor_hash update per receipt. The
// update is guarded on anchor_hash IS NULL so two concurrent anchor
// calls over overlapping receipt sets cannot both claim a receipt;
// the loser rolls back fully.
func (r *AnchorRepository) CreateWithReceipts(ctx context.Context, anchor domain.AnchorRecord, updates []domain.ReceiptAnchorUpdate) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if anchor.AnchorID == "" || anchor.AnchorHash == "" {
		return errors.New("anchor_id and anchor_hash are required")
	}
	createdAt := anchor.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := AnchorModel{
		AnchorID:   anchor.AnchorID,
		AnchorHash: anchor.AnchorHash,
		CreatedAt:  createdAt.UTC(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The anchor id and hash are both content-derived, so a key
		// collision means this exact anchor was committed before. Skip
		// the insert and stamp the new receipts under the existing row.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
			return fmt.Errorf("create anchor %s: %w", anchor.AnchorID, err)
		}
		for _, update := range updates {
			path, err := marshalMerklePath(update.MerklePath)
			if err != nil {
				return fmt.Errorf("encode merkle path for %s: %w", update.ReceiptID, err)
			}
			result := tx.Model(&ReceiptModel{}).
				Where("receipt_id = ? AND anchor_hash IS NULL", update.ReceiptID).
				Updates(map[string]any{
					"anchor_hash": anchor.AnchorHash,
					"merkle_path": path,
				})
			if result.Error != nil {
				return fmt.Errorf("stamp receipt %s: %w", update.ReceiptID, result.Error)
			}
			if result.RowsAffected != 1 {
				return fmt.Errorf("receipt %s: %w", update.ReceiptID, domain.ErrReceiptAnchored)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrReceiptAnchored) {
		return fmt.Errorf("anchor transaction: %w", err)
	}
	return err
}

func (r *AnchorRepository) Get(ctx context.Context, anchorID string) (domain.AnchorRecord, error) {
	if r.db == nil {
		return domain.AnchorRecord{}, errDBUnavailable
	}
	if anchorID == "" {
		return domain.AnchorRecord{}, errors.New("anchor_id is required")
	}
	var model AnchorModel
	if err := r.db.WithContext(ctx).First(&model, "anchor_id = ?", anchorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AnchorRecord{}, domain.ErrNotFound
		}
		return domain.AnchorRecord{}, fmt.Errorf("get anchor %s: %w", anchorID, err)
	}
	return anchorFromModel(model), nil
}

func (r *AnchorRepository) Latest(ctx context.Context) (domain.AnchorRecord, error) {
	if r.db == nil {
		return domain.AnchorRecord{}, errDBUnavailable
	}
	var model AnchorModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, anchor_id DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AnchorRecord{}, domain.ErrNotFound
		}
		return domain.AnchorRecord{}, fmt.Errorf("latest anchor: %w", err)
	}
	return anchorFromModel(model), nil
}

func anchorFromModel(model AnchorModel) domain.AnchorRecord {
	return domain.AnchorRecord{
		AnchorID:   model.AnchorID,
		AnchorHash: model.AnchorHash,
		CreatedAt:  model.CreatedAt,
	}
}
