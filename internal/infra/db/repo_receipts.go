package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerd/internal/domain"

	"gorm.io/gorm"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) Add(ctx context.Context, receipts []domain.LedgerReceipt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(receipts) == 0 {
		return nil
	}
	models := make([]ReceiptModel, 0, len(receipts))
	for _, receipt := range receipts {
		if receipt.ReceiptID == "" {
			return errors.New("receipt_id is required")
		}
		createdAt := receipt.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		models = append(models, ReceiptModel{
			ReceiptID: receipt.ReceiptID,
			Payload:   copyBytes(receipt.Payload),
			CreatedAt: createdAt.UTC(),
		})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range models {
			if err := tx.Create(&models[i]).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("receipt %s: %w", models[i].ReceiptID, domain.ErrDuplicateReceipt)
				}
				return err
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicateReceipt) {
		return fmt.Errorf("add receipts: %w", err)
	}
	return err
}

func (r *ReceiptRepository) Get(ctx context.Context, receiptID string) (domain.LedgerReceipt, error) {
	if r.db == nil {
		return domain.LedgerReceipt{}, errDBUnavailable
	}
	if receiptID == "" {
		return domain.LedgerReceipt{}, errors.New("receipt_id is required")
	}
	var model ReceiptModel
	if err := r.db.WithContext(ctx).First(&model, "receipt_id = ?", receiptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LedgerReceipt{}, domain.ErrNotFound
		}
		return domain.LedgerReceipt{}, fmt.Errorf("get receipt %s: %w", receiptID, err)
	}
	return receiptFromModel(model), nil
}

func (r *ReceiptRepository) ListByAnchorHash(ctx context.Context, anchorHash string) ([]domain.LedgerReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if anchorHash == "" {
		return nil, errors.New("anchor_hash is required")
	}
	var models []ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("anchor_hash = ?", anchorHash).
		Order("created_at ASC, receipt_id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list receipts by anchor: %w", err)
	}
	return receiptsFromModels(models), nil
}

func (r *ReceiptRepository) ListPending(ctx context.Context, limit int) ([]domain.LedgerReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).
		Where("anchor_hash IS NULL").
		Order("created_at ASC, receipt_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []ReceiptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list pending receipts: %w", err)
	}
	return receiptsFromModels(models), nil
}

func receiptFromModel(model ReceiptModel) domain.LedgerReceipt {
	return domain.LedgerReceipt{
		ReceiptID:  model.ReceiptID,
		Payload:    copyBytes(model.Payload),
		AnchorHash: stringValue(model.AnchorHash),
		MerklePath: unmarshalMerklePath(model.MerklePath),
		CreatedAt:  model.CreatedAt,
	}
}

func receiptsFromModels(models []ReceiptModel) []domain.LedgerReceipt {
	out := make([]domain.LedgerReceipt, 0, len(models))
	for _, model := range models {
		out = append(out, receiptFromModel(model))
	}
	return out
}
