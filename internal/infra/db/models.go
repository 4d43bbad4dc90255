package db

import "time"

type ReceiptModel struct {
	ReceiptID  string    `gorm:"primaryKey"`
	Payload    []byte    `gorm:"type:bytea;not null"`
	AnchorHash *string   `gorm:"index"`
	MerklePath []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (ReceiptModel) TableName() string { return "receipts" }

type AnchorModel struct {
	AnchorID   string    `gorm:"primaryKey"`
	AnchorHash string    `gorm:"uniqueIndex;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (AnchorModel) TableName() string { return "anchors" }

type ProofModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	AnchorID   string    `gorm:"index;not null"`
	Provider   string    `gorm:"not null"`
	ProviderID string    `gorm:"not null"`
	URL        *string
	KID        *string
	CreatedAt  time.Time `gorm:"not null"`
}

func (ProofModel) TableName() string { return "proofs" }

type DigestModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	OpID        string    `gorm:"index;not null"`
	PGDigest    string    `gorm:"not null"`
	OtherDigest string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (DigestModel) TableName() string { return "digests" }
