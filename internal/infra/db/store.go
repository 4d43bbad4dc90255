package db

import (
	"fmt"
	"log"

	"ledgerd/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.LedgerDBURL == "" {
		log.Printf("LEDGER_DB_URL not set; starting in no-db mode (in-memory ledger).")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.LedgerDBURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) AutoMigrate() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(
		&ReceiptModel{},
		&AnchorModel{},
		&ProofModel{},
		&DigestModel{},
	)
}
