package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
)

// TxRunner is the shared transaction boundary for every commit sequence that
// must hold snapshot-read, mutation, and version-append together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return apperr.Transient("transaction runner has nil db")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}
