package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type LedgerEntryRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, ids []uuid.UUID) ([]*types.LedgerEntry, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.LedgerEntry, error)
}

type ledgerEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerEntryRepo(db *gorm.DB, baseLog *logger.Logger) LedgerEntryRepo {
	return &ledgerEntryRepo{
		db:  db,
		log: baseLog.With("repo", "LedgerEntryRepo"),
	}
}

func (r *ledgerEntryRepo) GetByIDs(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, ids []uuid.UUID) ([]*types.LedgerEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LedgerEntry
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerEntryRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.LedgerEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var entry types.LedgerEntry
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}
