package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type DraftSectionVersionRepo interface {
	// EnsureSnapshot inserts a version row unless one already exists for the
	// same (section, version). Safe to call repeatedly inside a transaction.
	EnsureSnapshot(ctx context.Context, tx *gorm.DB, v *types.DraftSectionVersion) error
	// Append unconditionally inserts a new version row.
	Append(ctx context.Context, tx *gorm.DB, v *types.DraftSectionVersion) error
	ListBySection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) ([]*types.DraftSectionVersion, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, version int) (*types.DraftSectionVersion, error)
}

type draftSectionVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftSectionVersionRepo(db *gorm.DB, baseLog *logger.Logger) DraftSectionVersionRepo {
	return &draftSectionVersionRepo{
		db:  db,
		log: baseLog.With("repo", "DraftSectionVersionRepo"),
	}
}

func (r *draftSectionVersionRepo) EnsureSnapshot(ctx context.Context, tx *gorm.DB, v *types.DraftSectionVersion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if v == nil || v.DraftSectionID == uuid.Nil {
		return nil
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "draft_section_id"}, {Name: "version"}},
			DoNothing: true,
		}).
		Create(v).Error
}

func (r *draftSectionVersionRepo) Append(ctx context.Context, tx *gorm.DB, v *types.DraftSectionVersion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if v == nil || v.DraftSectionID == uuid.Nil {
		return nil
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(v).Error
}

// ListBySection returns lightweight summaries, newest version first. Content
// is omitted; fetch it with GetByVersion when needed.
func (r *draftSectionVersionRepo) ListBySection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) ([]*types.DraftSectionVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DraftSectionVersion
	if sectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Select("id", "draft_section_id", "version", "status", "created_at").
		Where("draft_section_id = ?", sectionID).
		Order("version DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *draftSectionVersionRepo) GetByVersion(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, version int) (*types.DraftSectionVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil || version < 1 {
		return nil, nil
	}
	var row types.DraftSectionVersion
	err := transaction.WithContext(ctx).
		Where("draft_section_id = ? AND version = ?", sectionID, version).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
