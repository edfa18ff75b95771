package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type DraftSectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, section *types.DraftSection) (*types.DraftSection, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.DraftSection, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type draftSectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftSectionRepo(db *gorm.DB, baseLog *logger.Logger) DraftSectionRepo {
	return &draftSectionRepo{
		db:  db,
		log: baseLog.With("repo", "DraftSectionRepo"),
	}
}

func (r *draftSectionRepo) Create(ctx context.Context, tx *gorm.DB, section *types.DraftSection) (*types.DraftSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if section == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(section).Error; err != nil {
		return nil, err
	}
	return section, nil
}

func (r *draftSectionRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.DraftSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var section types.DraftSection
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
		Limit(1).
		Find(&section).Error
	if err != nil {
		return nil, err
	}
	if section.ID == uuid.Nil {
		return nil, nil
	}
	return &section, nil
}

func (r *draftSectionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.DraftSection{}).
		Where("id = ?", id).
		Updates(updates).Error
}
