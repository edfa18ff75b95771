package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type DraftSuggestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, suggestion *types.DraftSuggestion) (*types.DraftSuggestion, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.DraftSuggestion, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	List(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, sectionID *uuid.UUID) ([]*types.DraftSuggestion, error)
}

type draftSuggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) DraftSuggestionRepo {
	return &draftSuggestionRepo{
		db:  db,
		log: baseLog.With("repo", "DraftSuggestionRepo"),
	}
}

func (r *draftSuggestionRepo) Create(ctx context.Context, tx *gorm.DB, suggestion *types.DraftSuggestion) (*types.DraftSuggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if suggestion == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(suggestion).Error; err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *draftSuggestionRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, id uuid.UUID) (*types.DraftSuggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.DraftSuggestion
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
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

func (r *draftSuggestionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.DraftSuggestion{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *draftSuggestionRepo) List(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, sectionID *uuid.UUID) ([]*types.DraftSuggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DraftSuggestion
	q := transaction.WithContext(ctx).Where("project_id = ?", projectID)
	if sectionID != nil && *sectionID != uuid.Nil {
		q = q.Where("draft_section_id = ?", *sectionID)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
