package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type ActivityEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.ActivityEvent) (*types.ActivityEvent, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
}

type activityEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	return &activityEventRepo{
		db:  db,
		log: baseLog.With("repo", "ActivityEventRepo"),
	}
}

func (r *activityEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.ActivityEvent) (*types.ActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if event == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *activityEventRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityEvent
	if projectID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
