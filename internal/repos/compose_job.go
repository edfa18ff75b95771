package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type ComposeJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *types.ComposeJob) (*types.ComposeJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ComposeJob, error)
	// ClaimNextRunnable picks one runnable job and marks it in_progress
	// (SKIP LOCKED). Failed jobs are only re-claimed while retryable and
	// under maxAttempts; in_progress jobs with a stale heartbeat are
	// treated as abandoned and re-claimed.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.ComposeJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type composeJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComposeJobRepo(db *gorm.DB, baseLog *logger.Logger) ComposeJobRepo {
	return &composeJobRepo{
		db:  db,
		log: baseLog.With("repo", "ComposeJobRepo"),
	}
}

func (r *composeJobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.ComposeJob) (*types.ComposeJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *composeJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ComposeJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.ComposeJob
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *composeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.ComposeJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.ComposeJob
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.ComposeJob
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND retryable
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobStatusQueued, types.JobStatusFailed, maxAttempts, retryCutoff, types.JobStatusInProgress, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.ComposeJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       types.JobStatusInProgress,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusInProgress
		job.Attempts++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *composeJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ComposeJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *composeJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.ComposeJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusInProgress).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
