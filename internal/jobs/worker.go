package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/services"
)

// RunnablePolicy bounds queue-level retry. Deterministic failures opt out of
// retry entirely via the job's retryable flag.
type RunnablePolicy struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

func DefaultRunnablePolicy() RunnablePolicy {
	return RunnablePolicy{
		MaxAttempts:  2,
		RetryDelay:   30 * time.Second,
		StaleRunning: 2 * time.Minute,
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.ComposeJobRepo
	registry *Registry
	notify   services.JobNotifier
	policy   RunnablePolicy
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.ComposeJobRepo, registry *Registry, notify services.JobNotifier, policy RunnablePolicy) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		policy:   policy,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := w.repo.ClaimNextRunnable(ctx, nil, w.policy.MaxAttempts, w.policy.RetryDelay, w.policy.StaleRunning)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				h, ok := w.registry.Get(job.JobType)
				if !ok {
					w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
					jc := NewContext(ctx, w.db, job, w.repo, w.notify)
					jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType), false)
					continue
				}
				jc := NewContext(ctx, w.db, job, w.repo, w.notify)
				// A handler panic must not take down the worker loop.
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
							jc.Fail("panic", fmt.Errorf("panic: %v", r), true)
						}
					}()
					if err := h.Run(jc); err != nil {
						w.log.Error("Job handler returned error", "job_id", job.ID, "job_type", job.JobType, "error", err)
					}
				}()
			}
		}
	}()
}
