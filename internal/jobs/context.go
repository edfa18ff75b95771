package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/services"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// Context is the execution handle for one claimed job run. It wraps the
// job row, the repo that persists lifecycle transitions, and the notifier.
// Pipelines report progress and terminate only through this object; they
// never write job fields directly.
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.ComposeJob
	Repo   repos.ComposeJobRepo
	Notify services.JobNotifier
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.ComposeJob, repo repos.ComposeJobRepo, notify services.JobNotifier) *Context {
	return &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
}

// SaveState persists the resumable state and progress mid-run, plus a
// heartbeat so the claim is not considered stale. Called after every section
// commit so a re-delivered job resumes instead of redoing work.
func (c *Context) SaveState(state *types.ComposeState, progress float64, stage string) error {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return nil
	}
	raw, err := state.Encode()
	if err != nil {
		return err
	}
	now := time.Now()
	err = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"state":        raw,
		"progress":     progress,
		"stage":        stage,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return err
	}
	c.Job.State = raw
	c.Job.Progress = progress
	c.Job.Stage = stage
	c.Job.HeartbeatAt = &now

	if c.Notify != nil {
		c.Notify.JobProgress(c.Job.ProjectID, c.Job, stage, progress, "")
	}
	return nil
}

// Fail marks the run terminally failed. retryable=false pins deterministic
// failures (missing ledger entries, invalid citations) so the queue does not
// waste attempts on them.
func (c *Context) Fail(stage string, err error, retryable bool) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	uErr := c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"error":         msg,
		"retryable":     retryable,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if uErr != nil {
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.Retryable = retryable
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil

	if c.Notify != nil {
		c.Notify.JobFailed(c.Job.ProjectID, c.Job, stage, msg)
	}
}

// Succeed marks the run terminally completed with progress pinned to 1.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	uErr := c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":       types.JobStatusCompleted,
		"stage":        finalStage,
		"progress":     1.0,
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if uErr != nil {
		return
	}
	c.Job.Status = types.JobStatusCompleted
	c.Job.Stage = finalStage
	c.Job.Progress = 1
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now

	if c.Notify != nil {
		c.Notify.JobDone(c.Job.ProjectID, c.Job)
	}
}
