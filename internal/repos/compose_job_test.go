package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellhq/inkwell-backend/internal/repos/testutil"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func TestComposeJobRepo_ClaimNextRunnable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewComposeJobRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	queued := testutil.SeedComposeJob(t, ctx, tx, projectID, types.JobStatusQueued, nil)

	claimed, err := repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("claimed = %+v, want job %s", claimed, queued.ID)
	}
	if claimed.Status != types.JobStatusInProgress {
		t.Errorf("claimed status = %q, want in_progress", claimed.Status)
	}
	if claimed.Attempts != 1 {
		t.Errorf("claimed attempts = %d, want 1", claimed.Attempts)
	}

	// The same job is now locked in_progress with a fresh heartbeat, so a
	// second claim finds nothing.
	second, err := repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim returned %s, want nothing runnable", second.ID)
	}
}

func TestComposeJobRepo_ClaimSkipsExhaustedAndNonRetryable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewComposeJobRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	longAgo := time.Now().Add(-time.Hour)

	exhausted := testutil.SeedComposeJob(t, ctx, tx, projectID, types.JobStatusFailed, nil)
	if err := tx.Model(&types.ComposeJob{}).Where("id = ?", exhausted.ID).
		Updates(map[string]interface{}{"attempts": 2, "last_error_at": longAgo}).Error; err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}

	pinned := testutil.SeedComposeJob(t, ctx, tx, projectID, types.JobStatusFailed, nil)
	if err := tx.Model(&types.ComposeJob{}).Where("id = ?", pinned.ID).
		Updates(map[string]interface{}{"retryable": false, "last_error_at": longAgo}).Error; err != nil {
		t.Fatalf("mark non-retryable: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed %s, want nothing (exhausted and non-retryable only)", claimed.ID)
	}
}

func TestComposeJobRepo_ClaimRetriesFailedAfterDelay(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewComposeJobRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	failed := testutil.SeedComposeJob(t, ctx, tx, projectID, types.JobStatusFailed, nil)
	if err := tx.Model(&types.ComposeJob{}).Where("id = ?", failed.ID).
		Updates(map[string]interface{}{"attempts": 1, "last_error_at": time.Now()}).Error; err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Too soon: the retry delay has not elapsed.
	claimed, err := repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed %s before retry delay elapsed", claimed.ID)
	}

	if err := tx.Model(&types.ComposeJob{}).Where("id = ?", failed.ID).
		Update("last_error_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("age failure: %v", err)
	}
	claimed, err = repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("claim after delay: %v", err)
	}
	if claimed == nil || claimed.ID != failed.ID {
		t.Fatalf("claimed = %+v, want retried job %s", claimed, failed.ID)
	}
	if claimed.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", claimed.Attempts)
	}
}

func TestComposeJobRepo_ClaimReclaimsStaleInProgress(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewComposeJobRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	stale := testutil.SeedComposeJob(t, ctx, tx, projectID, types.JobStatusInProgress, nil)
	if err := tx.Model(&types.ComposeJob{}).Where("id = ?", stale.ID).
		Update("heartbeat_at", time.Now().Add(-10*time.Minute)).Error; err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, tx, 2, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != stale.ID {
		t.Fatalf("claimed = %+v, want stale job %s", claimed, stale.ID)
	}
}
