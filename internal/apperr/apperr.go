package apperr

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrValidation indicates malformed caller input. Never retried.
	ErrValidation = errors.New("validation")
	// ErrNotFound indicates a missing or cross-project entity. Never retried.
	ErrNotFound = errors.New("not found")
	// ErrGuard indicates a policy block, e.g. resolving an unknown suggestion.
	ErrGuard = errors.New("guard")
	// ErrTransient indicates a queue/store/generator failure worth retrying.
	ErrTransient = errors.New("transient")
	// ErrFatalJob marks a whole compose job failed. Already-committed sections
	// stay persisted; the job is not re-claimed.
	ErrFatalJob = errors.New("fatal job")
)

// Validation tags an error as input validation failure.
func Validation(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// NotFound tags an error as missing-entity failure.
func NotFound(msg string) error {
	return errors.Join(ErrNotFound, errors.New(strings.TrimSpace(msg)))
}

// Guard tags an error as a policy block.
func Guard(msg string) error {
	return errors.Join(ErrGuard, errors.New(strings.TrimSpace(msg)))
}

// Transient tags an error as retryable failure.
func Transient(msg string) error {
	return errors.Join(ErrTransient, errors.New(strings.TrimSpace(msg)))
}

// FatalJob tags an error as a whole-job deterministic failure.
func FatalJob(msg string) error {
	return errors.Join(ErrFatalJob, errors.New(strings.TrimSpace(msg)))
}

// IsRetryable reports whether queue-level retry can plausibly succeed.
// Deterministic failures (validation, not-found, guard, fatal-job) will not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGuard) || errors.Is(err, ErrFatalJob) {
		return false
	}
	return true
}

// Map translates infrastructure failures into the taxonomy. Errors already
// tagged pass through unchanged.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGuard) || errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrFatalJob) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Join(ErrNotFound, errors.New(op), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTransient, errors.New(op), err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return errors.Join(ErrValidation, errors.New(op), err) // unique_violation
		case "23503":
			return errors.Join(ErrValidation, errors.New(op), err) // foreign_key_violation
		case "40001", "40P01", "55P03":
			return errors.Join(ErrTransient, errors.New(op), err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "already exists") {
		return errors.Join(ErrValidation, errors.New(op), err)
	}
	// Unclassified store/generator failures are treated as transient so the
	// queue's bounded retry gets a chance at them.
	return errors.Join(ErrTransient, errors.New(op), err)
}
