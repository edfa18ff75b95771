package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusQueued     = "queued"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const JobTypeManuscriptCompose = "manuscript_compose"

// ComposeJob is one durable queue message: the row is the message. Workers
// claim it with SKIP LOCKED, heartbeat while running, and persist resumable
// state back into State after every section.
type ComposeJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	JobType     string         `gorm:"not null;index" json:"job_type"`
	Status      string         `gorm:"not null;default:'queued';index" json:"status"`
	Progress    float64        `gorm:"not null;default:0" json:"progress"`
	Stage       string         `json:"stage,omitempty"`
	State       datatypes.JSON `gorm:"type:jsonb" json:"state,omitempty"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	Result      datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	Retryable   bool           `gorm:"not null;default:true" json:"retryable"`
	RequestID   string         `json:"request_id,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	LockedAt    *time.Time     `json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `json:"last_error_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ComposeJob) TableName() string { return "compose_job" }
