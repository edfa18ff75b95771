package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActivitySectionGenerated    = "draft.section_generated"
	ActivitySectionRolledBack   = "draft.section_rolled_back"
	ActivitySuggestionCreated   = "draft.suggestion_created"
	ActivitySuggestionAccepted  = "draft.suggestion_accepted"
	ActivitySuggestionDismissed = "draft.suggestion_dismissed"
)

// ActivityEvent is a fire-and-forget audit record. Appends never fail the
// operation that emits them.
type ActivityEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Actor     string         `gorm:"not null" json:"actor"`
	Action    string         `gorm:"not null;index" json:"action"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ActivityEvent) TableName() string { return "activity_event" }
