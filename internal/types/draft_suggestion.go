package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SuggestionStatusPending   = "pending"
	SuggestionStatusAccepted  = "accepted"
	SuggestionStatusDismissed = "dismissed"
)

var SuggestionTypes = map[string]bool{
	"improvement": true,
	"clarity":     true,
	"expansion":   true,
}

const DiffAppendParagraph = "append_paragraph"

// SuggestionDiff is a closed tagged-variant describing how the proposed
// content differs from the current section. append_paragraph is the only
// variant today; ParseSuggestionDiff rejects anything else so future kinds
// must be added here first.
type SuggestionDiff struct {
	Type   string `json:"type"`
	Before string `json:"before"`
	After  string `json:"after"`
}

func ParseSuggestionDiff(raw datatypes.JSON) (SuggestionDiff, error) {
	var d SuggestionDiff
	if len(raw) == 0 {
		return d, fmt.Errorf("empty suggestion diff")
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, err
	}
	switch strings.TrimSpace(d.Type) {
	case DiffAppendParagraph:
		return d, nil
	default:
		return d, fmt.Errorf("unknown suggestion diff type %q", d.Type)
	}
}

func (d SuggestionDiff) Encode() (datatypes.JSON, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// DraftSuggestion is a reviewable content proposal. Once accepted or
// dismissed it is immutable.
type DraftSuggestion struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	DraftSectionID uuid.UUID      `gorm:"type:uuid;not null;index" json:"draft_section_id"`
	SuggestionType string         `gorm:"not null" json:"suggestion_type"`
	Summary        string         `gorm:"not null" json:"summary"`
	Diff           datatypes.JSON `gorm:"type:jsonb" json:"diff"`
	Content        datatypes.JSON `gorm:"type:jsonb" json:"content,omitempty"`
	Status         string         `gorm:"not null;default:'pending';index" json:"status"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DraftSuggestion) TableName() string { return "draft_suggestion" }

func (s *DraftSuggestion) Resolved() bool {
	return s != nil && s.Status != SuggestionStatusPending
}
