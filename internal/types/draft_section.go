package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SectionStatusDraft    = "draft"
	SectionStatusApproved = "approved"
)

// Known manuscript section types for a literature review.
var SectionTypes = map[string]bool{
	"introduction": true,
	"background":   true,
	"methods":      true,
	"synthesis":    true,
	"discussion":   true,
	"conclusion":   true,
}

// DraftSection is a versioned unit of manuscript content. Version starts at 1
// and increases by exactly 1 on every content-affecting mutation.
type DraftSection struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	SectionType string         `gorm:"not null;index" json:"section_type"`
	Title       string         `json:"title"`
	Content     datatypes.JSON `gorm:"type:jsonb" json:"content"`
	Status      string         `gorm:"not null;default:'draft'" json:"status"`
	Version     int            `gorm:"not null;default:1" json:"version"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DraftSection) TableName() string { return "draft_section" }

// DraftSectionVersion is an immutable snapshot row, one per (section, version).
type DraftSectionVersion struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DraftSectionID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_draft_section_version,priority:1" json:"draft_section_id"`
	Version        int            `gorm:"not null;uniqueIndex:ux_draft_section_version,priority:2" json:"version"`
	Status         string         `gorm:"not null" json:"status"`
	Content        datatypes.JSON `gorm:"type:jsonb" json:"content,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DraftSectionVersion) TableName() string { return "draft_section_version" }

// DraftSectionCitation links a section to the ledger entries it cites.
// Links are replaced wholesale (delete-then-recreate) on each commit.
type DraftSectionCitation struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DraftSectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"draft_section_id"`
	LedgerEntryID  uuid.UUID `gorm:"type:uuid;not null;index" json:"ledger_entry_id"`
	CitationKey    string    `gorm:"not null" json:"citation_key"`
	Position       int       `gorm:"not null;default:0" json:"position"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DraftSectionCitation) TableName() string { return "draft_section_citation" }
