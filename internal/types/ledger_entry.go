package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Locator pins evidence inside a source: a pointer (page/paragraph/sentence)
// plus human context (note/quote/source). Stored as jsonb on LedgerEntry.
type Locator struct {
	Page      *int   `json:"page,omitempty"`
	Paragraph *int   `json:"paragraph,omitempty"`
	Sentence  *int   `json:"sentence,omitempty"`
	Note      string `json:"note,omitempty"`
	Quote     string `json:"quote,omitempty"`
	Source    string `json:"source,omitempty"`
}

// LedgerEntry is a vetted bibliographic reference. Curation mutates it
// elsewhere; the composition core only reads it.
type LedgerEntry struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	CitationKey     string         `gorm:"not null;index" json:"citation_key"`
	Title           string         `json:"title"`
	Locators        datatypes.JSON `gorm:"type:jsonb" json:"locators"`
	VerifiedByHuman bool           `gorm:"not null;default:false" json:"verified_by_human"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LedgerEntry) TableName() string { return "ledger_entry" }

// DecodedLocators parses the jsonb locator sequence. A null/empty column is an
// empty sequence, not an error.
func (e *LedgerEntry) DecodedLocators() ([]Locator, error) {
	if e == nil || len(e.Locators) == 0 {
		return nil, nil
	}
	var out []Locator
	if err := json.Unmarshal(e.Locators, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeLocators serializes a locator sequence for storage.
func EncodeLocators(locators []Locator) (datatypes.JSON, error) {
	b, err := json.Marshal(locators)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
