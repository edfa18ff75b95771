package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Pure JSON contract for resumable compose-job state. Not a DB model.
//
// The state is a plain serializable array of tagged section states plus an
// index; it is re-derived from the job row on every invocation so no live
// objects span worker restarts.

const (
	SectionStatePending   = "pending"
	SectionStateRunning   = "running"
	SectionStateCompleted = "completed"
	SectionStateFailed    = "failed"
)

type SectionState struct {
	Key            string      `json:"key"`
	SectionType    string      `json:"section_type"`
	Title          string      `json:"title,omitempty"`
	Instructions   string      `json:"instructions,omitempty"`
	Outline        []string    `json:"outline,omitempty"`
	LedgerEntryIDs []uuid.UUID `json:"ledger_entry_ids"`
	TargetWords    int         `json:"target_word_count,omitempty"`
	Status         string      `json:"status"`
	Attempts       int         `json:"attempts"`
	DraftSectionID *uuid.UUID  `json:"draft_section_id,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
}

type ComposeState struct {
	CurrentSectionIndex int            `json:"current_section_index"`
	Sections            []SectionState `json:"sections"`
	ResearchQuestion    string         `json:"research_question,omitempty"`
	NarrativeVoice      string         `json:"narrative_voice,omitempty"`
}

func DecodeComposeState(raw datatypes.JSON) (*ComposeState, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty compose state")
	}
	var s ComposeState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode compose state: %w", err)
	}
	if len(s.Sections) == 0 {
		return nil, fmt.Errorf("compose state has no sections")
	}
	if s.CurrentSectionIndex < 0 || s.CurrentSectionIndex > len(s.Sections) {
		return nil, fmt.Errorf("compose state index %d out of range", s.CurrentSectionIndex)
	}
	return &s, nil
}

func (s *ComposeState) Encode() (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// CompletedSections counts sections already committed, used both for resumed
// invocations and for progress reporting.
func (s *ComposeState) CompletedSections() int {
	n := 0
	for i := range s.Sections {
		if s.Sections[i].Status == SectionStateCompleted {
			n++
		}
	}
	return n
}
