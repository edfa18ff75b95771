package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func validComposeInput() ComposeJobInput {
	return ComposeJobInput{
		ProjectID: uuid.New(),
		Mode:      ComposeModeLiteratureReview,
		Sections: []ComposeSectionInput{
			{SectionType: "introduction", LedgerEntryIDs: []uuid.UUID{uuid.New()}},
			{SectionType: "synthesis", LedgerEntryIDs: []uuid.UUID{uuid.New(), uuid.New()}},
		},
	}
}

func TestBuildInitialState_Deterministic(t *testing.T) {
	in := validComposeInput()
	a := BuildInitialState(in)
	b := BuildInitialState(in)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input produced different states:\n%+v\n%+v", a, b)
	}
}

func TestBuildInitialState_MapsSectionsInOrder(t *testing.T) {
	explicitID := uuid.New()
	in := validComposeInput()
	in.Sections[1].SectionID = &explicitID
	in.ResearchQuestion = "does X affect Y"
	in.NarrativeVoice = "formal"

	state := BuildInitialState(in)

	if state.CurrentSectionIndex != 0 {
		t.Fatalf("expected index 0, got %d", state.CurrentSectionIndex)
	}
	if len(state.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(state.Sections))
	}
	if got, want := state.Sections[0].Key, "introduction-1"; got != want {
		t.Errorf("positional key = %q, want %q", got, want)
	}
	if got, want := state.Sections[1].Key, explicitID.String(); got != want {
		t.Errorf("explicit key = %q, want %q", got, want)
	}
	for i, sec := range state.Sections {
		if sec.Status != types.SectionStatePending {
			t.Errorf("section %d status = %q, want pending", i, sec.Status)
		}
		if sec.Attempts != 0 {
			t.Errorf("section %d attempts = %d, want 0", i, sec.Attempts)
		}
		if !reflect.DeepEqual(sec.LedgerEntryIDs, in.Sections[i].LedgerEntryIDs) {
			t.Errorf("section %d ledger ids diverged", i)
		}
	}
	if state.Sections[1].DraftSectionID == nil || *state.Sections[1].DraftSectionID != explicitID {
		t.Errorf("explicit section id not carried into state")
	}
	if state.ResearchQuestion != "does X affect Y" || state.NarrativeVoice != "formal" {
		t.Errorf("job-level fields not carried into state")
	}
}

func TestBuildInitialState_CopiesInputSlices(t *testing.T) {
	in := validComposeInput()
	state := BuildInitialState(in)

	in.Sections[0].LedgerEntryIDs[0] = uuid.Nil
	if state.Sections[0].LedgerEntryIDs[0] == uuid.Nil {
		t.Fatal("state aliases the input ledger id slice")
	}
}

func TestValidateComposeJobInput(t *testing.T) {
	dup := uuid.New()
	cases := []struct {
		name    string
		mutate  func(*ComposeJobInput)
		wantErr bool
	}{
		{"valid", func(in *ComposeJobInput) {}, false},
		{"missing project", func(in *ComposeJobInput) { in.ProjectID = uuid.Nil }, true},
		{"unknown mode", func(in *ComposeJobInput) { in.Mode = "haiku" }, true},
		{"no sections", func(in *ComposeJobInput) { in.Sections = nil }, true},
		{"unknown section type", func(in *ComposeJobInput) { in.Sections[0].SectionType = "appendix" }, true},
		{"empty ledger ids", func(in *ComposeJobInput) { in.Sections[1].LedgerEntryIDs = nil }, true},
		{"nil ledger id", func(in *ComposeJobInput) { in.Sections[0].LedgerEntryIDs = []uuid.UUID{uuid.Nil} }, true},
		{"duplicate section ids", func(in *ComposeJobInput) {
			in.Sections[0].SectionID = &dup
			in.Sections[1].SectionID = &dup
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validComposeInput()
			tc.mutate(&in)
			err := ValidateComposeJobInput(in)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestBuildInitialState_PositionalKeysFollowInputOrder(t *testing.T) {
	in := validComposeInput()
	in.Sections = append(in.Sections, ComposeSectionInput{
		SectionType:    "introduction",
		LedgerEntryIDs: []uuid.UUID{uuid.New()},
	})
	state := BuildInitialState(in)
	want := []string{"introduction-1", "synthesis-2", "introduction-3"}
	for i, w := range want {
		if state.Sections[i].Key != w {
			t.Errorf("section %d key = %q, want %q", i, state.Sections[i].Key, w)
		}
	}
	// Keys must be unique even with repeated section types.
	seen := map[string]bool{}
	for _, sec := range state.Sections {
		if seen[sec.Key] {
			t.Fatalf("duplicate key %q", sec.Key)
		}
		seen[sec.Key] = true
	}
}
