package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/repos/testutil"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func newSuggestionServiceForTest(t *testing.T, tx *gorm.DB) SuggestionService {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	log := testutil.Logger(t)
	sections := repos.NewDraftSectionRepo(tx, log)
	versions := repos.NewDraftSectionVersionRepo(tx, log)
	links := repos.NewDraftSectionCitationRepo(tx, log)
	ledger := repos.NewLedgerEntryRepo(tx, log)
	suggestions := repos.NewDraftSuggestionRepo(tx, log)
	activity := NewActivityService(tx, log, repos.NewActivityEventRepo(tx, log))
	store := NewVersionStoreService(tx, log, NewGormTxRunner(tx), sections, versions, activity, nil)
	_, gen := NewAIGenerator(log)
	return NewSuggestionService(tx, log, NewGormTxRunner(tx), sections, links, ledger, suggestions, store, gen, activity, nil)
}

func seedSectionWithVerifiedCitation(t *testing.T, ctx context.Context, tx *gorm.DB, projectID uuid.UUID) *types.DraftSection {
	t.Helper()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "synthesis")
	entry := testutil.SeedLedgerEntry(t, ctx, tx, projectID, "smith2021", true)
	link := &types.DraftSectionCitation{
		ID:             uuid.New(),
		DraftSectionID: section.ID,
		LedgerEntryID:  entry.ID,
		CitationKey:    entry.CitationKey,
	}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		t.Fatalf("seed citation link: %v", err)
	}
	return section
}

func TestSuggestionService_CreateLeavesSectionUntouched(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newSuggestionServiceForTest(t, tx)

	projectID := uuid.New()
	section := seedSectionWithVerifiedCitation(t, ctx, tx, projectID)

	suggestion, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: section.ID,
		SuggestionType: "expansion",
		Actor:          "writer",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	if suggestion.Status != types.SuggestionStatusPending {
		t.Errorf("status = %q, want pending", suggestion.Status)
	}
	if suggestion.Summary == "" {
		t.Error("suggestion has no summary")
	}

	diff, err := types.ParseSuggestionDiff(suggestion.Diff)
	if err != nil {
		t.Fatalf("parse diff: %v", err)
	}
	if diff.Type != types.DiffAppendParagraph || diff.After == "" {
		t.Errorf("diff = %+v, want append_paragraph with after text", diff)
	}

	originalDoc, err := types.ParseDocument(section.Content)
	if err != nil {
		t.Fatalf("parse section content: %v", err)
	}
	proposedDoc, err := types.ParseDocument(suggestion.Content)
	if err != nil {
		t.Fatalf("parse proposed content: %v", err)
	}
	if len(proposedDoc.Children) != len(originalDoc.Children)+1 {
		t.Errorf("proposed children = %d, want %d", len(proposedDoc.Children), len(originalDoc.Children)+1)
	}

	var current types.DraftSection
	if err := tx.Where("id = ?", section.ID).First(&current).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	if current.Version != 1 || string(current.Content) != string(section.Content) {
		t.Error("pending suggestion must not mutate the section")
	}
}

func TestSuggestionService_AcceptAppliesContentOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newSuggestionServiceForTest(t, tx)

	projectID := uuid.New()
	section := seedSectionWithVerifiedCitation(t, ctx, tx, projectID)

	suggestion, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: section.ID,
		SuggestionType: "improvement",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	resolved, err := svc.ResolveDraftSuggestion(ctx, projectID, suggestion.ID, SuggestionActionAccept, "editor")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resolved.Status != types.SuggestionStatusAccepted {
		t.Fatalf("status = %q, want accepted", resolved.Status)
	}
	if resolved.ResolvedAt == nil || resolved.ResolvedBy != "editor" {
		t.Error("resolution metadata not recorded")
	}

	var current types.DraftSection
	if err := tx.Where("id = ?", section.ID).First(&current).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	if current.Version != 2 {
		t.Fatalf("section version = %d, want 2", current.Version)
	}
	if string(current.Content) != string(suggestion.Content) {
		t.Error("section content does not match accepted proposal")
	}

	var versionCount int64
	if err := tx.Model(&types.DraftSectionVersion{}).
		Where("draft_section_id = ?", section.ID).
		Count(&versionCount).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versionCount != 2 {
		t.Errorf("version rows = %d, want 2 (pre + post snapshot)", versionCount)
	}

	// Re-resolving a terminal suggestion is a no-op, whatever the action.
	again, err := svc.ResolveDraftSuggestion(ctx, projectID, suggestion.ID, SuggestionActionDismiss, "editor")
	if err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	if again.Status != types.SuggestionStatusAccepted {
		t.Errorf("re-resolve changed status to %q", again.Status)
	}
	if err := tx.Where("id = ?", section.ID).First(&current).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	if current.Version != 2 {
		t.Errorf("re-resolve bumped section version to %d", current.Version)
	}
}

func TestSuggestionService_UnverifiedCitationsStillProduceAcceptableSuggestion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newSuggestionServiceForTest(t, tx)

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "discussion")
	entry := testutil.SeedLedgerEntry(t, ctx, tx, projectID, "doe2020", false)
	link := &types.DraftSectionCitation{
		ID:             uuid.New(),
		DraftSectionID: section.ID,
		LedgerEntryID:  entry.ID,
		CitationKey:    entry.CitationKey,
	}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		t.Fatalf("seed citation link: %v", err)
	}

	// The unverified key is excluded from the generator context, but the
	// suggestion itself is still produced and remains acceptable.
	suggestion, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: section.ID,
		SuggestionType: "expansion",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	if _, err := svc.ResolveDraftSuggestion(ctx, projectID, suggestion.ID, SuggestionActionAccept, "editor"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	var current types.DraftSection
	if err := tx.Where("id = ?", section.ID).First(&current).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	if current.Version != 2 {
		t.Errorf("section version = %d, want 2 (accept does not re-validate)", current.Version)
	}
}

func TestSuggestionService_DismissNeverTouchesSection(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newSuggestionServiceForTest(t, tx)

	projectID := uuid.New()
	section := seedSectionWithVerifiedCitation(t, ctx, tx, projectID)

	suggestion, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: section.ID,
		SuggestionType: "clarity",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	resolved, err := svc.ResolveDraftSuggestion(ctx, projectID, suggestion.ID, SuggestionActionDismiss, "editor")
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if resolved.Status != types.SuggestionStatusDismissed {
		t.Fatalf("status = %q, want dismissed", resolved.Status)
	}

	var current types.DraftSection
	if err := tx.Where("id = ?", section.ID).First(&current).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	if current.Version != 1 {
		t.Errorf("dismiss changed section version to %d", current.Version)
	}
	var versionCount int64
	if err := tx.Model(&types.DraftSectionVersion{}).
		Where("draft_section_id = ?", section.ID).
		Count(&versionCount).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versionCount != 0 {
		t.Errorf("dismiss created %d version rows", versionCount)
	}
}

func TestSuggestionService_ResolveGuardsAndValidation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	svc := newSuggestionServiceForTest(t, tx)

	projectID := uuid.New()
	if _, err := svc.ResolveDraftSuggestion(ctx, projectID, uuid.New(), SuggestionActionAccept, "editor"); !errors.Is(err, apperr.ErrGuard) {
		t.Errorf("unknown suggestion: got %v, want guard error", err)
	}

	section := seedSectionWithVerifiedCitation(t, ctx, tx, projectID)
	suggestion, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: section.ID,
		SuggestionType: "clarity",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	if _, err := svc.ResolveDraftSuggestion(ctx, projectID, suggestion.ID, "merge", "editor"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown action: got %v, want validation error", err)
	}

	if _, err := svc.CreateDraftSuggestion(ctx, CreateSuggestionInput{
		ProjectID:      projectID,
		DraftSectionID: uuid.New(),
		SuggestionType: "clarity",
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing section: got %v, want not-found", err)
	}
}
