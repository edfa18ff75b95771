package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func SeedLedgerEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, citationKey string, verified bool) *types.LedgerEntry {
	tb.Helper()
	page := 3
	locators, err := types.EncodeLocators([]types.Locator{
		{Page: &page, Quote: "quoted evidence", Source: "pdf"},
	})
	if err != nil {
		tb.Fatalf("encode locators: %v", err)
	}
	e := &types.LedgerEntry{
		ID:              uuid.New(),
		ProjectID:       projectID,
		CitationKey:     citationKey,
		Title:           "Entry " + citationKey,
		Locators:        locators,
		VerifiedByHuman: verified,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed ledger entry: %v", err)
	}
	return e
}

func SeedDraftSection(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, sectionType string) *types.DraftSection {
	tb.Helper()
	doc := types.DocumentNode{
		Type: types.NodeDoc,
		Children: []types.DocumentNode{
			types.ParagraphNode(types.TextNode("Seed paragraph.")),
		},
	}
	content, err := doc.Encode()
	if err != nil {
		tb.Fatalf("encode seed document: %v", err)
	}
	s := &types.DraftSection{
		ID:          uuid.New(),
		ProjectID:   projectID,
		SectionType: sectionType,
		Title:       "Seed section",
		Content:     content,
		Status:      types.SectionStatusDraft,
		Version:     1,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed draft section: %v", err)
	}
	return s
}

func SeedComposeJob(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string, state datatypes.JSON) *types.ComposeJob {
	tb.Helper()
	j := &types.ComposeJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		JobType:   types.JobTypeManuscriptCompose,
		Status:    status,
		State:     state,
		Retryable: true,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed compose job: %v", err)
	}
	return j
}
