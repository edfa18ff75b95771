package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwellhq/inkwell-backend/internal/repos/testutil"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func TestDraftSectionVersionRepo_EnsureSnapshotIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDraftSectionVersionRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "introduction")

	snap := &types.DraftSectionVersion{
		DraftSectionID: section.ID,
		Version:        1,
		Status:         types.SectionStatusDraft,
		Content:        section.Content,
	}
	if err := repo.EnsureSnapshot(ctx, tx, snap); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	dup := &types.DraftSectionVersion{
		DraftSectionID: section.ID,
		Version:        1,
		Status:         types.SectionStatusApproved, // different payload, same key
		Content:        nil,
	}
	if err := repo.EnsureSnapshot(ctx, tx, dup); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	var count int64
	if err := tx.Model(&types.DraftSectionVersion{}).
		Where("draft_section_id = ? AND version = 1", section.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("version rows = %d, want 1", count)
	}

	// The first write wins: the duplicate must not overwrite the snapshot.
	row, err := repo.GetByVersion(ctx, tx, section.ID, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row == nil || row.Status != types.SectionStatusDraft {
		t.Errorf("snapshot status = %v, want original draft row", row)
	}
}

func TestDraftSectionVersionRepo_ListNewestFirstWithoutContent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDraftSectionVersionRepo(tx, testutil.Logger(t))

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "background")

	for v := 1; v <= 3; v++ {
		if err := repo.Append(ctx, tx, &types.DraftSectionVersion{
			DraftSectionID: section.ID,
			Version:        v,
			Status:         types.SectionStatusDraft,
			Content:        section.Content,
		}); err != nil {
			t.Fatalf("append v%d: %v", v, err)
		}
	}

	rows, err := repo.ListBySection(ctx, tx, section.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, want := range []int{3, 2, 1} {
		if rows[i].Version != want {
			t.Errorf("rows[%d].Version = %d, want %d", i, rows[i].Version, want)
		}
		if len(rows[i].Content) != 0 {
			t.Errorf("rows[%d] summary carries content", i)
		}
	}

	missing, err := repo.GetByVersion(ctx, tx, section.ID, 9)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("got %+v for absent version, want nil", missing)
	}
}
