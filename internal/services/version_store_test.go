package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/repos/testutil"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func newVersionStoreForTest(t *testing.T, tx *gorm.DB) VersionStoreService {
	t.Helper()
	log := testutil.Logger(t)
	sections := repos.NewDraftSectionRepo(tx, log)
	versions := repos.NewDraftSectionVersionRepo(tx, log)
	activity := NewActivityService(tx, log, repos.NewActivityEventRepo(tx, log))
	return NewVersionStoreService(tx, log, NewGormTxRunner(tx), sections, versions, activity, nil)
}

func encodeDoc(t *testing.T, text string) datatypes.JSON {
	t.Helper()
	doc := types.DocumentNode{
		Type: types.NodeDoc,
		Children: []types.DocumentNode{
			types.ParagraphNode(types.TextNode(text)),
		},
	}
	raw, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	return raw
}

func TestVersionStore_RollbackAppliesTargetAsNewVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	store := newVersionStoreForTest(t, tx)

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "background")
	v1Content := section.Content

	if err := store.RecordDraftSectionVersion(ctx, tx, SectionSnapshot{
		DraftSectionID: section.ID,
		Version:        1,
		Status:         types.SectionStatusDraft,
		Content:        v1Content,
	}); err != nil {
		t.Fatalf("record v1: %v", err)
	}

	v2Content := encodeDoc(t, "Second revision.")
	if err := tx.Model(&types.DraftSection{}).Where("id = ?", section.ID).
		Updates(map[string]interface{}{"content": v2Content, "version": 2}).Error; err != nil {
		t.Fatalf("apply v2: %v", err)
	}
	if err := store.RecordDraftSectionVersion(ctx, tx, SectionSnapshot{
		DraftSectionID: section.ID,
		Version:        2,
		Status:         types.SectionStatusDraft,
		Content:        v2Content,
	}); err != nil {
		t.Fatalf("record v2: %v", err)
	}

	rolled, err := store.RollbackDraftSection(ctx, projectID, section.ID, 1, "reviewer")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.Version != 3 {
		t.Fatalf("rolled version = %d, want 3 (forward-only)", rolled.Version)
	}
	if string(rolled.Content) != string(v1Content) {
		t.Errorf("rolled content does not match version 1")
	}

	versions, err := store.ListDraftSectionVersions(ctx, projectID, section.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("version rows = %d, want 3", len(versions))
	}
	for i, want := range []int{3, 2, 1} {
		if versions[i].Version != want {
			t.Errorf("versions[%d] = %d, want %d (newest first)", i, versions[i].Version, want)
		}
	}
}

func TestVersionStore_RollbackRejectsCurrentOrFutureTarget(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	store := newVersionStoreForTest(t, tx)

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "discussion")

	for _, target := range []int{1, 2, 99} {
		_, err := store.RollbackDraftSection(ctx, projectID, section.ID, target, "reviewer")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("rollback to %d: got %v, want validation error", target, err)
		}
	}
}

func TestVersionStore_RollbackMissingTargetVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	store := newVersionStoreForTest(t, tx)

	projectID := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "methods")
	if err := tx.Model(&types.DraftSection{}).Where("id = ?", section.ID).
		Update("version", 4).Error; err != nil {
		t.Fatalf("bump version: %v", err)
	}

	// No snapshot rows exist, so any lower target is absent.
	_, err := store.RollbackDraftSection(ctx, projectID, section.ID, 2, "reviewer")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestVersionStore_CrossProjectLookupsAreNotFound(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	store := newVersionStoreForTest(t, tx)

	projectID := uuid.New()
	otherProject := uuid.New()
	section := testutil.SeedDraftSection(t, ctx, tx, projectID, "conclusion")

	if _, err := store.ListDraftSectionVersions(ctx, otherProject, section.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("list cross-project: got %v, want not-found", err)
	}
	if _, err := store.GetDraftSectionVersion(ctx, otherProject, section.ID, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get cross-project: got %v, want not-found", err)
	}
	if _, err := store.RollbackDraftSection(ctx, otherProject, section.ID, 1, "reviewer"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rollback cross-project: got %v, want not-found", err)
	}
}
