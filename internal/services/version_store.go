package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// SectionSnapshot is the (version, status, content) triple persisted into the
// append-only version ledger.
type SectionSnapshot struct {
	DraftSectionID uuid.UUID
	Version        int
	Status         string
	Content        datatypes.JSON
}

// VersionStoreService owns the append-only per-section version ledger.
//
// The contract for every content-affecting mutation is
// snapshot-then-mutate-then-record inside one transaction:
//
//	EnsureDraftSectionVersion(tx, pre-mutation state)
//	...mutate the section row...
//	RecordDraftSectionVersion(tx, post-mutation state)
type VersionStoreService interface {
	EnsureDraftSectionVersion(ctx context.Context, tx *gorm.DB, snap SectionSnapshot) error
	RecordDraftSectionVersion(ctx context.Context, tx *gorm.DB, snap SectionSnapshot) error
	ListDraftSectionVersions(ctx context.Context, projectID, sectionID uuid.UUID) ([]*types.DraftSectionVersion, error)
	GetDraftSectionVersion(ctx context.Context, projectID, sectionID uuid.UUID, version int) (*types.DraftSectionVersion, error)
	RollbackDraftSection(ctx context.Context, projectID, sectionID uuid.UUID, targetVersion int, actor string) (*types.DraftSection, error)
}

type versionStoreService struct {
	db       *gorm.DB
	log      *logger.Logger
	tx       TxRunner
	sections repos.DraftSectionRepo
	versions repos.DraftSectionVersionRepo
	activity ActivityService
	notify   JobNotifier
}

func NewVersionStoreService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tx TxRunner,
	sections repos.DraftSectionRepo,
	versions repos.DraftSectionVersionRepo,
	activity ActivityService,
	notify JobNotifier,
) VersionStoreService {
	return &versionStoreService{
		db:       db,
		log:      baseLog.With("service", "VersionStoreService"),
		tx:       tx,
		sections: sections,
		versions: versions,
		activity: activity,
		notify:   notify,
	}
}

func (s *versionStoreService) EnsureDraftSectionVersion(ctx context.Context, tx *gorm.DB, snap SectionSnapshot) error {
	if snap.DraftSectionID == uuid.Nil || snap.Version < 1 {
		return apperr.Validation("snapshot requires a section id and positive version")
	}
	row := &types.DraftSectionVersion{
		DraftSectionID: snap.DraftSectionID,
		Version:        snap.Version,
		Status:         snap.Status,
		Content:        snap.Content,
	}
	if err := s.versions.EnsureSnapshot(ctx, tx, row); err != nil {
		return apperr.Map("version_store.ensure", err)
	}
	return nil
}

func (s *versionStoreService) RecordDraftSectionVersion(ctx context.Context, tx *gorm.DB, snap SectionSnapshot) error {
	if snap.DraftSectionID == uuid.Nil || snap.Version < 1 {
		return apperr.Validation("snapshot requires a section id and positive version")
	}
	row := &types.DraftSectionVersion{
		DraftSectionID: snap.DraftSectionID,
		Version:        snap.Version,
		Status:         snap.Status,
		Content:        snap.Content,
	}
	if err := s.versions.Append(ctx, tx, row); err != nil {
		return apperr.Map("version_store.record", err)
	}
	return nil
}

func (s *versionStoreService) ListDraftSectionVersions(ctx context.Context, projectID, sectionID uuid.UUID) ([]*types.DraftSectionVersion, error) {
	section, err := s.sections.GetByID(ctx, nil, projectID, sectionID)
	if err != nil {
		return nil, apperr.Map("version_store.list", err)
	}
	if section == nil {
		return nil, apperr.NotFound("draft section not found")
	}
	out, err := s.versions.ListBySection(ctx, nil, sectionID)
	if err != nil {
		return nil, apperr.Map("version_store.list", err)
	}
	return out, nil
}

func (s *versionStoreService) GetDraftSectionVersion(ctx context.Context, projectID, sectionID uuid.UUID, version int) (*types.DraftSectionVersion, error) {
	section, err := s.sections.GetByID(ctx, nil, projectID, sectionID)
	if err != nil {
		return nil, apperr.Map("version_store.get", err)
	}
	if section == nil {
		return nil, apperr.NotFound("draft section not found")
	}
	row, err := s.versions.GetByVersion(ctx, nil, sectionID, version)
	if err != nil {
		return nil, apperr.Map("version_store.get", err)
	}
	if row == nil {
		return nil, apperr.NotFound(fmt.Sprintf("version %d not found for section", version))
	}
	return row, nil
}

// RollbackDraftSection re-applies a stored version's content and status as a
// brand-new version. The ledger is forward-only: rollback never reuses an old
// version number and never decreases DraftSection.Version.
func (s *versionStoreService) RollbackDraftSection(ctx context.Context, projectID, sectionID uuid.UUID, targetVersion int, actor string) (*types.DraftSection, error) {
	var rolled *types.DraftSection
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		section, err := s.sections.GetByID(ctx, tx, projectID, sectionID)
		if err != nil {
			return apperr.Map("version_store.rollback", err)
		}
		if section == nil {
			return apperr.NotFound("draft section not found")
		}
		if targetVersion >= section.Version {
			return apperr.Validation(fmt.Sprintf("target version %d must be below current version %d", targetVersion, section.Version))
		}
		target, err := s.versions.GetByVersion(ctx, tx, sectionID, targetVersion)
		if err != nil {
			return apperr.Map("version_store.rollback", err)
		}
		if target == nil {
			return apperr.NotFound(fmt.Sprintf("version %d not found for section", targetVersion))
		}

		if err := s.EnsureDraftSectionVersion(ctx, tx, SectionSnapshot{
			DraftSectionID: section.ID,
			Version:        section.Version,
			Status:         section.Status,
			Content:        section.Content,
		}); err != nil {
			return err
		}

		newVersion := section.Version + 1
		updates := map[string]interface{}{
			"content": target.Content,
			"status":  target.Status,
			"version": newVersion,
		}
		if target.Status != types.SectionStatusApproved {
			updates["approved_at"] = nil
		}
		if err := s.sections.UpdateFields(ctx, tx, section.ID, updates); err != nil {
			return apperr.Map("version_store.rollback", err)
		}

		if err := s.RecordDraftSectionVersion(ctx, tx, SectionSnapshot{
			DraftSectionID: section.ID,
			Version:        newVersion,
			Status:         target.Status,
			Content:        target.Content,
		}); err != nil {
			return err
		}

		section.Content = target.Content
		section.Status = target.Status
		section.Version = newVersion
		if target.Status != types.SectionStatusApproved {
			section.ApprovedAt = nil
		}
		rolled = section
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Emit(ctx, projectID, actor, types.ActivitySectionRolledBack, map[string]any{
		"section_id":     rolled.ID,
		"target_version": targetVersion,
		"new_version":    rolled.Version,
	})
	if s.notify != nil {
		s.notify.SectionRolledBack(projectID, rolled)
	}
	return rolled, nil
}
