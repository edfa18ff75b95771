package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type DraftSectionCitationRepo interface {
	// ReplaceForSection deletes the section's existing citation links and
	// recreates the given set. Run inside the commit transaction.
	ReplaceForSection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, links []*types.DraftSectionCitation) error
	ListBySection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) ([]*types.DraftSectionCitation, error)
}

type draftSectionCitationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftSectionCitationRepo(db *gorm.DB, baseLog *logger.Logger) DraftSectionCitationRepo {
	return &draftSectionCitationRepo{
		db:  db,
		log: baseLog.With("repo", "DraftSectionCitationRepo"),
	}
}

func (r *draftSectionCitationRepo) ReplaceForSection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, links []*types.DraftSectionCitation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil {
		return nil
	}
	if err := transaction.WithContext(ctx).
		Where("draft_section_id = ?", sectionID).
		Delete(&types.DraftSectionCitation{}).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	for i := range links {
		links[i].DraftSectionID = sectionID
		links[i].Position = i
	}
	return transaction.WithContext(ctx).Create(&links).Error
}

func (r *draftSectionCitationRepo) ListBySection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) ([]*types.DraftSectionCitation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DraftSectionCitation
	if sectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("draft_section_id = ?", sectionID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
