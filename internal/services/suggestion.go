package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type CreateSuggestionInput struct {
	ProjectID      uuid.UUID `json:"project_id"`
	DraftSectionID uuid.UUID `json:"draft_section_id"`
	SuggestionType string    `json:"suggestion_type"`
	NarrativeVoice string    `json:"narrative_voice,omitempty"`
	Actor          string    `json:"actor,omitempty"`
}

const (
	SuggestionActionAccept  = "accept"
	SuggestionActionDismiss = "dismiss"
)

type SuggestionService interface {
	CreateDraftSuggestion(ctx context.Context, in CreateSuggestionInput) (*types.DraftSuggestion, error)
	ResolveDraftSuggestion(ctx context.Context, projectID, suggestionID uuid.UUID, action, actor string) (*types.DraftSuggestion, error)
	ListDraftSuggestions(ctx context.Context, projectID uuid.UUID, sectionID *uuid.UUID) ([]*types.DraftSuggestion, error)
}

type suggestionService struct {
	db          *gorm.DB
	log         *logger.Logger
	tx          TxRunner
	sections    repos.DraftSectionRepo
	sectionCits repos.DraftSectionCitationRepo
	ledger      repos.LedgerEntryRepo
	suggestions repos.DraftSuggestionRepo
	store       VersionStoreService
	gen         SuggestionGenerator
	activity    ActivityService
	notify      JobNotifier
}

func NewSuggestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tx TxRunner,
	sections repos.DraftSectionRepo,
	sectionCits repos.DraftSectionCitationRepo,
	ledger repos.LedgerEntryRepo,
	suggestions repos.DraftSuggestionRepo,
	store VersionStoreService,
	gen SuggestionGenerator,
	activity ActivityService,
	notify JobNotifier,
) SuggestionService {
	return &suggestionService{
		db:          db,
		log:         baseLog.With("service", "SuggestionService"),
		tx:          tx,
		sections:    sections,
		sectionCits: sectionCits,
		ledger:      ledger,
		suggestions: suggestions,
		store:       store,
		gen:         gen,
		activity:    activity,
		notify:      notify,
	}
}

// CreateDraftSuggestion generates a pending proposal for a section. The
// generator only ever sees citation keys whose ledger entries are currently
// human-verified; the section itself is not mutated.
func (s *suggestionService) CreateDraftSuggestion(ctx context.Context, in CreateSuggestionInput) (*types.DraftSuggestion, error) {
	if in.ProjectID == uuid.Nil || in.DraftSectionID == uuid.Nil {
		return nil, apperr.Validation("project id and section id are required")
	}
	if !types.SuggestionTypes[strings.TrimSpace(in.SuggestionType)] {
		return nil, apperr.Validation("unknown suggestion type " + in.SuggestionType)
	}

	section, err := s.sections.GetByID(ctx, nil, in.ProjectID, in.DraftSectionID)
	if err != nil {
		return nil, apperr.Map("suggestion.create", err)
	}
	if section == nil {
		return nil, apperr.NotFound("draft section not found")
	}

	doc, err := types.ParseDocument(section.Content)
	if err != nil {
		return nil, apperr.Validation("section content is not a valid document: " + err.Error())
	}

	verifiedKeys, err := s.verifiedCitationKeys(ctx, in.ProjectID, section.ID)
	if err != nil {
		return nil, err
	}

	excerpt := ""
	if p, ok := doc.FirstParagraph(); ok {
		excerpt = p.PlainText()
	}
	heading := ""
	if h, ok := doc.FirstHeading(); ok {
		heading = h.PlainText()
	}

	draft, err := s.gen.GenerateSuggestion(ctx, excerpt, heading, verifiedKeys, in.NarrativeVoice)
	if err != nil {
		return nil, apperr.Map("suggestion.generate", err)
	}
	if draft == nil || len(draft.Paragraphs) == 0 {
		return nil, apperr.Transient("suggestion generator returned no content")
	}

	paragraph := types.ParagraphNode(types.TextNode(strings.Join(draft.Paragraphs, " ")))
	proposed := doc.AppendParagraph(paragraph)
	proposedJSON, err := proposed.Encode()
	if err != nil {
		return nil, apperr.Map("suggestion.create", err)
	}

	before := ""
	if last := lastParagraphText(*doc); last != "" {
		before = last
	}
	diffJSON, err := types.SuggestionDiff{
		Type:   types.DiffAppendParagraph,
		Before: before,
		After:  paragraph.PlainText(),
	}.Encode()
	if err != nil {
		return nil, apperr.Map("suggestion.create", err)
	}

	suggestion := &types.DraftSuggestion{
		ID:             uuid.New(),
		ProjectID:      in.ProjectID,
		DraftSectionID: section.ID,
		SuggestionType: in.SuggestionType,
		Summary:        draft.Summary,
		Diff:           diffJSON,
		Content:        proposedJSON,
		Status:         types.SuggestionStatusPending,
	}
	if _, err := s.suggestions.Create(ctx, nil, suggestion); err != nil {
		return nil, apperr.Map("suggestion.create", err)
	}

	s.activity.Emit(ctx, in.ProjectID, in.Actor, types.ActivitySuggestionCreated, map[string]any{
		"suggestion_id":   suggestion.ID,
		"section_id":      section.ID,
		"suggestion_type": suggestion.SuggestionType,
	})
	if s.notify != nil {
		s.notify.SuggestionCreated(in.ProjectID, suggestion)
	}
	return suggestion, nil
}

// ResolveDraftSuggestion applies or discards a pending proposal. Resolving an
// already-resolved suggestion is a harmless no-op returning the unchanged
// record, so duplicate submissions are tolerated.
func (s *suggestionService) ResolveDraftSuggestion(ctx context.Context, projectID, suggestionID uuid.UUID, action, actor string) (*types.DraftSuggestion, error) {
	suggestion, err := s.suggestions.GetByID(ctx, nil, projectID, suggestionID)
	if err != nil {
		return nil, apperr.Map("suggestion.resolve", err)
	}
	if suggestion == nil {
		return nil, apperr.Guard("cannot resolve unknown suggestion")
	}
	if suggestion.Resolved() {
		return suggestion, nil
	}

	switch action {
	case SuggestionActionAccept:
		return s.accept(ctx, suggestion, actor)
	case SuggestionActionDismiss:
		return s.dismiss(ctx, suggestion, actor)
	default:
		return nil, apperr.Validation("unknown resolve action " + action)
	}
}

func (s *suggestionService) accept(ctx context.Context, suggestion *types.DraftSuggestion, actor string) (*types.DraftSuggestion, error) {
	now := time.Now().UTC()
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		section, err := s.sections.GetByID(ctx, tx, suggestion.ProjectID, suggestion.DraftSectionID)
		if err != nil {
			return apperr.Map("suggestion.accept", err)
		}
		if section == nil {
			return apperr.NotFound("draft section not found")
		}

		if err := s.store.EnsureDraftSectionVersion(ctx, tx, SectionSnapshot{
			DraftSectionID: section.ID,
			Version:        section.Version,
			Status:         section.Status,
			Content:        section.Content,
		}); err != nil {
			return err
		}

		newVersion := section.Version + 1
		if err := s.sections.UpdateFields(ctx, tx, section.ID, map[string]interface{}{
			"content":     suggestion.Content,
			"status":      types.SectionStatusDraft,
			"version":     newVersion,
			"approved_at": nil,
		}); err != nil {
			return apperr.Map("suggestion.accept", err)
		}

		if err := s.store.RecordDraftSectionVersion(ctx, tx, SectionSnapshot{
			DraftSectionID: section.ID,
			Version:        newVersion,
			Status:         types.SectionStatusDraft,
			Content:        suggestion.Content,
		}); err != nil {
			return err
		}

		return s.suggestions.UpdateFields(ctx, tx, suggestion.ID, map[string]interface{}{
			"status":      types.SuggestionStatusAccepted,
			"resolved_at": now,
			"resolved_by": actor,
		})
	})
	if err != nil {
		return nil, err
	}

	suggestion.Status = types.SuggestionStatusAccepted
	suggestion.ResolvedAt = &now
	suggestion.ResolvedBy = actor

	s.activity.Emit(ctx, suggestion.ProjectID, actor, types.ActivitySuggestionAccepted, map[string]any{
		"suggestion_id": suggestion.ID,
		"section_id":    suggestion.DraftSectionID,
	})
	if s.notify != nil {
		s.notify.SuggestionResolved(suggestion.ProjectID, suggestion)
	}
	return suggestion, nil
}

func (s *suggestionService) dismiss(ctx context.Context, suggestion *types.DraftSuggestion, actor string) (*types.DraftSuggestion, error) {
	now := time.Now().UTC()
	if err := s.suggestions.UpdateFields(ctx, nil, suggestion.ID, map[string]interface{}{
		"status":      types.SuggestionStatusDismissed,
		"resolved_at": now,
		"resolved_by": actor,
	}); err != nil {
		return nil, apperr.Map("suggestion.dismiss", err)
	}

	suggestion.Status = types.SuggestionStatusDismissed
	suggestion.ResolvedAt = &now
	suggestion.ResolvedBy = actor

	s.activity.Emit(ctx, suggestion.ProjectID, actor, types.ActivitySuggestionDismissed, map[string]any{
		"suggestion_id": suggestion.ID,
		"section_id":    suggestion.DraftSectionID,
	})
	if s.notify != nil {
		s.notify.SuggestionResolved(suggestion.ProjectID, suggestion)
	}
	return suggestion, nil
}

func (s *suggestionService) ListDraftSuggestions(ctx context.Context, projectID uuid.UUID, sectionID *uuid.UUID) ([]*types.DraftSuggestion, error) {
	if projectID == uuid.Nil {
		return nil, apperr.Validation("project id is required")
	}
	out, err := s.suggestions.List(ctx, nil, projectID, sectionID)
	if err != nil {
		return nil, apperr.Map("suggestion.list", err)
	}
	return out, nil
}

// verifiedCitationKeys returns the citation keys of the section's linked
// ledger entries that are human-verified right now. Unverified links are
// silently excluded so the generator cannot cite them.
func (s *suggestionService) verifiedCitationKeys(ctx context.Context, projectID, sectionID uuid.UUID) ([]string, error) {
	links, err := s.sectionCits.ListBySection(ctx, nil, sectionID)
	if err != nil {
		return nil, apperr.Map("suggestion.citations", err)
	}
	if len(links) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.LedgerEntryID)
	}
	entries, err := s.ledger.GetByIDs(ctx, nil, projectID, ids)
	if err != nil {
		return nil, apperr.Map("suggestion.citations", err)
	}
	verified := map[uuid.UUID]bool{}
	for _, e := range entries {
		if e.VerifiedByHuman {
			verified[e.ID] = true
		}
	}
	var keys []string
	seen := map[string]bool{}
	for _, l := range links {
		if verified[l.LedgerEntryID] && !seen[l.CitationKey] {
			seen[l.CitationKey] = true
			keys = append(keys, l.CitationKey)
		}
	}
	return keys, nil
}

func lastParagraphText(doc types.DocumentNode) string {
	for i := len(doc.Children) - 1; i >= 0; i-- {
		if doc.Children[i].Type == types.NodeParagraph {
			if text := doc.Children[i].PlainText(); text != "" {
				return text
			}
		}
	}
	return ""
}
