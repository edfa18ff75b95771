package compose

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/citations"
	jobrt "github.com/inkwellhq/inkwell-backend/internal/jobs"
	"github.com/inkwellhq/inkwell-backend/internal/services"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// Result is persisted into the job row on success.
type Result struct {
	CompletedSections int `json:"completed_sections"`
	TotalSections     int `json:"total_sections"`
}

// Run processes one claimed compose job. Sections run strictly in array
// order; already-completed sections from a previous delivery are skipped, so
// the handler is idempotent by job id. A fatal error (missing ledger entries
// or invalid citations) fails the whole job but never rolls back sections
// committed earlier in the run.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.tx == nil || p.ledger == nil || p.sections == nil || p.store == nil || p.gen == nil {
		jc.Fail("validate", fmt.Errorf("compose: missing deps"), false)
		return nil
	}

	state, err := types.DecodeComposeState(jc.Job.State)
	if err != nil {
		jc.Fail("validate", err, false)
		return nil
	}

	projectID := jc.Job.ProjectID
	total := len(state.Sections)

	for i := 0; i < total; i++ {
		sec := &state.Sections[i]
		if sec.Status == types.SectionStateCompleted {
			continue
		}
		stage := fmt.Sprintf("section:%s", sec.Key)
		sec.Status = types.SectionStateRunning
		sec.Attempts++
		state.CurrentSectionIndex = i

		entries, err := p.ledger.GetByIDs(jc.Ctx, nil, projectID, sec.LedgerEntryIDs)
		if err != nil {
			p.failSection(jc, state, sec, stage, apperr.Map("compose.fetch_ledger", err))
			return nil
		}
		if len(entries) < len(sec.LedgerEntryIDs) {
			p.failSection(jc, state, sec, stage, apperr.FatalJob("Missing ledger entries"))
			return nil
		}

		refs := citationRefs(sec.LedgerEntryIDs, entries)
		if err := citations.AssertCitationsValid(refs, entries); err != nil {
			p.failSection(jc, state, sec, stage, apperr.FatalJob(err.Error()))
			return nil
		}

		doc, err := p.gen.GenerateSection(jc.Ctx, services.SectionSpec{
			SectionType:      sec.SectionType,
			Title:            sec.Title,
			Instructions:     sec.Instructions,
			Outline:          sec.Outline,
			ResearchQuestion: state.ResearchQuestion,
			TargetWordCount:  sec.TargetWords,
		}, entries, state.NarrativeVoice)
		if err != nil {
			p.failSection(jc, state, sec, stage, apperr.Map("compose.generate", err))
			return nil
		}

		section, err := p.commitSection(jc.Ctx, projectID, sec, doc, entries)
		if err != nil {
			p.failSection(jc, state, sec, stage, err)
			return nil
		}

		sec.Status = types.SectionStateCompleted
		sec.LastError = ""
		sec.DraftSectionID = &section.ID
		state.CurrentSectionIndex = i + 1

		completed := state.CompletedSections()
		progress := float64(completed) / float64(total)
		if err := jc.SaveState(state, progress, stage); err != nil {
			p.log.Warn("Failed to persist job progress", "job_id", jc.Job.ID, "error", err)
		}

		p.activity.Emit(jc.Ctx, projectID, jc.Job.Actor, types.ActivitySectionGenerated, map[string]any{
			"job_id":           jc.Job.ID,
			"section_id":       section.ID,
			"section_key":      sec.Key,
			"ledger_entry_ids": sec.LedgerEntryIDs,
			"version":          section.Version,
		})
	}

	result := Result{CompletedSections: state.CompletedSections(), TotalSections: total}
	jc.Succeed("done", result)
	p.log.Info("Compose job completed", "job_id", jc.Job.ID, "sections", total)
	return nil
}

// failSection records the failure on the section state, persists the state so
// a retry resumes correctly, and fails the job. Deterministic failures are
// marked non-retryable so the queue does not waste bounded attempts on them.
func (p *Pipeline) failSection(jc *jobrt.Context, state *types.ComposeState, sec *types.SectionState, stage string, err error) {
	sec.Status = types.SectionStateFailed
	sec.LastError = err.Error()

	total := len(state.Sections)
	progress := 0.0
	if total > 0 {
		progress = float64(state.CompletedSections()) / float64(total)
	}
	if sErr := jc.SaveState(state, progress, stage); sErr != nil {
		p.log.Warn("Failed to persist failing job state", "job_id", jc.Job.ID, "error", sErr)
	}
	jc.Fail(stage, err, apperr.IsRetryable(err))
}

// commitSection runs the transactional create-or-update: snapshot the prior
// state if the section exists, apply the generated tree as the next version
// with status reset to draft, replace citation links, then record the
// post-mutation snapshot.
func (p *Pipeline) commitSection(ctx context.Context, projectID uuid.UUID, sec *types.SectionState, doc types.DocumentNode, entries []*types.LedgerEntry) (*types.DraftSection, error) {
	content, err := doc.Encode()
	if err != nil {
		return nil, apperr.Map("compose.commit", err)
	}

	var out *types.DraftSection
	err = p.tx.InTx(ctx, func(tx *gorm.DB) error {
		var existing *types.DraftSection
		if sec.DraftSectionID != nil && *sec.DraftSectionID != uuid.Nil {
			var err error
			existing, err = p.sections.GetByID(ctx, tx, projectID, *sec.DraftSectionID)
			if err != nil {
				return apperr.Map("compose.commit", err)
			}
		}

		if existing != nil {
			if err := p.store.EnsureDraftSectionVersion(ctx, tx, services.SectionSnapshot{
				DraftSectionID: existing.ID,
				Version:        existing.Version,
				Status:         existing.Status,
				Content:        existing.Content,
			}); err != nil {
				return err
			}
			newVersion := existing.Version + 1
			if err := p.sections.UpdateFields(ctx, tx, existing.ID, map[string]interface{}{
				"content":     content,
				"status":      types.SectionStatusDraft,
				"version":     newVersion,
				"title":       sec.Title,
				"approved_at": nil,
			}); err != nil {
				return apperr.Map("compose.commit", err)
			}
			existing.Content = content
			existing.Status = types.SectionStatusDraft
			existing.Version = newVersion
			existing.ApprovedAt = nil
			out = existing
		} else {
			section := &types.DraftSection{
				ID:          uuid.New(),
				ProjectID:   projectID,
				SectionType: sec.SectionType,
				Title:       sec.Title,
				Content:     content,
				Status:      types.SectionStatusDraft,
				Version:     1,
			}
			if sec.DraftSectionID != nil && *sec.DraftSectionID != uuid.Nil {
				section.ID = *sec.DraftSectionID
			}
			if _, err := p.sections.Create(ctx, tx, section); err != nil {
				return apperr.Map("compose.commit", err)
			}
			out = section
		}

		links := make([]*types.DraftSectionCitation, 0, len(entries))
		for _, e := range entries {
			links = append(links, &types.DraftSectionCitation{
				ID:            uuid.New(),
				LedgerEntryID: e.ID,
				CitationKey:   e.CitationKey,
			})
		}
		if err := p.links.ReplaceForSection(ctx, tx, out.ID, links); err != nil {
			return apperr.Map("compose.commit", err)
		}

		return p.store.RecordDraftSectionVersion(ctx, tx, services.SectionSnapshot{
			DraftSectionID: out.ID,
			Version:        out.Version,
			Status:         out.Status,
			Content:        out.Content,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// citationRefs pairs every requested ledger entry id with its citation key
// for validation, preserving the request order.
func citationRefs(ids []uuid.UUID, entries []*types.LedgerEntry) []citations.Ref {
	byID := make(map[uuid.UUID]*types.LedgerEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	refs := make([]citations.Ref, 0, len(ids))
	for _, id := range ids {
		citationID := id.String()
		if e, ok := byID[id]; ok {
			citationID = e.CitationKey
		}
		refs = append(refs, citations.Ref{CitationID: citationID, LedgerEntryID: id})
	}
	return refs
}
