package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

const ComposeModeLiteratureReview = "literature_review"

type ComposeSectionInput struct {
	SectionID       *uuid.UUID  `json:"section_id,omitempty"`
	SectionType     string      `json:"section_type"`
	Title           string      `json:"title,omitempty"`
	Instructions    string      `json:"instructions,omitempty"`
	Outline         []string    `json:"outline,omitempty"`
	LedgerEntryIDs  []uuid.UUID `json:"ledger_entry_ids"`
	TargetWordCount int         `json:"target_word_count,omitempty"`
}

type ComposeJobInput struct {
	ProjectID        uuid.UUID             `json:"project_id"`
	Mode             string                `json:"mode"`
	Sections         []ComposeSectionInput `json:"sections"`
	ResearchQuestion string                `json:"research_question,omitempty"`
	NarrativeVoice   string                `json:"narrative_voice,omitempty"`
	RequestID        string                `json:"request_id,omitempty"`
	Actor            string                `json:"actor,omitempty"`
}

// JobQueue is the submission seam between job creation and the worker. With
// the DB-backed queue the committed row is the message, so Submit only has to
// confirm hand-off; a broker-backed implementation would publish here.
type JobQueue interface {
	Submit(ctx context.Context, job *types.ComposeJob) error
}

type dbJobQueue struct{}

func NewDBJobQueue() JobQueue { return dbJobQueue{} }

func (dbJobQueue) Submit(ctx context.Context, job *types.ComposeJob) error { return nil }

// BuildInitialState maps the job input 1:1, preserving order, into resumable
// per-section state. Pure and deterministic: an explicit sectionId becomes
// the state key (stable across retries); otherwise the key is positional,
// "{sectionType}-{1-based index}".
func BuildInitialState(in ComposeJobInput) *types.ComposeState {
	sections := make([]types.SectionState, 0, len(in.Sections))
	for i, sec := range in.Sections {
		key := ""
		if sec.SectionID != nil && *sec.SectionID != uuid.Nil {
			key = sec.SectionID.String()
		} else {
			key = fmt.Sprintf("%s-%d", sec.SectionType, i+1)
		}
		ids := make([]uuid.UUID, len(sec.LedgerEntryIDs))
		copy(ids, sec.LedgerEntryIDs)
		outline := make([]string, len(sec.Outline))
		copy(outline, sec.Outline)
		sections = append(sections, types.SectionState{
			Key:            key,
			SectionType:    sec.SectionType,
			Title:          sec.Title,
			Instructions:   sec.Instructions,
			Outline:        outline,
			LedgerEntryIDs: ids,
			TargetWords:    sec.TargetWordCount,
			Status:         types.SectionStatePending,
			Attempts:       0,
			DraftSectionID: sec.SectionID,
		})
	}
	return &types.ComposeState{
		CurrentSectionIndex: 0,
		Sections:            sections,
		ResearchQuestion:    in.ResearchQuestion,
		NarrativeVoice:      in.NarrativeVoice,
	}
}

// ValidateComposeJobInput rejects malformed job requests before anything is
// persisted.
func ValidateComposeJobInput(in ComposeJobInput) error {
	if in.ProjectID == uuid.Nil {
		return apperr.Validation("project id is required")
	}
	if in.Mode != ComposeModeLiteratureReview {
		return apperr.Validation(fmt.Sprintf("unsupported compose mode %q", in.Mode))
	}
	if len(in.Sections) == 0 {
		return apperr.Validation("at least one section is required")
	}
	seen := map[uuid.UUID]bool{}
	for i, sec := range in.Sections {
		if !types.SectionTypes[strings.TrimSpace(sec.SectionType)] {
			return apperr.Validation(fmt.Sprintf("section %d has unknown section type %q", i, sec.SectionType))
		}
		if len(sec.LedgerEntryIDs) == 0 {
			return apperr.Validation(fmt.Sprintf("section %d has no ledger entry ids", i))
		}
		for _, id := range sec.LedgerEntryIDs {
			if id == uuid.Nil {
				return apperr.Validation(fmt.Sprintf("section %d has an empty ledger entry id", i))
			}
		}
		if sec.SectionID != nil && *sec.SectionID != uuid.Nil {
			if seen[*sec.SectionID] {
				return apperr.Validation(fmt.Sprintf("section id %s appears more than once", sec.SectionID))
			}
			seen[*sec.SectionID] = true
		}
	}
	return nil
}

type ComposeService interface {
	EnqueueComposeJob(ctx context.Context, in ComposeJobInput) (*types.ComposeJob, error)
	GetComposeJob(ctx context.Context, projectID, jobID uuid.UUID) (*types.ComposeJob, error)
}

type composeService struct {
	db     *gorm.DB
	log    *logger.Logger
	jobs   repos.ComposeJobRepo
	queue  JobQueue
	notify JobNotifier
}

func NewComposeService(db *gorm.DB, baseLog *logger.Logger, jobs repos.ComposeJobRepo, queue JobQueue, notify JobNotifier) ComposeService {
	return &composeService{
		db:     db,
		log:    baseLog.With("service", "ComposeService"),
		jobs:   jobs,
		queue:  queue,
		notify: notify,
	}
}

func (s *composeService) EnqueueComposeJob(ctx context.Context, in ComposeJobInput) (*types.ComposeJob, error) {
	if err := ValidateComposeJobInput(in); err != nil {
		return nil, err
	}

	state := BuildInitialState(in)
	stateJSON, err := state.Encode()
	if err != nil {
		return nil, apperr.Validation("could not encode job state: " + err.Error())
	}

	job := &types.ComposeJob{
		ID:        uuid.New(),
		ProjectID: in.ProjectID,
		JobType:   types.JobTypeManuscriptCompose,
		Status:    types.JobStatusQueued,
		Progress:  0,
		State:     stateJSON,
		Retryable: true,
		RequestID: strings.TrimSpace(in.RequestID),
		Actor:     strings.TrimSpace(in.Actor),
	}
	if _, err := s.jobs.Create(ctx, nil, job); err != nil {
		return nil, apperr.Map("compose.enqueue", err)
	}

	if err := s.queue.Submit(ctx, job); err != nil {
		// The job row exists but never reached the queue; mark it failed so
		// it is not claimed, and surface the submission error.
		uErr := s.jobs.UpdateFields(ctx, nil, job.ID, map[string]interface{}{
			"status":    types.JobStatusFailed,
			"error":     err.Error(),
			"retryable": false,
		})
		if uErr != nil {
			s.log.Error("Failed to mark unsubmitted job failed", "job_id", job.ID, "error", uErr)
		}
		return nil, apperr.Map("compose.submit", err)
	}

	s.log.Info("Compose job enqueued", "job_id", job.ID, "project_id", job.ProjectID, "sections", len(state.Sections))
	if s.notify != nil {
		s.notify.JobCreated(job.ProjectID, job)
	}
	return job, nil
}

func (s *composeService) GetComposeJob(ctx context.Context, projectID, jobID uuid.UUID) (*types.ComposeJob, error) {
	job, err := s.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, apperr.Map("compose.get", err)
	}
	if job == nil || job.ProjectID != projectID {
		return nil, apperr.NotFound("compose job not found")
	}
	return job, nil
}
