package services

import (
	"github.com/google/uuid"

	"github.com/inkwellhq/inkwell-backend/internal/sse"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

type JobNotifier interface {
	JobCreated(projectID uuid.UUID, job *types.ComposeJob)
	JobProgress(projectID uuid.UUID, job *types.ComposeJob, stage string, progress float64, message string)
	JobFailed(projectID uuid.UUID, job *types.ComposeJob, stage string, errorMessage string)
	JobDone(projectID uuid.UUID, job *types.ComposeJob)
	SuggestionCreated(projectID uuid.UUID, suggestion *types.DraftSuggestion)
	SuggestionResolved(projectID uuid.UUID, suggestion *types.DraftSuggestion)
	SectionRolledBack(projectID uuid.UUID, section *types.DraftSection)
}

type jobNotifier struct {
	hub *sse.SSEHub
}

func NewJobNotifier(hub *sse.SSEHub) JobNotifier {
	return &jobNotifier{hub: hub}
}

func (n *jobNotifier) JobCreated(projectID uuid.UUID, job *types.ComposeJob) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventJobCreated,
		Data:    map[string]any{"job": job},
	})
}

func (n *jobNotifier) JobProgress(projectID uuid.UUID, job *types.ComposeJob, stage string, progress float64, message string) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventJobProgress,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"progress": progress,
			"message":  message,
		},
	})
}

func (n *jobNotifier) JobFailed(projectID uuid.UUID, job *types.ComposeJob, stage string, errorMessage string) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventJobFailed,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"error":    errorMessage,
		},
	})
}

func (n *jobNotifier) JobDone(projectID uuid.UUID, job *types.ComposeJob) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventJobDone,
		Data:    map[string]any{"job": job},
	})
}

func (n *jobNotifier) SuggestionCreated(projectID uuid.UUID, suggestion *types.DraftSuggestion) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventSuggestionCreated,
		Data:    map[string]any{"suggestion": suggestion},
	})
}

func (n *jobNotifier) SuggestionResolved(projectID uuid.UUID, suggestion *types.DraftSuggestion) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventSuggestionResolved,
		Data:    map[string]any{"suggestion": suggestion},
	})
}

func (n *jobNotifier) SectionRolledBack(projectID uuid.UUID, section *types.DraftSection) {
	n.hub.Broadcast(sse.SSEMessage{
		Channel: projectID.String(),
		Event:   sse.SSEEventSectionRolledBack,
		Data:    map[string]any{"section": section},
	})
}
