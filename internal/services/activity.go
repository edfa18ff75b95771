package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// ActivityService appends audit records. Emit is fire-and-forget: a failed
// append is logged and never fails the calling operation.
type ActivityService interface {
	Emit(ctx context.Context, projectID uuid.UUID, actor, action string, payload map[string]any)
}

type activityService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ActivityEventRepo
}

func NewActivityService(db *gorm.DB, baseLog *logger.Logger, repo repos.ActivityEventRepo) ActivityService {
	return &activityService{
		db:   db,
		log:  baseLog.With("service", "ActivityService"),
		repo: repo,
	}
}

func (s *activityService) Emit(ctx context.Context, projectID uuid.UUID, actor, action string, payload map[string]any) {
	if projectID == uuid.Nil || action == "" {
		return
	}
	if actor == "" {
		actor = "system"
	}
	var data datatypes.JSON
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			s.log.Warn("Failed to marshal activity payload", "action", action, "error", err)
		} else {
			data = datatypes.JSON(b)
		}
	}
	event := &types.ActivityEvent{
		ID:        uuid.New(),
		ProjectID: projectID,
		Actor:     actor,
		Action:    action,
		Payload:   data,
	}
	if _, err := s.repo.Create(ctx, nil, event); err != nil {
		s.log.Warn("Failed to append activity event", "action", action, "project_id", projectID, "error", err)
	}
}
