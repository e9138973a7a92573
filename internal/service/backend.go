package service

import (
	"context"

	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
)

// Backend is the part of the backend API the workspace and the
// generation service need. *client.Client implements it.
type Backend interface {
	GenerateIdeas(ctx context.Context, projectID string, input models.GenerateIdeasInput) (*models.JobAccepted, error)
	GenerateStage(ctx context.Context, ideaID string, stage pipeline.Stage, regenerate bool) (*models.JobAccepted, error)
	ListIdeas(ctx context.Context, projectID string) ([]models.Idea, error)
	GetIdea(ctx context.Context, ideaID string) (*models.IdeaDetails, error)
	ListRunLogs(ctx context.Context, projectID string, limit int) ([]models.AiRunLog, error)
}

// DraftBackend is the post draft part of the backend API.
type DraftBackend interface {
	AssembleDraft(ctx context.Context, ideaID string, input models.AssembleDraftInput) (*models.PostDraft, error)
	LatestDraft(ctx context.Context, ideaID string) (*models.PostDraft, error)
	ModerateDraft(ctx context.Context, draftID string) (*models.PostDraft, error)
	ApproveDraft(ctx context.Context, draftID, overrideReason string) (*models.PostDraft, error)
	UnapproveDraft(ctx context.Context, draftID string) (*models.PostDraft, error)
	MarkPublished(ctx context.Context, draftID string) (*models.PostDraft, error)
	ExportDraft(ctx context.Context, draftID string) (*models.PostDraftExport, error)
}

// EventSource streams push hints for a project.
type EventSource interface {
	SubscribeEvents(ctx context.Context, projectID string, onEvent func(models.Event) error) error
}
