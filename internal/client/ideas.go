package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
)

// GenerateIdeas queues batch idea generation for a project.
func (c *Client) GenerateIdeas(ctx context.Context, projectID string, input models.GenerateIdeasInput) (*models.JobAccepted, error) {
	var result models.JobAccepted
	if err := c.Execute(ctx, http.MethodPost, pathf("/api/projects/%s/ideas/generate", projectID), input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type stageRequest struct {
	Regenerate bool `json:"regenerate"`
}

// GenerateStage queues one stage of an idea. Prompt stages take no regenerate
// flag and always produce a new version.
func (c *Client) GenerateStage(ctx context.Context, ideaID string, stage pipeline.Stage, regenerate bool) (*models.JobAccepted, error) {
	segment := strings.ReplaceAll(string(stage), "_", "-")
	path := pathf("/api/ideas/%s/", ideaID) + segment

	var body any
	if stage.AcceptsRegenerate() {
		body = stageRequest{Regenerate: regenerate}
	}

	var result models.JobAccepted
	if err := c.Execute(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListIdeas returns the ideas of a project.
func (c *Client) ListIdeas(ctx context.Context, projectID string) ([]models.Idea, error) {
	var ideas []models.Idea
	if err := c.Execute(ctx, http.MethodGet, pathf("/api/projects/%s/ideas", projectID), nil, &ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

// GetIdea returns an idea with its full stage history.
func (c *Client) GetIdea(ctx context.Context, ideaID string) (*models.IdeaDetails, error) {
	var details models.IdeaDetails
	if err := c.Execute(ctx, http.MethodGet, pathf("/api/ideas/%s", ideaID), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// ListRunLogs returns the most recent AI run logs of a project.
func (c *Client) ListRunLogs(ctx context.Context, projectID string, limit int) ([]models.AiRunLog, error) {
	path := pathf("/api/projects/%s/ai-logs", projectID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var logs []models.AiRunLog
	if err := c.Execute(ctx, http.MethodGet, path, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
