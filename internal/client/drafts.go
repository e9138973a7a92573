package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// AssembleDraft builds a new draft snapshot from an idea.
func (c *Client) AssembleDraft(ctx context.Context, ideaID string, input models.AssembleDraftInput) (*models.PostDraft, error) {
	return c.draftCall(ctx, http.MethodPost, pathf("/api/ideas/%s/post-draft", ideaID), input)
}

// LatestDraft returns the current draft of an idea, or nil if none was assembled.
func (c *Client) LatestDraft(ctx context.Context, ideaID string) (*models.PostDraft, error) {
	d, err := c.draftCall(ctx, http.MethodGet, pathf("/api/ideas/%s/post-draft", ideaID), nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// ModerateDraft runs the moderation checks on a draft.
func (c *Client) ModerateDraft(ctx context.Context, draftID string) (*models.PostDraft, error) {
	return c.draftCall(ctx, http.MethodPost, pathf("/api/post-drafts/%s/moderate", draftID), nil)
}

type approveRequest struct {
	OverrideReason *string `json:"overrideReason,omitempty"`
}

// ApproveDraft approves a draft. overrideReason is sent only when non-empty.
func (c *Client) ApproveDraft(ctx context.Context, draftID, overrideReason string) (*models.PostDraft, error) {
	var req approveRequest
	if overrideReason != "" {
		req.OverrideReason = &overrideReason
	}
	return c.draftCall(ctx, http.MethodPost, pathf("/api/post-drafts/%s/approve", draftID), req)
}

// UnapproveDraft returns an approved draft to draft status.
func (c *Client) UnapproveDraft(ctx context.Context, draftID string) (*models.PostDraft, error) {
	return c.draftCall(ctx, http.MethodPost, pathf("/api/post-drafts/%s/unapprove", draftID), nil)
}

// MarkPublished confirms that an approved draft was published.
func (c *Client) MarkPublished(ctx context.Context, draftID string) (*models.PostDraft, error) {
	return c.draftCall(ctx, http.MethodPost, pathf("/api/post-drafts/%s/publish/mark", draftID), nil)
}

// ExportDraft returns the denormalized export view of a draft.
func (c *Client) ExportDraft(ctx context.Context, draftID string) (*models.PostDraftExport, error) {
	var exp models.PostDraftExport
	if err := c.Execute(ctx, http.MethodGet, pathf("/api/post-drafts/%s/export", draftID), nil, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (c *Client) draftCall(ctx context.Context, method, path string, body any) (*models.PostDraft, error) {
	var d models.PostDraft
	if err := c.Execute(ctx, method, path, body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
