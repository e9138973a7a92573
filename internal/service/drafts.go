package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/publish"
)

// DraftService runs the post draft workflow. Every lifecycle guard is
// checked locally first, so an invalid transition never reaches the backend.
type DraftService struct {
	backend DraftBackend
	notices *notify.Center
	logger  *slog.Logger
}

// NewDraftService creates a draft service.
func NewDraftService(backend DraftBackend, notices *notify.Center, logger *slog.Logger) *DraftService {
	if logger == nil {
		logger = slog.Default()
	}
	if notices == nil {
		notices = notify.NewCenter(notify.DefaultTTL, logger)
	}
	return &DraftService{backend: backend, notices: notices, logger: logger}
}

// Latest returns the idea's current draft, or publish.ErrNoDraft.
func (s *DraftService) Latest(ctx context.Context, ideaID string) (*models.PostDraft, error) {
	d, err := s.backend.LatestDraft(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get draft for idea %s: %w", ideaID, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w for idea %s", publish.ErrNoDraft, ideaID)
	}
	return d, nil
}

// Assemble builds or rebuilds the idea's draft from a. When the persisted
// draft already matches, it is returned with publish.ErrNoChanges and no
// command is sent. Approved and published drafts are refused until unapproved.
func (s *DraftService) Assemble(ctx context.Context, ideaID string, a publish.Assembly) (*models.PostDraft, error) {
	current, err := s.backend.LatestDraft(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get draft for idea %s: %w", ideaID, err)
	}
	if err := publish.CanReassemble(current); err != nil {
		s.notices.Push(notify.LevelWarning, err.Error())
		return current, err
	}
	if !publish.HasChanges(a, current) {
		return current, publish.ErrNoChanges
	}

	d, err := s.backend.AssembleDraft(ctx, ideaID, a.Input())
	if err != nil {
		subErr := &SubmissionError{Op: "assemble draft for", IdeaID: ideaID, Err: err}
		reportSubmission(s.notices, subErr)
		return nil, subErr
	}
	s.logger.Info("draft assembled", "idea_id", ideaID, "draft_id", d.ID, "assets", len(d.SelectedAssets))
	s.notices.Push(notify.LevelSuccess, "Draft assembled")
	return d, nil
}

// Moderate runs the automated checks on the idea's draft.
func (s *DraftService) Moderate(ctx context.Context, ideaID string) (*models.PostDraft, error) {
	return s.transition(ctx, ideaID, publish.ActionModerate, "", func(d *models.PostDraft) (*models.PostDraft, error) {
		return s.backend.ModerateDraft(ctx, d.ID)
	})
}

// Approve approves the idea's draft. A failed moderation needs an override
// reason of at least publish.MinOverrideReasonLen characters.
func (s *DraftService) Approve(ctx context.Context, ideaID, overrideReason string) (*models.PostDraft, error) {
	reason := strings.TrimSpace(overrideReason)
	return s.transition(ctx, ideaID, publish.ActionApprove, reason, func(d *models.PostDraft) (*models.PostDraft, error) {
		return s.backend.ApproveDraft(ctx, d.ID, overrideFor(d, reason))
	})
}

// Unapprove returns an approved draft to draft status.
func (s *DraftService) Unapprove(ctx context.Context, ideaID string) (*models.PostDraft, error) {
	return s.transition(ctx, ideaID, publish.ActionUnapprove, "", func(d *models.PostDraft) (*models.PostDraft, error) {
		return s.backend.UnapproveDraft(ctx, d.ID)
	})
}

// MarkPublished records that an approved draft went out.
func (s *DraftService) MarkPublished(ctx context.Context, ideaID string) (*models.PostDraft, error) {
	return s.transition(ctx, ideaID, publish.ActionMarkPublished, "", func(d *models.PostDraft) (*models.PostDraft, error) {
		return s.backend.MarkPublished(ctx, d.ID)
	})
}

// Export returns the denormalized view of the idea's draft.
func (s *DraftService) Export(ctx context.Context, ideaID string) (*models.PostDraftExport, error) {
	d, err := s.Latest(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	exp, err := s.backend.ExportDraft(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("export draft %s: %w", d.ID, err)
	}
	return exp, nil
}

func (s *DraftService) transition(ctx context.Context, ideaID string, action publish.Action, reason string, call func(*models.PostDraft) (*models.PostDraft, error)) (*models.PostDraft, error) {
	d, err := s.Latest(ctx, ideaID)
	if err != nil {
		if errors.Is(err, publish.ErrNoDraft) {
			s.notices.Push(notify.LevelWarning, err.Error())
		}
		return nil, err
	}
	if err := publish.Guard(action, d, reason); err != nil {
		s.notices.Push(notify.LevelWarning, err.Error())
		return d, err
	}

	next, err := call(d)
	if err != nil {
		subErr := &SubmissionError{Op: string(action), IdeaID: ideaID, Err: err}
		s.logger.Warn("draft action rejected", "action", action, "draft_id", d.ID, "error", err)
		reportSubmission(s.notices, subErr)
		return d, subErr
	}

	attrs := []any{"action", action, "draft_id", d.ID, "from", d.Status, "to", next.Status}
	if action == publish.ActionApprove {
		if r := overrideFor(d, reason); r != "" {
			attrs = append(attrs, "override_reason", r)
		}
	}
	s.logger.Info("draft transition", attrs...)
	s.notices.Push(notify.LevelSuccess, fmt.Sprintf("Draft %s: %s", action, next.Status))
	return next, nil
}

// overrideFor returns the reason to send with an approval: only a failed
// moderation carries one.
func overrideFor(d *models.PostDraft, reason string) string {
	if d.LatestModeration == nil || d.LatestModeration.Status != models.ModerationFailed {
		return ""
	}
	return reason
}
