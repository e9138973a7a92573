package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/clipforge/internal/client"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/polling"
	"github.com/raphaelgruber/clipforge/internal/tracker"
)

// MaxIdeasPerBatch is the largest accepted batch size.
const MaxIdeasPerBatch = 20

// InvokeResult describes what happened to a stage command.
type InvokeResult struct {
	RequestID string
	// Duplicate is set when a request for the same stage was already
	// outstanding; no command was sent and the state was refetched instead.
	Duplicate bool
	Job       *models.JobAccepted
}

// GenerationService issues generation commands and reconciles their outcome
// through the workspace.
type GenerationService struct {
	backend Backend
	ws      *Workspace
	tracker *tracker.Tracker
	notices *notify.Center
	logger  *slog.Logger

	baseline atomic.Int64
}

// NewGenerationService creates a generation service. A nil tracker, notice
// center or logger gets a fresh default.
func NewGenerationService(backend Backend, ws *Workspace, tr *tracker.Tracker, notices *notify.Center, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	if tr == nil {
		tr = tracker.New()
	}
	if notices == nil {
		notices = notify.NewCenter(notify.DefaultTTL, logger)
	}
	return &GenerationService{
		backend: backend,
		ws:      ws,
		tracker: tr,
		notices: notices,
		logger:  logger,
	}
}

// Tracker returns the pending request tracker.
func (s *GenerationService) Tracker() *tracker.Tracker {
	return s.tracker
}

// Notices returns the notice center.
func (s *GenerationService) Notices() *notify.Center {
	return s.notices
}

// Workspace returns the workspace the service refreshes.
func (s *GenerationService) Workspace() *Workspace {
	return s.ws
}

// Board resolves ideaID's stage board with actions bound to this service.
func (s *GenerationService) Board(ideaID string) (pipeline.Board, bool) {
	return s.ws.Board(ideaID, s.tracker, s)
}

// Invoke implements pipeline.Invoker.
func (s *GenerationService) Invoke(ctx context.Context, ideaID string, stage pipeline.Stage, regenerate bool) error {
	_, err := s.InvokeStage(ctx, ideaID, stage, regenerate)
	return err
}

// InvokeStage triggers one pipeline stage for an idea.
//
// A second request for a stage that is already pending is answered with a
// refetch instead of a command. On submission failure the pending entry is
// cleared at once and a notice is raised; on success it is cleared after
// the idea list, selected detail and run logs have been refetched.
func (s *GenerationService) InvokeStage(ctx context.Context, ideaID string, stage pipeline.Stage, regenerate bool) (*InvokeResult, error) {
	if ideaID == "" {
		return nil, &SubmissionError{Op: "generate", Stage: stage, Err: fmt.Errorf("%w: idea id is required", ErrInvalidInput)}
	}
	if !stage.AcceptsRegenerate() {
		regenerate = false
	}

	if entry, ok := s.tracker.Get(ideaID, stage); ok {
		return s.duplicate(ctx, entry), nil
	}

	requestID := uuid.NewString()
	key := tracker.Key{IdeaID: ideaID, Stage: stage, Regenerate: regenerate}
	if !s.tracker.MarkPending(key, requestID) {
		entry, _ := s.tracker.Get(ideaID, stage)
		return s.duplicate(ctx, entry), nil
	}

	logger := s.logger.With("request_id", requestID, "idea_id", ideaID, "stage", stage, "regenerate", regenerate)
	logger.Info("submitting stage")

	job, err := s.backend.GenerateStage(client.WithRequestID(ctx, requestID), ideaID, stage, regenerate)
	if err != nil {
		s.tracker.Clear(key)
		subErr := &SubmissionError{Op: "generate", IdeaID: ideaID, Stage: stage, RequestID: requestID, Err: err}
		logger.Warn("stage submission failed", "error", err)
		reportSubmission(s.notices, subErr)
		return nil, subErr
	}

	logger.Info("stage accepted", "job_id", job.JobID)
	_ = s.ws.Refresh(ctx)
	s.tracker.Clear(key)
	s.ws.Kick()

	return &InvokeResult{RequestID: requestID, Job: job}, nil
}

func (s *GenerationService) duplicate(ctx context.Context, entry tracker.Entry) *InvokeResult {
	s.logger.Debug("stage already pending, refetching",
		"request_id", entry.RequestID, "idea_id", entry.Key.IdeaID, "stage", entry.Key.Stage)
	_ = s.ws.Refresh(ctx)
	return &InvokeResult{RequestID: entry.RequestID, Duplicate: true}
}

// ValidateIdeasInput checks a batch request before it is sent.
func ValidateIdeasInput(input models.GenerateIdeasInput) error {
	switch {
	case strings.TrimSpace(input.PersonaID) == "":
		return fmt.Errorf("%w: persona is required", ErrInvalidInput)
	case strings.TrimSpace(input.Topic) == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidInput)
	case input.Count < 1 || input.Count > MaxIdeasPerBatch:
		return fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidInput, MaxIdeasPerBatch, input.Count)
	}
	return nil
}

// GenerateIdeas submits a batch idea generation for the workspace's project.
// Completion is detected against the idea count and run logs at submission
// time; see Workspace.Waiting.
func (s *GenerationService) GenerateIdeas(ctx context.Context, input models.GenerateIdeasInput) (*models.JobAccepted, error) {
	projectID := s.ws.ProjectID()
	if err := ValidateIdeasInput(input); err != nil {
		subErr := &SubmissionError{Op: "generate ideas", Err: err}
		reportSubmission(s.notices, subErr)
		return nil, subErr
	}
	if err := s.ws.ensureBaseline(ctx); err != nil {
		subErr := &SubmissionError{Op: "generate ideas", Err: err}
		reportSubmission(s.notices, subErr)
		return nil, subErr
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "project_id", projectID)

	s.ws.beginBatch()
	baseline := s.ws.detector.Baseline()
	s.baseline.Store(int64(baseline))
	logger.Info("submitting idea batch", "count", input.Count, "baseline", baseline)

	job, err := s.backend.GenerateIdeas(client.WithRequestID(ctx, requestID), projectID, input)
	if err != nil {
		s.ws.abortBatch()
		subErr := &SubmissionError{Op: "generate ideas", RequestID: requestID, Err: err}
		logger.Warn("idea batch submission failed", "error", err)
		reportSubmission(s.notices, subErr)
		return nil, subErr
	}

	logger.Info("idea batch accepted", "job_id", job.JobID)
	s.notices.Push(notify.LevelInfo, fmt.Sprintf("Generating %d ideas about %q", input.Count, input.Topic))
	_ = s.ws.Refresh(ctx)
	s.ws.Kick()
	return job, nil
}

// BatchBaseline returns the idea count recorded when the last batch was
// submitted. It survives the batch completing.
func (s *GenerationService) BatchBaseline() int {
	return int(s.baseline.Load())
}

// WaitBatch refetches until the outstanding batch completes. A positive
// timeout bounds the wait from the moment the batch started; expiry returns
// ErrWaitTimeout and leaves the batch outstanding.
func (s *GenerationService) WaitBatch(ctx context.Context, interval, timeout time.Duration) error {
	return s.wait(ctx, interval, timeout, s.ws.WaitingSince(), func(ctx context.Context) (bool, error) {
		if err := s.ws.RefreshIdeas(ctx); err != nil {
			return true, err
		}
		if err := s.ws.RefreshLogs(ctx); err != nil {
			return true, err
		}
		return s.ws.Waiting(), nil
	})
}

// WaitIdle refetches ideaID until neither its summary nor its history has
// queued or running work.
func (s *GenerationService) WaitIdle(ctx context.Context, ideaID string, interval, timeout time.Duration) (*models.IdeaDetails, error) {
	var detail *models.IdeaDetails
	err := s.wait(ctx, interval, timeout, time.Now(), func(ctx context.Context) (bool, error) {
		d, err := s.backend.GetIdea(ctx, ideaID)
		if err != nil {
			return true, fmt.Errorf("get idea %s: %w", ideaID, err)
		}
		detail = d
		return polling.IdeaActive(d.Idea) || polling.IdeaDetailActive(d), nil
	})
	return detail, err
}

func (s *GenerationService) wait(ctx context.Context, interval, timeout time.Duration, since time.Time, check func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = polling.DefaultInterval
	}
	for {
		busy, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("refetch failed while waiting", "error", err)
		}
		if err == nil && !busy {
			return nil
		}
		if timeout > 0 && time.Since(since) >= timeout {
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
