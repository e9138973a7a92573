package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/raphaelgruber/clipforge/internal/client"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("fake: not found")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func terminalIdea(id string) models.Idea {
	return models.Idea{ID: id, ProjectID: "p1", Status: models.StatusSucceeded}
}

func newGeneration(t *testing.T, backend *fakeBackend) *GenerationService {
	t.Helper()
	ws := NewWorkspace(WorkspaceOptions{
		ProjectID:    "p1",
		Backend:      backend,
		PollInterval: 5 * time.Millisecond,
		Logger:       quietLogger(),
	})
	return NewGenerationService(backend, ws, tracker.New(), notify.NewCenter(time.Minute, quietLogger()), quietLogger())
}

func TestInvokeStageSuccess(t *testing.T) {
	backend := newFakeBackend()
	backend.setIdeas([]models.Idea{terminalIdea("i1")})
	svc := newGeneration(t, backend)

	var pendingDuringRefresh bool
	backend.onList = func() {
		pendingDuringRefresh = svc.Tracker().IsStagePending("i1", pipeline.StageCaption)
	}

	res, err := svc.InvokeStage(context.Background(), "i1", pipeline.StageCaption, true)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "job-caption", res.Job.JobID)

	assert.Equal(t, []stageCall{{"i1", pipeline.StageCaption, true}}, backend.stageCalls)
	assert.True(t, pendingDuringRefresh, "entry stays pending until the refetch completes")
	assert.Zero(t, svc.Tracker().Len())

	list, logs, _ := backend.calls()
	assert.Equal(t, 1, list)
	assert.Equal(t, 1, logs)
}

func TestInvokeStageDuplicateIsStatusQuery(t *testing.T) {
	backend := newFakeBackend()
	svc := newGeneration(t, backend)
	svc.Tracker().MarkPending(tracker.Key{IdeaID: "i1", Stage: pipeline.StageScript, Regenerate: true}, "req-1")

	res, err := svc.InvokeStage(context.Background(), "i1", pipeline.StageScript, false)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Empty(t, backend.stageCalls)

	list, _, _ := backend.calls()
	assert.Equal(t, 1, list, "duplicate refetches instead of submitting")
	assert.True(t, svc.Tracker().IsStagePending("i1", pipeline.StageScript))
}

func TestInvokeStageSubmissionFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.stageErr = errors.New("connection refused")
	svc := newGeneration(t, backend)
	svc.Tracker().MarkPending(tracker.Key{IdeaID: "i2", Stage: pipeline.StageScript}, "other")

	_, err := svc.InvokeStage(context.Background(), "i1", pipeline.StageScript, false)
	require.Error(t, err)

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, pipeline.StageScript, subErr.Stage)
	assert.NotEmpty(t, subErr.RequestID)

	assert.False(t, svc.Tracker().IsStagePending("i1", pipeline.StageScript))
	assert.True(t, svc.Tracker().IsStagePending("i2", pipeline.StageScript), "unrelated entry untouched")

	notices := svc.Notices().Active()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)

	list, _, _ := backend.calls()
	assert.Zero(t, list, "no refetch after a submission failure")
}

func TestInvokeStageRejectionNotice(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantRejected bool
		wantLevel    notify.Level
	}{
		{"validation", &client.APIError{StatusCode: 422, Message: "prompt missing"}, true, notify.LevelWarning},
		{"conflict", &client.APIError{StatusCode: 409, Message: "already running"}, true, notify.LevelWarning},
		{"server error", &client.APIError{StatusCode: 502, Message: "bad gateway"}, false, notify.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.stageErr = tt.err
			svc := newGeneration(t, backend)

			_, err := svc.InvokeStage(context.Background(), "i1", pipeline.StageScript, false)
			var subErr *SubmissionError
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, tt.wantRejected, subErr.Rejected())

			notices := svc.Notices().Active()
			require.Len(t, notices, 1)
			assert.Equal(t, tt.wantLevel, notices[0].Level)
		})
	}
}

func TestInvokeStagePromptDropsRegenerate(t *testing.T) {
	backend := newFakeBackend()
	svc := newGeneration(t, backend)

	_, err := svc.InvokeStage(context.Background(), "i1", pipeline.StageImagePrompt, true)
	require.NoError(t, err)
	assert.Equal(t, []stageCall{{"i1", pipeline.StageImagePrompt, false}}, backend.stageCalls)
}

func TestInvokeStageRequiresIdea(t *testing.T) {
	svc := newGeneration(t, newFakeBackend())
	_, err := svc.InvokeStage(context.Background(), "", pipeline.StageScript, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBoardActionsInvokeService(t *testing.T) {
	backend := newFakeBackend()
	backend.setIdeas([]models.Idea{terminalIdea("i1")})
	svc := newGeneration(t, backend)
	require.NoError(t, svc.Workspace().RefreshIdeas(context.Background()))

	board, ok := svc.Board("i1")
	require.True(t, ok)
	script := board.Stage(pipeline.StageScript)
	require.False(t, script.Action.Disabled)
	require.NotNil(t, script.Action.Invoke)

	require.NoError(t, script.Action.Invoke(context.Background()))
	assert.Equal(t, []stageCall{{"i1", pipeline.StageScript, false}}, backend.stageCalls)

	_, ok = svc.Board("missing")
	assert.False(t, ok)
}

func TestValidateIdeasInput(t *testing.T) {
	valid := models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 5, Format: "reel"}
	tests := []struct {
		name    string
		mutate  func(*models.GenerateIdeasInput)
		wantErr bool
	}{
		{"valid", func(*models.GenerateIdeasInput) {}, false},
		{"max count", func(in *models.GenerateIdeasInput) { in.Count = MaxIdeasPerBatch }, false},
		{"no persona", func(in *models.GenerateIdeasInput) { in.PersonaID = " " }, true},
		{"no topic", func(in *models.GenerateIdeasInput) { in.Topic = "" }, true},
		{"zero count", func(in *models.GenerateIdeasInput) { in.Count = 0 }, true},
		{"too many", func(in *models.GenerateIdeasInput) { in.Count = MaxIdeasPerBatch + 1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := ValidateIdeasInput(in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateIdeasDetectsCompletion(t *testing.T) {
	backend := newFakeBackend()
	backend.setIdeas([]models.Idea{terminalIdea("i1"), terminalIdea("i2")})
	svc := newGeneration(t, backend)
	ws := svc.Workspace()
	ctx := context.Background()

	_, err := svc.GenerateIdeas(ctx, models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 5})
	require.NoError(t, err)
	assert.True(t, ws.Waiting())
	assert.Equal(t, 2, ws.detector.Baseline())
	assert.True(t, ws.Active(), "waiting keeps the list polling")

	ideas := []models.Idea{terminalIdea("i1"), terminalIdea("i2")}
	for _, id := range []string{"i3", "i4", "i5", "i6", "i7"} {
		ideas = append(ideas, terminalIdea(id))
	}
	backend.setIdeas(ideas)
	require.NoError(t, ws.RefreshIdeas(ctx))
	assert.False(t, ws.Waiting())
	assert.False(t, ws.Active())
}

func TestGenerateIdeasKeepsBaselineWhenBatchLandsImmediately(t *testing.T) {
	backend := newFakeBackend()
	backend.setIdeas([]models.Idea{terminalIdea("i1"), terminalIdea("i2")})
	backend.instantBatch = []models.Idea{terminalIdea("i3"), terminalIdea("i4"), terminalIdea("i5")}
	svc := newGeneration(t, backend)

	_, err := svc.GenerateIdeas(context.Background(), models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 3})
	require.NoError(t, err)

	// The post-submit refresh already saw the new ideas.
	assert.False(t, svc.Workspace().Waiting())
	assert.Equal(t, 5, svc.Workspace().IdeaCount())
	assert.Equal(t, 2, svc.BatchBaseline())
}

func TestGenerateIdeasCompletesOnRunLog(t *testing.T) {
	backend := newFakeBackend()
	backend.setLogs([]models.AiRunLog{{ID: "old", ProjectID: "p1", Operation: models.OpIdeas, Status: models.StatusSucceeded}})
	svc := newGeneration(t, backend)
	ctx := context.Background()

	_, err := svc.GenerateIdeas(ctx, models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 3})
	require.NoError(t, err)
	require.True(t, svc.Workspace().Waiting())

	backend.setLogs([]models.AiRunLog{
		{ID: "new", ProjectID: "p1", Operation: models.OpIdeas, Status: models.StatusFailed},
		{ID: "old", ProjectID: "p1", Operation: models.OpIdeas, Status: models.StatusSucceeded},
	})
	require.NoError(t, svc.Workspace().RefreshLogs(ctx))
	assert.False(t, svc.Workspace().Waiting())
}

func TestGenerateIdeasAbortsOnFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.ideasErr = errors.New("backend down")
	svc := newGeneration(t, backend)

	_, err := svc.GenerateIdeas(context.Background(), models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 3})
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.False(t, svc.Workspace().Waiting())
	assert.Len(t, svc.Notices().Active(), 1)
}

func TestGenerateIdeasRejectsInvalidInput(t *testing.T) {
	backend := newFakeBackend()
	svc := newGeneration(t, backend)

	_, err := svc.GenerateIdeas(context.Background(), models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 21})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, backend.ideaBatches)
	assert.False(t, svc.Workspace().Waiting())
}

func TestWaitBatchTimeout(t *testing.T) {
	backend := newFakeBackend()
	svc := newGeneration(t, backend)
	ctx := context.Background()

	_, err := svc.GenerateIdeas(ctx, models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 3})
	require.NoError(t, err)

	err = svc.WaitBatch(ctx, 5*time.Millisecond, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.True(t, svc.Workspace().Waiting(), "timeout does not resolve the batch")
}

func TestWaitBatchCompletes(t *testing.T) {
	backend := newFakeBackend()
	svc := newGeneration(t, backend)
	ctx := context.Background()

	_, err := svc.GenerateIdeas(ctx, models.GenerateIdeasInput{PersonaID: "per1", Topic: "coffee", Count: 1})
	require.NoError(t, err)

	backend.onList = func() { backend.setIdeas([]models.Idea{terminalIdea("i1")}) }
	require.NoError(t, svc.WaitBatch(ctx, 5*time.Millisecond, time.Second))
	assert.False(t, svc.Workspace().Waiting())
}

func TestWaitIdle(t *testing.T) {
	backend := newFakeBackend()
	backend.details["i1"] = &models.IdeaDetails{
		Idea:    terminalIdea("i1"),
		Scripts: []models.Script{{ID: "s1", Status: models.StatusRunning}},
	}
	svc := newGeneration(t, backend)

	_, err := svc.WaitIdle(context.Background(), "i1", 5*time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)

	backend.mu.Lock()
	backend.details["i1"].Scripts[0].Status = models.StatusSucceeded
	backend.mu.Unlock()

	d, err := svc.WaitIdle(context.Background(), "i1", 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, d.Scripts[0].Status)
}
