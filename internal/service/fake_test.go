package service

import (
	"context"
	"sync"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
)

type stageCall struct {
	IdeaID     string
	Stage      pipeline.Stage
	Regenerate bool
}

// fakeBackend is an in-memory Backend and DraftBackend.
type fakeBackend struct {
	mu sync.Mutex

	ideas   []models.Idea
	details map[string]*models.IdeaDetails
	logs    []models.AiRunLog
	drafts  map[string]*models.PostDraft

	stageErr error
	ideasErr error
	listErr  error
	draftErr error

	stageCalls   []stageCall
	ideaBatches  []models.GenerateIdeasInput
	listCalls    int
	logCalls     int
	detailCalls  int
	approvals    []string
	assemblies   []models.AssembleDraftInput
	draftActions []string

	onList func()

	// instantBatch is appended to the idea list as soon as a batch is accepted.
	instantBatch []models.Idea
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		details: make(map[string]*models.IdeaDetails),
		drafts:  make(map[string]*models.PostDraft),
	}
}

func (f *fakeBackend) setIdeas(ideas []models.Idea) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ideas = ideas
}

func (f *fakeBackend) setLogs(logs []models.AiRunLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = logs
}

func (f *fakeBackend) calls() (list, logs, detail int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.logCalls, f.detailCalls
}

func (f *fakeBackend) GenerateIdeas(_ context.Context, _ string, input models.GenerateIdeasInput) (*models.JobAccepted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ideasErr != nil {
		return nil, f.ideasErr
	}
	f.ideaBatches = append(f.ideaBatches, input)
	f.ideas = append(f.ideas, f.instantBatch...)
	return &models.JobAccepted{JobID: "job-ideas", Status: models.StatusQueued}, nil
}

func (f *fakeBackend) GenerateStage(_ context.Context, ideaID string, stage pipeline.Stage, regenerate bool) (*models.JobAccepted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	f.stageCalls = append(f.stageCalls, stageCall{ideaID, stage, regenerate})
	return &models.JobAccepted{JobID: "job-" + string(stage), Status: models.StatusQueued}, nil
}

func (f *fakeBackend) ListIdeas(context.Context, string) ([]models.Idea, error) {
	f.mu.Lock()
	f.listCalls++
	hook := f.onList
	ideas, err := append([]models.Idea(nil), f.ideas...), f.listErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ideas, err
}

func (f *fakeBackend) GetIdea(_ context.Context, ideaID string) (*models.IdeaDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[ideaID]
	if !ok {
		return &models.IdeaDetails{Idea: models.Idea{ID: ideaID, Status: models.StatusSucceeded}}, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeBackend) ListRunLogs(context.Context, string, int) ([]models.AiRunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	return append([]models.AiRunLog(nil), f.logs...), nil
}

func (f *fakeBackend) AssembleDraft(_ context.Context, ideaID string, input models.AssembleDraftInput) (*models.PostDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	f.assemblies = append(f.assemblies, input)
	d := &models.PostDraft{
		ID:             "d-" + ideaID,
		IdeaID:         ideaID,
		CaptionID:      input.CaptionID,
		SelectedAssets: input.AssetIDs,
		ScheduledAt:    input.ScheduledAt,
		Status:         models.DraftStatusDraft,
	}
	f.drafts[ideaID] = d
	return d, nil
}

func (f *fakeBackend) LatestDraft(_ context.Context, ideaID string) (*models.PostDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[ideaID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeBackend) setStatus(draftID, action string, status models.DraftStatus) (*models.PostDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	f.draftActions = append(f.draftActions, action)
	for _, d := range f.drafts {
		if d.ID == draftID {
			d.Status = status
			cp := *d
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeBackend) ModerateDraft(_ context.Context, draftID string) (*models.PostDraft, error) {
	d, err := f.setStatus(draftID, "moderate", models.DraftStatusDraft)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mod := &models.ModerationCheck{ID: "m1", PostDraftID: draftID, Status: models.ModerationPassed, CreatedAt: time.Now()}
	f.drafts[d.IdeaID].LatestModeration = mod
	d.LatestModeration = mod
	return d, nil
}

func (f *fakeBackend) ApproveDraft(_ context.Context, draftID, overrideReason string) (*models.PostDraft, error) {
	f.mu.Lock()
	f.approvals = append(f.approvals, overrideReason)
	f.mu.Unlock()
	return f.setStatus(draftID, "approve", models.DraftStatusApproved)
}

func (f *fakeBackend) UnapproveDraft(_ context.Context, draftID string) (*models.PostDraft, error) {
	return f.setStatus(draftID, "unapprove", models.DraftStatusDraft)
}

func (f *fakeBackend) MarkPublished(_ context.Context, draftID string) (*models.PostDraft, error) {
	return f.setStatus(draftID, "publish", models.DraftStatusPublished)
}

func (f *fakeBackend) ExportDraft(_ context.Context, draftID string) (*models.PostDraftExport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.drafts {
		if d.ID == draftID {
			return &models.PostDraftExport{Draft: *d, Idea: models.Idea{ID: d.IdeaID}}, nil
		}
	}
	return nil, errNotFound
}

// fakeEvents delivers one hint each time trigger receives.
type fakeEvents struct {
	trigger chan struct{}
}

func (e *fakeEvents) SubscribeEvents(ctx context.Context, projectID string, onEvent func(models.Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.trigger:
			if err := onEvent(models.Event{Type: "idea.updated", ProjectID: projectID}); err != nil {
				return err
			}
		}
	}
}
