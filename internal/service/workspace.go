package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/clipforge/internal/batch"
	"github.com/raphaelgruber/clipforge/internal/broadcast"
	"github.com/raphaelgruber/clipforge/internal/metrics"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/polling"
	"github.com/raphaelgruber/clipforge/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultRunLogLimit is how many run logs a refresh fetches.
const DefaultRunLogLimit = 50

// Poller names.
const (
	CollectionIdeas  = "ideas"
	CollectionDetail = "detail"
	CollectionLogs   = "logs"
)

// View is an immutable copy of the workspace state, published on every change.
// Loaded is set once both the idea list and the run logs were fetched.
type View struct {
	ProjectID  string
	Ideas      []models.Idea
	SelectedID string
	Detail     *models.IdeaDetails
	RunLogs    []models.AiRunLog
	Waiting    bool
	Loaded     bool
	UpdatedAt  time.Time
}

// WorkspaceOptions configures a Workspace.
type WorkspaceOptions struct {
	ProjectID    string
	Backend      Backend
	Detector     *batch.Detector
	Bookmarks    *store.Bookmarks
	Events       EventSource
	PollInterval time.Duration
	RunLogLimit  int
	Logger       *slog.Logger
}

// Workspace holds the latest snapshots of one project's idea list, selected
// idea detail and run logs, and keeps them fresh while work is running.
type Workspace struct {
	projectID string
	backend   Backend
	detector  *batch.Detector
	bookmarks *store.Bookmarks
	events    EventSource
	logLimit  int
	logger    *slog.Logger

	mu          sync.RWMutex
	ideas       []models.Idea
	ideasLoaded bool
	logs        []models.AiRunLog
	logsLoaded  bool
	selected    string
	detail      *models.IdeaDetails
	updatedAt   time.Time

	// pubMu orders read-then-publish so the topic never ends on a stale view.
	pubMu   sync.Mutex
	topic   *broadcast.Topic[View]
	pollers map[string]*polling.Poller
}

// NewWorkspace creates a workspace. Nothing is fetched until a Refresh or Run.
func NewWorkspace(opts WorkspaceOptions) *Workspace {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Detector == nil {
		opts.Detector = batch.NewDetector()
	}
	if opts.RunLogLimit <= 0 {
		opts.RunLogLimit = DefaultRunLogLimit
	}
	w := &Workspace{
		projectID: opts.ProjectID,
		backend:   opts.Backend,
		detector:  opts.Detector,
		bookmarks: opts.Bookmarks,
		events:    opts.Events,
		logLimit:  opts.RunLogLimit,
		logger:    opts.Logger.With("project_id", opts.ProjectID),
		topic:     broadcast.NewTopic[View](),
	}
	w.pollers = map[string]*polling.Poller{
		CollectionIdeas:  polling.NewPoller(CollectionIdeas, opts.PollInterval, w.pollIdeas, w.logger),
		CollectionDetail: polling.NewPoller(CollectionDetail, opts.PollInterval, w.pollDetail, w.logger),
		CollectionLogs:   polling.NewPoller(CollectionLogs, opts.PollInterval, w.pollLogs, w.logger),
	}
	return w
}

// ProjectID returns the project this workspace follows.
func (w *Workspace) ProjectID() string {
	return w.projectID
}

// RefreshIdeas refetches the idea list and feeds its length to the batch detector.
func (w *Workspace) RefreshIdeas(ctx context.Context) error {
	ideas, err := w.backend.ListIdeas(ctx, w.projectID)
	if err != nil {
		return fmt.Errorf("list ideas: %w", err)
	}
	if w.detector.ObserveIdeas(len(ideas)) {
		w.logger.Info("batch generation complete", "ideas", len(ideas))
	}

	w.mu.Lock()
	w.ideas = ideas
	w.ideasLoaded = true
	w.touchLocked()
	w.mu.Unlock()

	w.publish()
	return nil
}

// RefreshDetail refetches the selected idea's full history. With nothing
// selected it clears the detail.
func (w *Workspace) RefreshDetail(ctx context.Context) error {
	w.mu.RLock()
	ideaID := w.selected
	w.mu.RUnlock()

	if ideaID == "" {
		w.mu.Lock()
		w.detail = nil
		w.mu.Unlock()
		return nil
	}

	detail, err := w.backend.GetIdea(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("get idea %s: %w", ideaID, err)
	}

	w.mu.Lock()
	// Drop the response if the selection moved while it was in flight.
	if w.selected != ideaID {
		w.mu.Unlock()
		return nil
	}
	w.detail = detail
	w.touchLocked()
	w.mu.Unlock()

	w.publish()
	return nil
}

// RefreshLogs refetches the run logs and feeds them to the batch detector.
func (w *Workspace) RefreshLogs(ctx context.Context) error {
	logs, err := w.backend.ListRunLogs(ctx, w.projectID, w.logLimit)
	if err != nil {
		return fmt.Errorf("list run logs: %w", err)
	}
	if w.detector.ObserveLogs(logs) {
		w.logger.Info("batch generation complete", "signal", "run_log")
	}

	w.mu.Lock()
	w.logs = logs
	w.logsLoaded = true
	w.touchLocked()
	w.mu.Unlock()

	w.publish()
	return nil
}

// Refresh refetches all three collections. Each failure is logged and the
// failures are returned joined; snapshots that did refresh are kept.
func (w *Workspace) Refresh(ctx context.Context) error {
	steps := []struct {
		name    string
		refresh func(context.Context) error
	}{
		{CollectionIdeas, w.RefreshIdeas},
		{CollectionDetail, w.RefreshDetail},
		{CollectionLogs, w.RefreshLogs},
	}
	var errs []error
	for _, step := range steps {
		if err := step.refresh(ctx); err != nil {
			w.logger.Warn("refresh failed", "collection", step.name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Select makes ideaID the selected idea, persists the choice and fetches its
// detail. An empty id clears the selection.
func (w *Workspace) Select(ctx context.Context, ideaID string) error {
	w.mu.Lock()
	changed := w.selected != ideaID
	w.selected = ideaID
	if changed {
		w.detail = nil
	}
	w.touchLocked()
	w.mu.Unlock()

	if w.bookmarks != nil {
		if err := w.bookmarks.SetSelectedIdea(ctx, w.projectID, ideaID); err != nil {
			w.logger.Warn("failed to save selection", "idea_id", ideaID, "error", err)
		}
	}

	if err := w.RefreshDetail(ctx); err != nil {
		return err
	}
	w.publish()
	w.kick(CollectionDetail)
	return nil
}

// Restore selects the idea bookmarked for this project, if any.
func (w *Workspace) Restore(ctx context.Context) string {
	if w.bookmarks == nil {
		return ""
	}
	ideaID := w.bookmarks.SelectedIdea(ctx, w.projectID)
	if ideaID == "" {
		return ""
	}
	if err := w.Select(ctx, ideaID); err != nil {
		w.logger.Warn("failed to restore selection", "idea_id", ideaID, "error", err)
	}
	return ideaID
}

// Selected returns the selected idea id.
func (w *Workspace) Selected() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selected
}

// Ideas returns a copy of the latest idea list.
func (w *Workspace) Ideas() []models.Idea {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.ideas)
}

// IdeaCount returns the length of the latest idea list.
func (w *Workspace) IdeaCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.ideas)
}

// Detail returns the selected idea's detail, or nil.
func (w *Workspace) Detail() *models.IdeaDetails {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.detail
}

// RunLogs returns a copy of the latest run logs.
func (w *Workspace) RunLogs() []models.AiRunLog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.logs)
}

// Stats aggregates the latest run logs.
func (w *Workspace) Stats() metrics.Snapshot {
	return metrics.Summarize(w.RunLogs())
}

// Snapshot returns the resolver input for ideaID: the full history when it is
// the loaded detail, otherwise the list summary.
func (w *Workspace) Snapshot(ideaID string) (pipeline.Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.detail != nil && w.detail.ID == ideaID {
		return pipeline.FromDetails(*w.detail), true
	}
	for _, idea := range w.ideas {
		if idea.ID == ideaID {
			return pipeline.FromIdea(idea), true
		}
	}
	return pipeline.Snapshot{}, false
}

// Board resolves the stage board of ideaID from the latest snapshots.
func (w *Workspace) Board(ideaID string, pending pipeline.PendingChecker, inv pipeline.Invoker) (pipeline.Board, bool) {
	snap, ok := w.Snapshot(ideaID)
	if !ok {
		return pipeline.Board{}, false
	}
	return pipeline.Resolve(snap, pending, inv), true
}

// Waiting reports whether a batch idea generation is outstanding.
func (w *Workspace) Waiting() bool {
	return w.detector.Waiting()
}

// WaitingSince returns when the outstanding batch started.
func (w *Workspace) WaitingSince() time.Time {
	return w.detector.WaitingSince()
}

// View returns the current state.
func (w *Workspace) View() View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.viewLocked()
}

// Subscribe delivers the newest View on every change.
func (w *Workspace) Subscribe() (<-chan View, func()) {
	return w.topic.Subscribe()
}

// Active reports whether any collection still has non-terminal work.
func (w *Workspace) Active() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return polling.IdeaListActive(w.ideas, w.detector.Waiting()) ||
		polling.IdeaDetailActive(w.detail)
}

// Kick wakes all pollers for an immediate refetch.
func (w *Workspace) Kick() {
	for _, p := range w.pollers {
		p.Kick()
	}
}

// Decisions returns the last scheduling decision of each poller.
func (w *Workspace) Decisions() map[string]polling.Decision {
	out := make(map[string]polling.Decision, len(w.pollers))
	for name, p := range w.pollers {
		out[name] = p.Last()
	}
	return out
}

// Run polls the three collections until ctx is done. When an event source
// is configured, push hints kick the pollers; a broken feed is logged and
// polling carries on.
func (w *Workspace) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range w.pollers {
		g.Go(func() error {
			return p.Run(ctx)
		})
	}
	if w.events != nil {
		g.Go(func() error {
			w.listen(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Workspace) listen(ctx context.Context) {
	err := w.events.SubscribeEvents(ctx, w.projectID, func(ev models.Event) error {
		w.logger.Debug("push hint", "type", ev.Type, "idea_id", models.Deref(ev.IdeaID))
		w.Kick()
		return nil
	})
	if err != nil {
		w.logger.Warn("event feed closed, relying on polling", "error", err)
	}
}

// ensureBaseline loads the idea list and run logs once so a batch can be
// measured against them.
func (w *Workspace) ensureBaseline(ctx context.Context) error {
	w.mu.RLock()
	loaded := w.ideasLoaded && w.logsLoaded
	w.mu.RUnlock()
	if loaded {
		return nil
	}
	if err := w.RefreshIdeas(ctx); err != nil {
		return err
	}
	return w.RefreshLogs(ctx)
}

func (w *Workspace) beginBatch() {
	w.mu.RLock()
	count := len(w.ideas)
	logs := slices.Clone(w.logs)
	w.mu.RUnlock()
	w.detector.Begin(w.projectID, count, logs)
	w.publish()
}

func (w *Workspace) abortBatch() {
	w.detector.Abort()
	w.publish()
}

func (w *Workspace) pollIdeas(ctx context.Context) (bool, error) {
	if err := w.RefreshIdeas(ctx); err != nil {
		return false, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return polling.IdeaListActive(w.ideas, w.detector.Waiting()), nil
}

func (w *Workspace) pollDetail(ctx context.Context) (bool, error) {
	if err := w.RefreshDetail(ctx); err != nil {
		return false, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return polling.IdeaDetailActive(w.detail), nil
}

func (w *Workspace) pollLogs(ctx context.Context) (bool, error) {
	if err := w.RefreshLogs(ctx); err != nil {
		return false, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return polling.RunLogsActive(w.ideas, w.detector.Waiting()), nil
}

func (w *Workspace) kick(name string) {
	if p, ok := w.pollers[name]; ok {
		p.Kick()
	}
}

func (w *Workspace) touchLocked() {
	w.updatedAt = time.Now()
}

func (w *Workspace) viewLocked() View {
	return View{
		ProjectID:  w.projectID,
		Ideas:      slices.Clone(w.ideas),
		SelectedID: w.selected,
		Detail:     w.detail,
		RunLogs:    slices.Clone(w.logs),
		Waiting:    w.detector.Waiting(),
		Loaded:     w.ideasLoaded && w.logsLoaded,
		UpdatedAt:  w.updatedAt,
	}
}

func (w *Workspace) publish() {
	w.pubMu.Lock()
	defer w.pubMu.Unlock()
	w.topic.Publish(w.View())
}
