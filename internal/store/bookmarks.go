package store

import (
	"context"
	"fmt"
)

// Bookmarks remembers per-project view state between sessions.
type Bookmarks struct {
	store Store
}

// NewBookmarks wraps a store.
func NewBookmarks(s Store) *Bookmarks {
	return &Bookmarks{store: s}
}

func selectedIdeaKey(projectID string) string {
	return fmt.Sprintf("project/%s/selected-idea", projectID)
}

func logsCollapsedKey(projectID string) string {
	return fmt.Sprintf("project/%s/logs-collapsed", projectID)
}

// SelectedIdea returns the last selected idea of a project, or "".
func (b *Bookmarks) SelectedIdea(ctx context.Context, projectID string) string {
	return GetJSON[string](ctx, b.store, selectedIdeaKey(projectID))
}

// SetSelectedIdea remembers the selected idea. An empty id forgets it.
func (b *Bookmarks) SetSelectedIdea(ctx context.Context, projectID, ideaID string) error {
	if ideaID == "" {
		return b.store.Delete(ctx, selectedIdeaKey(projectID))
	}
	return SetJSON(ctx, b.store, selectedIdeaKey(projectID), ideaID)
}

// LogsCollapsed reports whether the run-log table is collapsed.
func (b *Bookmarks) LogsCollapsed(ctx context.Context, projectID string) bool {
	return GetJSON[bool](ctx, b.store, logsCollapsedKey(projectID))
}

// SetLogsCollapsed remembers the run-log table state.
func (b *Bookmarks) SetLogsCollapsed(ctx context.Context, projectID string, collapsed bool) error {
	return SetJSON(ctx, b.store, logsCollapsedKey(projectID), collapsed)
}
