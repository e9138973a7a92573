// Package tracker records in-flight generation commands per idea and stage.
package tracker

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/clipforge/internal/pipeline"
)

// Key identifies one in-flight command.
type Key struct {
	IdeaID     string
	Stage      pipeline.Stage
	Regenerate bool
}

// Entry is a pending command.
type Entry struct {
	Key
	RequestID string
	Since     time.Time
}

type slot struct {
	ideaID string
	stage  pipeline.Stage
}

// Tracker holds at most one pending entry per (idea, stage).
// It is advisory state for disabling duplicate triggers, not a lock.
// All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[slot]Entry
	now     func() time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		entries: make(map[slot]Entry),
		now:     time.Now,
	}
}

// MarkPending records key as in flight. It returns false and records nothing
// if the (idea, stage) slot is already occupied.
func (t *Tracker) MarkPending(key Key, requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := slot{key.IdeaID, key.Stage}
	if _, ok := t.entries[s]; ok {
		return false
	}
	t.entries[s] = Entry{Key: key, RequestID: requestID, Since: t.now()}
	return true
}

// IsPending reports whether exactly key is in flight.
func (t *Tracker) IsPending(key Key) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[slot{key.IdeaID, key.Stage}]
	return ok && e.Regenerate == key.Regenerate
}

// IsStagePending reports whether any command for (ideaID, stage) is in flight.
func (t *Tracker) IsStagePending(ideaID string, stage pipeline.Stage) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.entries[slot{ideaID, stage}]
	return ok
}

// Get returns the pending entry for (ideaID, stage), if any.
func (t *Tracker) Get(ideaID string, stage pipeline.Stage) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[slot{ideaID, stage}]
	return e, ok
}

// Clear removes the entry for key. An entry recorded with a different
// regenerate flag is left in place.
func (t *Tracker) Clear(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := slot{key.IdeaID, key.Stage}
	if e, ok := t.entries[s]; ok && e.Regenerate == key.Regenerate {
		delete(t.entries, s)
	}
}

// Pending returns all entries, oldest first.
func (t *Tracker) Pending() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(
			a.Since.Compare(b.Since),
			cmp.Compare(a.IdeaID, b.IdeaID),
			cmp.Compare(a.Stage, b.Stage),
		)
	})
	return out
}

// Len returns the number of pending entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
