// Package polling decides when tracked collections must be refetched.
//
// Each collection is judged by a plain predicate over its latest snapshot.
// A Poller re-evaluates its own predicate after every fetch; there is no
// timer shared between collections.
package polling

import (
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// DefaultInterval is the refetch cadence while work is in flight.
const DefaultInterval = time.Second

// Decision is the outcome of one scheduling evaluation.
type Decision struct {
	Poll     bool
	Interval time.Duration
}

// Next returns the decision for a collection given its predicate result.
func Next(active bool, interval time.Duration) Decision {
	if !active {
		return Decision{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Decision{Poll: true, Interval: interval}
}

// IdeaActive reports whether the idea itself or any of its stage summaries
// is queued or running.
func IdeaActive(idea models.Idea) bool {
	if idea.Status.Active() {
		return true
	}
	if idea.LatestScript != nil && idea.LatestScript.Status.Active() {
		return true
	}
	if idea.LatestCaption != nil && idea.LatestCaption.Status.Active() {
		return true
	}
	if idea.LatestImageStatus != nil && idea.LatestImageStatus.Active() {
		return true
	}
	if idea.LatestVideoStatus != nil && idea.LatestVideoStatus.Active() {
		return true
	}
	return false
}

// IdeaListActive reports whether the idea list of a project needs polling:
// any idea is active or a batch generation is still awaited.
func IdeaListActive(ideas []models.Idea, waiting bool) bool {
	if waiting {
		return true
	}
	for _, idea := range ideas {
		if IdeaActive(idea) {
			return true
		}
	}
	return false
}

// RunLogsActive shares the idea-list predicate: run logs are the only signal
// for batch completion, so they poll exactly as long as the list does.
func RunLogsActive(ideas []models.Idea, waiting bool) bool {
	return IdeaListActive(ideas, waiting)
}

// IdeaDetailActive reports whether any script, caption or asset in the full
// history is queued or running. A nil detail is inactive.
func IdeaDetailActive(d *models.IdeaDetails) bool {
	if d == nil {
		return false
	}
	for _, s := range d.Scripts {
		if s.Status.Active() {
			return true
		}
	}
	for _, c := range d.Captions {
		if c.Status.Active() {
			return true
		}
	}
	for _, a := range d.Assets {
		if a.Status.Active() {
			return true
		}
	}
	return false
}
