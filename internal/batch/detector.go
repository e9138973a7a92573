// Package batch infers completion of batch idea generation, which has no
// single entity to poll.
package batch

import (
	"sync"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// Detector snapshots baselines at submit time and reports completion once
// the idea count grows past the baseline or a new terminal "ideas" run log
// appears, whichever is observed first.
//
// The detector never times out on its own. Callers that need a bound read
// Waiting and WaitingSince.
type Detector struct {
	mu        sync.Mutex
	waiting   bool
	projectID string
	baseline  int
	seenLogs  map[string]struct{}
	since     time.Time
	now       func() time.Time
}

// NewDetector creates an idle detector.
func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Begin records the baselines for a batch about to be submitted.
func (d *Detector) Begin(projectID string, ideasCountBefore int, logs []models.AiRunLog) {
	seen := make(map[string]struct{})
	for _, l := range logs {
		if l.Operation == models.OpIdeas {
			seen[l.ID] = struct{}{}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.waiting = true
	d.projectID = projectID
	d.baseline = ideasCountBefore
	d.seenLogs = seen
	d.since = d.now()
}

// Abort clears the waiting flag and both baselines. Used when the submit
// itself fails and there is nothing to wait for.
func (d *Detector) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// ObserveIdeas feeds the live idea count. It returns true if this
// observation completed the batch.
func (d *Detector) ObserveIdeas(count int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.waiting || count <= d.baseline {
		return false
	}
	d.reset()
	return true
}

// ObserveLogs feeds the latest run logs. It returns true if this observation
// completed the batch.
func (d *Detector) ObserveLogs(logs []models.AiRunLog) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.waiting {
		return false
	}
	for _, l := range logs {
		if l.Operation != models.OpIdeas || !l.Status.Terminal() {
			continue
		}
		if d.projectID != "" && l.ProjectID != "" && l.ProjectID != d.projectID {
			continue
		}
		if _, seen := d.seenLogs[l.ID]; seen {
			continue
		}
		d.reset()
		return true
	}
	return false
}

// Waiting reports whether a batch is still awaited.
func (d *Detector) Waiting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waiting
}

// WaitingSince returns when the current wait began, or the zero time.
func (d *Detector) WaitingSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.waiting {
		return time.Time{}
	}
	return d.since
}

// Baseline returns the idea count recorded by Begin.
func (d *Detector) Baseline() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline
}

// caller must hold mu
func (d *Detector) reset() {
	d.waiting = false
	d.projectID = ""
	d.baseline = 0
	d.seenLogs = nil
	d.since = time.Time{}
}
