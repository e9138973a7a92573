// Package publish holds the guards of the post draft lifecycle:
// draft -> moderate -> draft, draft -> approve -> approved,
// approved -> unapprove -> draft, approved -> mark-published -> published.
package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// MinOverrideReasonLen is the shortest accepted override reason after trimming.
const MinOverrideReasonLen = 3

// Sentinel errors for lifecycle guards.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoDraft indicates there is no draft to act on.
	ErrNoDraft = errors.New("no post draft")

	// ErrInvalidTransition indicates the action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotModerated indicates approval was requested before any moderation run.
	ErrNotModerated = errors.New("draft has not been moderated")

	// ErrModerationFailed indicates moderation failed and no override reason was given.
	ErrModerationFailed = errors.New("moderation failed: override reason required")

	// ErrOverrideReasonTooShort indicates the override reason is shorter than MinOverrideReasonLen.
	ErrOverrideReasonTooShort = errors.New("override reason too short")

	// ErrReassemblyLocked indicates the draft must be unapproved before it can be rebuilt.
	ErrReassemblyLocked = errors.New("draft is locked: unapprove before reassembling")

	// ErrNoChanges indicates a reassembly would not change the persisted draft.
	ErrNoChanges = errors.New("no changes to draft")
)

// Action is a lifecycle action on a draft.
type Action string

const (
	ActionModerate      Action = "moderate"
	ActionApprove       Action = "approve"
	ActionUnapprove     Action = "unapprove"
	ActionMarkPublished Action = "mark-published"
)

func transitionError(action Action, status models.DraftStatus) error {
	return fmt.Errorf("%w: cannot %s a %s draft", ErrInvalidTransition, action, status)
}

// FailingChecks returns the names of the checks that did not pass.
func FailingChecks(m *models.ModerationCheck) []string {
	if m == nil {
		return nil
	}
	var failing []string
	for _, c := range m.Checks.Named() {
		if !c.Result.Passed {
			failing = append(failing, c.Name)
		}
	}
	return failing
}

// CanModerate reports whether checks may run on d.
func CanModerate(d *models.PostDraft) error {
	if d == nil {
		return ErrNoDraft
	}
	if d.Status != models.DraftStatusDraft {
		return transitionError(ActionModerate, d.Status)
	}
	return nil
}

// CanApprove reports whether d may be approved with the given override reason.
// A passed moderation needs no reason. A failed one needs a single reason of at
// least MinOverrideReasonLen characters covering every failing check.
func CanApprove(d *models.PostDraft, overrideReason string) error {
	if d == nil {
		return ErrNoDraft
	}
	if d.Status != models.DraftStatusDraft {
		return transitionError(ActionApprove, d.Status)
	}
	if d.LatestModeration == nil {
		return ErrNotModerated
	}
	if d.LatestModeration.Status == models.ModerationPassed {
		return nil
	}

	reason := strings.TrimSpace(overrideReason)
	if reason == "" {
		if failing := FailingChecks(d.LatestModeration); len(failing) > 0 {
			return fmt.Errorf("%w (failing: %s)", ErrModerationFailed, strings.Join(failing, ", "))
		}
		return ErrModerationFailed
	}
	if len([]rune(reason)) < MinOverrideReasonLen {
		return fmt.Errorf("%w: need at least %d characters", ErrOverrideReasonTooShort, MinOverrideReasonLen)
	}
	return nil
}

// CanUnapprove reports whether d may return to draft.
func CanUnapprove(d *models.PostDraft) error {
	if d == nil {
		return ErrNoDraft
	}
	if d.Status != models.DraftStatusApproved {
		return transitionError(ActionUnapprove, d.Status)
	}
	return nil
}

// CanMarkPublished reports whether d may be confirmed as published.
func CanMarkPublished(d *models.PostDraft) error {
	if d == nil {
		return ErrNoDraft
	}
	if d.Status != models.DraftStatusApproved {
		return transitionError(ActionMarkPublished, d.Status)
	}
	return nil
}

// CanReassemble reports whether a new draft snapshot may replace d.
// A missing draft may always be assembled.
func CanReassemble(d *models.PostDraft) error {
	if d == nil {
		return nil
	}
	switch d.Status {
	case models.DraftStatusDraft:
		return nil
	case models.DraftStatusApproved, models.DraftStatusPublished:
		return ErrReassemblyLocked
	default:
		return fmt.Errorf("%w: cannot reassemble a %s draft", ErrInvalidTransition, d.Status)
	}
}

// Guard runs the guard for action.
func Guard(action Action, d *models.PostDraft, overrideReason string) error {
	switch action {
	case ActionModerate:
		return CanModerate(d)
	case ActionApprove:
		return CanApprove(d, overrideReason)
	case ActionUnapprove:
		return CanUnapprove(d)
	case ActionMarkPublished:
		return CanMarkPublished(d)
	}
	return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
}

// Target returns the status a successful action leads to.
func Target(action Action) models.DraftStatus {
	switch action {
	case ActionApprove:
		return models.DraftStatusApproved
	case ActionMarkPublished:
		return models.DraftStatusPublished
	default:
		return models.DraftStatusDraft
	}
}

// Apply runs the guard and returns a copy of d in the target status.
// It is the local model of what the backend does; the backend stays
// authoritative.
func Apply(action Action, d *models.PostDraft, overrideReason string) (*models.PostDraft, error) {
	if err := Guard(action, d, overrideReason); err != nil {
		return nil, err
	}
	next := *d
	next.Status = Target(action)
	switch action {
	case ActionApprove:
		if reason := strings.TrimSpace(overrideReason); reason != "" && d.LatestModeration.Status == models.ModerationFailed {
			next.OverrideReason = &reason
		}
	case ActionUnapprove:
		next.OverrideReason = nil
		next.ApprovedAt = nil
	}
	return &next, nil
}
