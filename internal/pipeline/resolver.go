package pipeline

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// Action labels.
const (
	LabelCreate     = "create"
	LabelNewVersion = "new version"
	LabelRetry      = "retry"
)

// Status labels.
const (
	StatusQueuedToRun = "queued to run"
	StatusRunning     = "running"
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusReady       = "ready"
)

// State is the coarse state of a stage.
type State string

const (
	StateDone    State = "done"
	StateReady   State = "ready"
	StateBlocked State = "blocked"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// PendingChecker reports whether a command for (idea, stage) is awaiting settlement.
type PendingChecker interface {
	IsStagePending(ideaID string, stage Stage) bool
}

// Invoker issues a stage command.
type Invoker interface {
	Invoke(ctx context.Context, ideaID string, stage Stage, regenerate bool) error
}

// Action is the next thing an operator can do for a stage.
type Action struct {
	Label      string
	Regenerate bool
	Loading    bool
	Disabled   bool
	Reason     string

	// Invoke is nil when the action is disabled or no invoker was given.
	Invoke func(ctx context.Context) error
}

// StageView is the resolved view of one stage.
type StageView struct {
	Stage       Stage
	Done        bool
	State       State
	StatusLabel string
	Facts       Facts
	Action      Action
}

// Board is the resolved view of all stages of one idea.
type Board struct {
	IdeaID string
	Stages []StageView
}

// Stage returns the view for st.
func (b Board) Stage(st Stage) StageView {
	for _, v := range b.Stages {
		if v.Stage == st {
			return v
		}
	}
	return StageView{Stage: st}
}

// Active reports whether any stage is running or awaiting a pending request.
func (b Board) Active() bool {
	for _, v := range b.Stages {
		if v.State == StateRunning {
			return true
		}
	}
	return false
}

// Resolve derives status and next action for every stage of the snapshot.
// pending and inv may be nil.
func Resolve(snap Snapshot, pending PendingChecker, inv Invoker) Board {
	board := Board{IdeaID: snap.IdeaID, Stages: make([]StageView, 0, len(Stages))}
	for _, st := range Stages {
		board.Stages = append(board.Stages, resolveStage(snap, st, pending, inv))
	}
	return board
}

func resolveStage(snap Snapshot, st Stage, pending PendingChecker, inv Invoker) StageView {
	f := snap.Facts(st)
	loading := pending != nil && pending.IsStagePending(snap.IdeaID, st)
	open, blockedReason := gate(snap, st)

	v := StageView{
		Stage: st,
		Facts: f,
		Done:  isDone(st, f),
	}
	v.StatusLabel = statusLabel(st, f, v.Done, loading, open)
	v.State = state(f, v.Done, loading, open)

	label := actionLabel(st, f)
	v.Action = Action{
		Label:      label,
		Regenerate: label != LabelCreate && st.AcceptsRegenerate(),
		Loading:    loading,
	}

	switch {
	case loading:
		v.Action.Disabled = true
		v.Action.Reason = "request pending"
	case f.InFlight():
		v.Action.Disabled = true
		v.Action.Reason = fmt.Sprintf("%s is %s", st, f.Latest)
	case !open:
		v.Action.Disabled = true
		v.Action.Reason = blockedReason
	}

	if !v.Action.Disabled && inv != nil {
		ideaID, regenerate := snap.IdeaID, v.Action.Regenerate
		v.Action.Invoke = func(ctx context.Context) error {
			return inv.Invoke(ctx, ideaID, st, regenerate)
		}
	}

	return v
}

// gate reports whether the prerequisite of st allows it to run.
func gate(snap Snapshot, st Stage) (bool, string) {
	prereq, ok := st.Prerequisite()
	if !ok {
		return true, ""
	}
	pf := snap.Facts(prereq)

	if prereq == StageScript {
		if !pf.EverSucceeded {
			return false, "waiting on script"
		}
		// A running regeneration takes precedence so a stale script is not
		// fed into the dependent stage.
		if pf.InFlight() {
			return false, fmt.Sprintf("script is %s", pf.Latest)
		}
		return true, ""
	}

	if !pf.EverSucceeded {
		return false, "waiting on " + string(prereq)
	}
	return true, ""
}

func isDone(st Stage, f Facts) bool {
	switch {
	case st.IsAsset():
		return f.Succeeded > 0
	case st.IsPrompt():
		return f.EverSucceeded
	default:
		return f.Latest == models.StatusSucceeded
	}
}

func actionLabel(st Stage, f Facts) string {
	switch {
	case st.IsPrompt():
		if f.EverSucceeded {
			return LabelNewVersion
		}
		return LabelCreate
	case st.IsAsset():
		if f.Latest == models.StatusFailed {
			return LabelRetry
		}
		if f.Succeeded > 0 {
			return LabelNewVersion
		}
		return LabelCreate
	default:
		if f.Latest == models.StatusFailed {
			return LabelRetry
		}
		if f.EverSucceeded {
			return LabelNewVersion
		}
		return LabelCreate
	}
}

func statusLabel(st Stage, f Facts, done, loading, open bool) string {
	if st.IsAsset() && done && f.Pending() > 0 {
		return fmt.Sprintf("%s (%d pending)", StatusSucceeded, f.Pending())
	}
	switch {
	case loading || f.Latest == models.StatusQueued:
		return StatusQueuedToRun
	case f.Latest == models.StatusRunning:
		return StatusRunning
	case f.Latest == models.StatusFailed:
		return StatusFailed
	case done:
		return StatusSucceeded
	case !open:
		prereq, _ := st.Prerequisite()
		return "waiting on " + string(prereq)
	}
	return StatusReady
}

func state(f Facts, done, loading, open bool) State {
	switch {
	case loading || f.InFlight():
		return StateRunning
	case f.Latest == models.StatusFailed:
		return StateFailed
	case done:
		return StateDone
	case !open:
		return StateBlocked
	}
	return StateReady
}
