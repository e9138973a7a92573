// Package service orchestrates generation commands, the workspace refresh
// loop and the post draft workflow on top of the backend client.
package service

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/clipforge/internal/client"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
)

// Sentinel errors for service operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidInput indicates a command was refused before reaching the backend.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWaitTimeout indicates a caller-imposed wait expired while work was still running.
	ErrWaitTimeout = errors.New("timed out waiting for completion")

	// ErrStageBlocked indicates a stage's prerequisite has not succeeded yet.
	ErrStageBlocked = errors.New("stage is blocked")
)

// SubmissionError is a command that failed before a job existed.
// Nothing changed server-side; the caller may simply try again.
type SubmissionError struct {
	Op        string
	IdeaID    string
	Stage     pipeline.Stage
	RequestID string
	Err       error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Stage != "":
		return fmt.Sprintf("submit %s for idea %s: %v", e.Stage, e.IdeaID, e.Err)
	case e.IdeaID != "":
		return fmt.Sprintf("%s idea %s: %v", e.Op, e.IdeaID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the command itself was refused, locally or by the
// backend. Resending it unchanged fails the same way.
func (e *SubmissionError) Rejected() bool {
	return errors.Is(e.Err, ErrInvalidInput) || errors.Is(e.Err, client.ErrRejected)
}

// reportSubmission raises the notice for a failed submission. Rejections are
// warnings that ask for a changed request; anything else is an error.
func reportSubmission(notices *notify.Center, err *SubmissionError) {
	if err.Rejected() {
		notices.Push(notify.LevelWarning, err.Error()+" (change the request before retrying)")
		return
	}
	notices.Error(err)
}
