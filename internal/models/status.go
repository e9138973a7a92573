// Package models defines the data structures exchanged with the clipforge backend.
package models

// Status is the lifecycle state of a generation job or artifact.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Active reports whether the server is still working on the item.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

// Terminal reports whether no further transition is expected without a new action.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Operation names the kind of AI work recorded in a run log.
type Operation string

const (
	OpIdeas       Operation = "ideas"
	OpScript      Operation = "script"
	OpCaption     Operation = "caption"
	OpImagePrompt Operation = "image_prompt"
	OpVideoPrompt Operation = "video_prompt"
	OpImage       Operation = "image"
	OpVideo       Operation = "video"
)

// Operations lists every operation in pipeline order.
var Operations = []Operation{OpIdeas, OpScript, OpCaption, OpImagePrompt, OpVideoPrompt, OpImage, OpVideo}
