// Package pipeline derives per-stage status and next actions for a content idea.
//
// Everything here is pure: given a snapshot of an idea and the set of pending
// requests, Resolve returns the same board every time.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// Stage is one of the six generation steps of an idea.
type Stage string

const (
	StageScript      Stage = "script"
	StageCaption     Stage = "caption"
	StageImagePrompt Stage = "image_prompt"
	StageVideoPrompt Stage = "video_prompt"
	StageImage       Stage = "image"
	StageVideo       Stage = "video"
)

// Stages lists all stages in display order.
var Stages = []Stage{StageScript, StageCaption, StageImagePrompt, StageVideoPrompt, StageImage, StageVideo}

// ParseStage accepts both the underscore and the dashed spelling.
func ParseStage(s string) (Stage, error) {
	norm := Stage(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, st := range Stages {
		if st == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Prerequisite returns the stage that must have succeeded before s may run.
func (s Stage) Prerequisite() (Stage, bool) {
	switch s {
	case StageCaption, StageImagePrompt, StageVideoPrompt:
		return StageScript, true
	case StageImage:
		return StageImagePrompt, true
	case StageVideo:
		return StageVideoPrompt, true
	}
	return "", false
}

// AcceptsRegenerate reports whether the backend takes a regenerate flag for s.
// Prompts always produce a new version.
func (s Stage) AcceptsRegenerate() bool {
	return s != StageImagePrompt && s != StageVideoPrompt
}

// Operation maps the stage to its run-log operation.
func (s Stage) Operation() models.Operation {
	return models.Operation(s)
}

// IsAsset reports whether the stage produces media assets.
func (s Stage) IsAsset() bool {
	return s == StageImage || s == StageVideo
}

// IsPrompt reports whether the stage produces a prompt stored on the idea.
func (s Stage) IsPrompt() bool {
	return s == StageImagePrompt || s == StageVideoPrompt
}
