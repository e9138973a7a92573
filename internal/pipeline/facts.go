package pipeline

import (
	"github.com/raphaelgruber/clipforge/internal/models"
)

// Facts are the derived per-stage values every gating decision reads.
// They are computed once per snapshot.
type Facts struct {
	// Latest is the status of the most recent version, empty if none exists.
	Latest      models.Status
	LatestError string

	// EverSucceeded is independent of Latest: a running regeneration over a
	// succeeded version still counts.
	EverSucceeded bool

	Succeeded int
	Failed    int
	Total     int
}

// InFlight reports whether the latest version is queued or running.
func (f Facts) InFlight() bool {
	return f.Latest.Active()
}

// Pending returns the number of versions that have not reached a terminal state.
func (f Facts) Pending() int {
	return max(0, f.Total-f.Succeeded-f.Failed)
}

// Snapshot holds the facts of all six stages of one idea.
type Snapshot struct {
	IdeaID string
	facts  map[Stage]Facts
}

// Facts returns the facts for one stage.
func (s Snapshot) Facts(st Stage) Facts {
	return s.facts[st]
}

// FromIdea builds a snapshot from the summary fields of an idea list entry.
// Summaries carry no failed counter; see countFacts.
func FromIdea(idea models.Idea) Snapshot {
	snap := Snapshot{IdeaID: idea.ID, facts: make(map[Stage]Facts, len(Stages))}

	snap.facts[StageScript] = summaryFacts(idea.LatestScript, idea.ScriptCounts)
	snap.facts[StageCaption] = summaryFacts(idea.LatestCaption, idea.CaptionCounts)
	snap.facts[StageImagePrompt] = promptFacts(idea.HasImagePrompt())
	snap.facts[StageVideoPrompt] = promptFacts(idea.HasVideoPrompt())
	snap.facts[StageImage] = assetSummaryFacts(idea.LatestImageStatus, idea.ImageCounts)
	snap.facts[StageVideo] = assetSummaryFacts(idea.LatestVideoStatus, idea.VideoCounts)

	return snap
}

// FromDetails builds a snapshot from the full stage history of an idea.
func FromDetails(d models.IdeaDetails) Snapshot {
	snap := Snapshot{IdeaID: d.ID, facts: make(map[Stage]Facts, len(Stages))}

	var scripts, captions []version
	for _, s := range d.Scripts {
		scripts = append(scripts, version{status: s.Status, err: s.Error, createdAt: s.CreatedAt.UnixNano()})
	}
	for _, c := range d.Captions {
		captions = append(captions, version{status: c.Status, err: c.Error, createdAt: c.CreatedAt.UnixNano()})
	}
	snap.facts[StageScript] = historyFacts(scripts)
	snap.facts[StageCaption] = historyFacts(captions)
	snap.facts[StageImagePrompt] = promptFacts(d.HasImagePrompt())
	snap.facts[StageVideoPrompt] = promptFacts(d.HasVideoPrompt())

	for _, st := range []Stage{StageImage, StageVideo} {
		var versions []version
		for _, a := range d.AssetsOfType(models.AssetType(st)) {
			versions = append(versions, version{status: a.Status, err: a.Error, createdAt: a.CreatedAt.UnixNano()})
		}
		snap.facts[st] = historyFacts(versions)
	}

	return snap
}

type version struct {
	status    models.Status
	err       *string
	createdAt int64
}

func historyFacts(versions []version) Facts {
	var f Facts
	var latest *version
	for i := range versions {
		v := &versions[i]
		f.Total++
		switch v.status {
		case models.StatusSucceeded:
			f.Succeeded++
		case models.StatusFailed:
			f.Failed++
		}
		if latest == nil || v.createdAt > latest.createdAt {
			latest = v
		}
	}
	f.EverSucceeded = f.Succeeded > 0
	if latest != nil {
		f.Latest = latest.status
		f.LatestError = models.Deref(latest.err)
	}
	return f
}

func summaryFacts(latest *models.ArtifactSummary, counts models.StageCounts) Facts {
	if latest == nil {
		return countFacts("", counts)
	}
	if counts.Total == 0 {
		counts.Total = 1
	}
	if latest.Status == models.StatusSucceeded && counts.Succeeded == 0 {
		counts.Succeeded = 1
	}
	f := countFacts(latest.Status, counts)
	f.LatestError = models.Deref(latest.Error)
	return f
}

func assetSummaryFacts(latest *models.Status, counts models.StageCounts) Facts {
	var status models.Status
	if latest != nil {
		status = *latest
	}
	return countFacts(status, counts)
}

// countFacts derives facts from summary counters. Summaries carry no failed
// counter: once the latest version is terminal every unsucceeded version is
// taken as failed, otherwise none are.
func countFacts(latest models.Status, counts models.StageCounts) Facts {
	f := Facts{Latest: latest, Succeeded: counts.Succeeded, Total: counts.Total}
	if latest.Terminal() {
		f.Failed = max(0, f.Total-f.Succeeded)
	}
	f.EverSucceeded = f.Succeeded > 0
	return f
}

func promptFacts(exists bool) Facts {
	if !exists {
		return Facts{}
	}
	return Facts{Latest: models.StatusSucceeded, EverSucceeded: true, Succeeded: 1, Total: 1}
}
