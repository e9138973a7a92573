package models

import "time"

// Project owns personas and ideas.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Persona is the voice an idea is written for.
type Persona struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
}

// ArtifactSummary is the latest version of a text stage as embedded in an Idea.
type ArtifactSummary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StageCounts tracks how many versions of a stage exist and how many succeeded.
type StageCounts struct {
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// Idea is one content idea with derived summaries of its pipeline stages.
// The summaries are maintained by the server; the client never writes them.
type Idea struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	PersonaID string `json:"personaId"`
	Topic     string `json:"topic"`
	Hook      string `json:"hook"`
	Format    string `json:"format"`
	Status    Status `json:"status"`

	ImagePrompt *string `json:"imagePrompt,omitempty"`
	VideoPrompt *string `json:"videoPrompt,omitempty"`

	LatestScript      *ArtifactSummary `json:"latestScript,omitempty"`
	LatestCaption     *ArtifactSummary `json:"latestCaption,omitempty"`
	LatestImageStatus *Status          `json:"latestImageStatus,omitempty"`
	LatestVideoStatus *Status          `json:"latestVideoStatus,omitempty"`

	ScriptCounts  StageCounts `json:"scriptCounts"`
	CaptionCounts StageCounts `json:"captionCounts"`
	ImageCounts   StageCounts `json:"imageCounts"`
	VideoCounts   StageCounts `json:"videoCounts"`

	CreatedAt time.Time `json:"createdAt"`
}

// HasImagePrompt reports whether an image prompt has been generated.
func (i Idea) HasImagePrompt() bool {
	return i.ImagePrompt != nil && *i.ImagePrompt != ""
}

// HasVideoPrompt reports whether a video prompt has been generated.
func (i Idea) HasVideoPrompt() bool {
	return i.VideoPrompt != nil && *i.VideoPrompt != ""
}

// Script is one version of an idea's script.
type Script struct {
	ID        string    `json:"id"`
	IdeaID    string    `json:"ideaId"`
	Text      string    `json:"text"`
	ShotList  []string  `json:"shotList"`
	Status    Status    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Caption is one version of an idea's caption.
type Caption struct {
	ID        string    `json:"id"`
	IdeaID    string    `json:"ideaId"`
	Text      string    `json:"text"`
	Hashtags  []string  `json:"hashtags"`
	Status    Status    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssetType distinguishes generated media.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetVideo AssetType = "video"
)

// Asset is a generated image or video.
type Asset struct {
	ID           string    `json:"id"`
	IdeaID       string    `json:"ideaId"`
	Type         AssetType `json:"type"`
	Status       Status    `json:"status"`
	SourcePrompt string    `json:"sourcePrompt"`
	URL          *string   `json:"url,omitempty"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IdeaDetails is an idea with its full stage history.
type IdeaDetails struct {
	Idea
	Scripts  []Script  `json:"scripts"`
	Captions []Caption `json:"captions"`
	Assets   []Asset   `json:"assets"`
}

// LatestScript returns the most recent script by creation time, or nil.
func (d IdeaDetails) LatestScript() *Script {
	var latest *Script
	for i := range d.Scripts {
		if latest == nil || d.Scripts[i].CreatedAt.After(latest.CreatedAt) {
			latest = &d.Scripts[i]
		}
	}
	return latest
}

// LatestCaption returns the most recent caption by creation time, or nil.
func (d IdeaDetails) LatestCaption() *Caption {
	var latest *Caption
	for i := range d.Captions {
		if latest == nil || d.Captions[i].CreatedAt.After(latest.CreatedAt) {
			latest = &d.Captions[i]
		}
	}
	return latest
}

// AssetsOfType returns the assets of one type in their original order.
func (d IdeaDetails) AssetsOfType(t AssetType) []Asset {
	var out []Asset
	for _, a := range d.Assets {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// GenerateIdeasInput is the request body for batch idea generation.
type GenerateIdeasInput struct {
	PersonaID string `json:"personaId"`
	Topic     string `json:"topic"`
	Count     int    `json:"count"`
	Format    string `json:"format"`
}

// JobAccepted is returned when the backend queues generation work.
type JobAccepted struct {
	JobID      string `json:"jobId"`
	ArtifactID string `json:"artifactId,omitempty"`
	Status     Status `json:"status"`
}
