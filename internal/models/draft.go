package models

import "time"

// DraftStatus is the publish lifecycle state of a post draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusApproved  DraftStatus = "approved"
	DraftStatusPublished DraftStatus = "published"
	DraftStatusArchived  DraftStatus = "archived"
)

// ModerationStatus is the overall outcome of a moderation run.
type ModerationStatus string

const (
	ModerationPassed ModerationStatus = "passed"
	ModerationFailed ModerationStatus = "failed"
)

// CheckResult is the outcome of one named moderation check.
type CheckResult struct {
	Passed bool     `json:"passed"`
	Score  float64  `json:"score"`
	Hits   []string `json:"hits"`
}

// ModerationChecks holds the four named checks.
type ModerationChecks struct {
	NSFW            CheckResult `json:"nsfw"`
	Toxicity        CheckResult `json:"toxicity"`
	ForbiddenTopics CheckResult `json:"forbiddenTopics"`
	Policy          CheckResult `json:"policy"`
}

// Named returns the checks keyed by their wire name, in a stable order.
func (c ModerationChecks) Named() []NamedCheck {
	return []NamedCheck{
		{Name: "nsfw", Result: c.NSFW},
		{Name: "toxicity", Result: c.Toxicity},
		{Name: "forbiddenTopics", Result: c.ForbiddenTopics},
		{Name: "policy", Result: c.Policy},
	}
}

// NamedCheck pairs a check result with its name.
type NamedCheck struct {
	Name   string
	Result CheckResult
}

// ModerationCheck is one moderation run over a post draft.
type ModerationCheck struct {
	ID          string           `json:"id"`
	PostDraftID string           `json:"postDraftId"`
	Status      ModerationStatus `json:"status"`
	Checks      ModerationChecks `json:"checks"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// PostDraft is an assembled post awaiting moderation, approval and publishing.
type PostDraft struct {
	ID               string           `json:"id"`
	IdeaID           string           `json:"ideaId"`
	CaptionID        *string          `json:"captionId,omitempty"`
	SelectedAssets   []string         `json:"selectedAssets"`
	Status           DraftStatus      `json:"status"`
	ScheduledAt      *time.Time       `json:"scheduledAt,omitempty"`
	LatestModeration *ModerationCheck `json:"latestModeration,omitempty"`
	OverrideReason   *string          `json:"overrideReason,omitempty"`
	ApprovedAt       *time.Time       `json:"approvedAt,omitempty"`
	PublishedAt      *time.Time       `json:"publishedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// AssembleDraftInput is the request body for building a draft from an idea.
type AssembleDraftInput struct {
	CaptionID   *string    `json:"captionId"`
	AssetIDs    []string   `json:"assetIds"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// PostDraftExport is the denormalized read-only view of a draft.
type PostDraftExport struct {
	Draft   PostDraft `json:"draft" yaml:"draft"`
	Idea    Idea      `json:"idea" yaml:"idea"`
	Caption *Caption  `json:"caption,omitempty" yaml:"caption,omitempty"`
	Assets  []Asset   `json:"assets" yaml:"assets"`
}
