package models

import "time"

// AiRunLog is one entry of the append-only audit trail of AI work.
type AiRunLog struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	IdeaID       *string   `json:"ideaId,omitempty"`
	Operation    Operation `json:"operation"`
	Status       Status    `json:"status"`
	Model        string    `json:"model,omitempty"`
	LatencyMs    int64     `json:"latencyMs,omitempty"`
	InputTokens  int64     `json:"inputTokens,omitempty"`
	OutputTokens int64     `json:"outputTokens,omitempty"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Event is a push hint from the backend that something changed.
// Hints carry no state; receivers refetch.
type Event struct {
	Type        string  `json:"type"`
	ProjectID   string  `json:"projectId"`
	IdeaID      *string `json:"ideaId,omitempty"`
	PostDraftID *string `json:"postDraftId,omitempty"`
}
