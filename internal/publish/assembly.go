package publish

import (
	"slices"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// Assembly is the operator's choice of caption, assets and schedule for a draft.
type Assembly struct {
	CaptionID   *string
	AssetIDs    []string
	ScheduledAt *time.Time
}

// FromDraft extracts the assembly of a persisted draft.
func FromDraft(d *models.PostDraft) Assembly {
	if d == nil {
		return Assembly{}
	}
	return Assembly{
		CaptionID:   d.CaptionID,
		AssetIDs:    slices.Clone(d.SelectedAssets),
		ScheduledAt: d.ScheduledAt,
	}
}

// Normalize returns the comparison form: asset ids sorted and de-duplicated,
// empty caption treated as none, schedule in UTC truncated to the minute.
func (a Assembly) Normalize() Assembly {
	out := Assembly{}

	if a.CaptionID != nil && *a.CaptionID != "" {
		id := *a.CaptionID
		out.CaptionID = &id
	}

	ids := slices.Clone(a.AssetIDs)
	slices.Sort(ids)
	out.AssetIDs = slices.Compact(ids)

	if a.ScheduledAt != nil && !a.ScheduledAt.IsZero() {
		ts := a.ScheduledAt.UTC().Truncate(time.Minute)
		out.ScheduledAt = &ts
	}
	return out
}

// Equal compares two assemblies in normalized form.
func (a Assembly) Equal(b Assembly) bool {
	na, nb := a.Normalize(), b.Normalize()

	if (na.CaptionID == nil) != (nb.CaptionID == nil) {
		return false
	}
	if na.CaptionID != nil && *na.CaptionID != *nb.CaptionID {
		return false
	}
	if !slices.Equal(na.AssetIDs, nb.AssetIDs) {
		return false
	}
	if (na.ScheduledAt == nil) != (nb.ScheduledAt == nil) {
		return false
	}
	return na.ScheduledAt == nil || na.ScheduledAt.Equal(*nb.ScheduledAt)
}

// HasChanges reports whether rebuilding the draft from current would differ
// from the persisted draft. Without a persisted draft there is always a change.
func HasChanges(current Assembly, persisted *models.PostDraft) bool {
	if persisted == nil {
		return true
	}
	return !current.Equal(FromDraft(persisted))
}

// Input converts the assembly to the backend request body. Asset order is kept
// as the operator chose it.
func (a Assembly) Input() models.AssembleDraftInput {
	in := models.AssembleDraftInput{
		CaptionID: a.CaptionID,
		AssetIDs:  a.AssetIDs,
	}
	if in.AssetIDs == nil {
		in.AssetIDs = []string{}
	}
	if a.ScheduledAt != nil {
		ts := a.ScheduledAt.UTC().Truncate(time.Minute)
		in.ScheduledAt = &ts
	}
	return in
}
