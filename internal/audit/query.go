package audit

import (
	"context"
	"fmt"
	"time"
)

// Filter narrows a record listing. Zero values mean "no constraint".
type Filter struct {
	EntityType   string
	EntityID     string
	UserID       string
	Action       Action
	Category     Category
	Severities   []Severity
	Since, Until *time.Time
	SecurityOnly bool
	Limit        int
	Offset       int
}

// Normalize applies sane defaults and bounds.
func (f *Filter) Normalize() {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// SummaryQuery asks for activity counts grouped by one field.
type SummaryQuery struct {
	GroupBy      string
	Since, Until *time.Time
}

// SummaryRow is one group in an activity summary.
type SummaryRow struct {
	Key       string `json:"key"`
	Total     int64  `json:"total"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Query wraps the store's read side; all methods are side-effect free and,
// unlike writes, surface store errors to the caller.

// List returns records matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Record, error) {
	f.Normalize()
	return r.store.List(ctx, f)
}

// ByEntity returns the history of one entity instance.
func (r *Recorder) ByEntity(ctx context.Context, entityType, entityID string) ([]Record, error) {
	return r.List(ctx, Filter{EntityType: entityType, EntityID: entityID})
}

// ByActor returns records of actions performed by one user.
func (r *Recorder) ByActor(ctx context.Context, userID string) ([]Record, error) {
	return r.List(ctx, Filter{UserID: userID})
}

// ByAction returns records of one action kind.
func (r *Recorder) ByAction(ctx context.Context, action Action) ([]Record, error) {
	return r.List(ctx, Filter{Action: action})
}

// ByCategory returns records in a category, optionally narrowed to severities.
func (r *Recorder) ByCategory(ctx context.Context, category Category, severities ...Severity) ([]Record, error) {
	return r.List(ctx, Filter{Category: category, Severities: severities})
}

// Between returns records in [since, until).
func (r *Recorder) Between(ctx context.Context, since, until time.Time) ([]Record, error) {
	return r.List(ctx, Filter{Since: &since, Until: &until})
}

// SecurityEvents returns records matching the security-event predicate.
func (r *Recorder) SecurityEvents(ctx context.Context, f Filter) ([]Record, error) {
	f.SecurityOnly = true
	return r.List(ctx, f)
}

// Summary returns activity counts grouped by the given field with
// success/failure sub-counts. The store validates the grouping field.
func (r *Recorder) Summary(ctx context.Context, q SummaryQuery) ([]SummaryRow, error) {
	if q.GroupBy == "" {
		return nil, fmt.Errorf("audit: group-by field is required")
	}
	return r.store.Summarize(ctx, q)
}
