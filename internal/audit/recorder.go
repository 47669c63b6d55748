package audit

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"wardbook.org/internal/ids"
	"wardbook.org/internal/obs"
)

// Store persists records and serves read-only queries.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
	Summarize(ctx context.Context, q SummaryQuery) ([]SummaryRow, error)
}

// MutationSink receives after-commit entity mutation events from the
// persistence layer. The hooks fire only after the underlying write
// succeeded, so no record is ever created for a write that did not happen.
type MutationSink interface {
	OnCreate(ctx context.Context, entityType, entityID string, instance map[string]any, wc WriteContext)
	OnUpdate(ctx context.Context, entityType, entityID string, before, after map[string]any, wc WriteContext)
	OnDelete(ctx context.Context, entityType, entityID string, instance map[string]any, wc WriteContext)
}

// Recorder subscribes to mutation events for a fixed set of watched entity
// types and appends one record per mutation. Stateless apart from
// configuration; safe for concurrent use.
type Recorder struct {
	store   Store
	watched map[string]struct{}
	now     func() time.Time
}

var _ MutationSink = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder watching the given entity types. The
// watched set is declared once and never grows at runtime.
func NewRecorder(store Store, watched []string, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("audit: store is required")
	}
	set := make(map[string]struct{}, len(watched))
	for _, w := range watched {
		w = strings.TrimSpace(w)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	r := &Recorder{store: store, watched: set, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Watches reports whether mutations of entityType produce records.
func (r *Recorder) Watches(entityType string) bool {
	_, ok := r.watched[entityType]
	return ok
}

// OnCreate records a successful create of a watched entity.
func (r *Recorder) OnCreate(ctx context.Context, entityType, entityID string, instance map[string]any, wc WriteContext) {
	if !r.Watches(entityType) {
		return
	}
	r.Log(ctx, Record{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     ActionCreate,
		NewValues:  instance,
		Severity:   SeverityLow,
		Category:   CategoryDataModification,
		Success:    true,
	}, wc)
}

// OnUpdate records a successful update of a watched entity. An update that
// changed nothing produces no record; otherwise old/new values are restricted
// to the changed fields.
func (r *Recorder) OnUpdate(ctx context.Context, entityType, entityID string, before, after map[string]any, wc WriteContext) {
	if !r.Watches(entityType) {
		return
	}
	changed := changedFields(before, after)
	if len(changed) == 0 {
		return
	}
	r.Log(ctx, Record{
		EntityType:    entityType,
		EntityID:      entityID,
		Action:        ActionUpdate,
		OldValues:     restrict(before, changed),
		NewValues:     restrict(after, changed),
		ChangedFields: changed,
		Severity:      SeverityLow,
		Category:      CategoryDataModification,
		Success:       true,
	}, wc)
}

// OnDelete records a successful delete of a watched entity with the full
// prior instance. Deletes rank medium severity by policy.
func (r *Recorder) OnDelete(ctx context.Context, entityType, entityID string, instance map[string]any, wc WriteContext) {
	if !r.Watches(entityType) {
		return
	}
	r.Log(ctx, Record{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     ActionDelete,
		OldValues:  instance,
		Severity:   SeverityMedium,
		Category:   CategoryDataModification,
		Success:    true,
	}, wc)
}

// Security records a security-relevant action (login, logout, password
// change) against a user account.
func (r *Recorder) Security(ctx context.Context, action Action, userID string, success bool, detail map[string]any, wc WriteContext) {
	sev := SeverityLow
	if !success {
		sev = SeverityMedium
	}
	r.Log(ctx, Record{
		EntityType: "users",
		EntityID:   userID,
		Action:     action,
		NewValues:  detail,
		Severity:   sev,
		Category:   CategorySecurityEvent,
		Success:    success,
		UserID:     userID,
	}, wc)
}

// Log is the low-level constructor all hooks call. Storage failures are
// swallowed here: the record is lost, a structured line and a drop counter
// note it, and the business mutation is never rolled back. Availability of
// the primary write wins over completeness of the trail.
func (r *Recorder) Log(ctx context.Context, rec Record, wc WriteContext) {
	now := r.now().UTC()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.RecordID == "" {
		rec.RecordID = displayID(now)
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = now
	}
	if rec.UserID == "" {
		rec.UserID = wc.UserID
	}
	rec.IP = wc.IP
	rec.UserAgent = wc.UserAgent
	rec.SessionID = wc.SessionID
	rec.RequestID = wc.RequestID

	if err := r.store.Append(ctx, &rec); err != nil {
		obs.AuditDropped()
		obs.LogEvent(map[string]any{
			"ts":          now.Format(time.RFC3339Nano),
			"level":       "error",
			"type":        "audit",
			"msg":         "audit append failed",
			"entity_type": rec.EntityType,
			"entity_id":   rec.EntityID,
			"action":      string(rec.Action),
			"error":       err.Error(),
		})
		return
	}
	obs.AuditWritten()
}

// displayID derives the human-readable record id. Display only, never the
// record's identity key.
func displayID(now time.Time) string {
	return fmt.Sprintf("AUD%d", now.UnixMilli())
}

func changedFields(before, after map[string]any) []string {
	seen := make(map[string]struct{}, len(before)+len(after))
	var changed []string
	note := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		if !reflect.DeepEqual(before[k], after[k]) {
			changed = append(changed, k)
		}
	}
	for k := range before {
		note(k)
	}
	for k := range after {
		note(k)
	}
	sort.Strings(changed)
	return changed
}

func restrict(values map[string]any, fields []string) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := values[f]; ok {
			out[f] = v
		}
	}
	return out
}
