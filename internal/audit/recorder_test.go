package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubStore struct {
	appendFn  func(context.Context, *Record) error
	listFn    func(context.Context, Filter) ([]Record, error)
	summateFn func(context.Context, SummaryQuery) ([]SummaryRow, error)
	appended  []Record
}

func (s *stubStore) Append(ctx context.Context, rec *Record) error {
	if s.appendFn != nil {
		if err := s.appendFn(ctx, rec); err != nil {
			return err
		}
	}
	s.appended = append(s.appended, *rec)
	return nil
}

func (s *stubStore) List(ctx context.Context, f Filter) ([]Record, error) {
	if s.listFn != nil {
		return s.listFn(ctx, f)
	}
	return nil, nil
}

func (s *stubStore) Summarize(ctx context.Context, q SummaryQuery) ([]SummaryRow, error) {
	if s.summateFn != nil {
		return s.summateFn(ctx, q)
	}
	return nil, nil
}

func newTestRecorder(t *testing.T, store *stubStore) *Recorder {
	t.Helper()
	rec, err := NewRecorder(store, []string{"residents", "households", "users"},
		WithClock(func() time.Time { return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return rec
}

func TestOnCreateWritesRecord(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	instance := map[string]any{"name": "A. Rahman", "ward_id": "W1"}
	rec.OnCreate(context.Background(), "residents", "res-1", instance, WriteContext{UserID: "user-9", IP: "10.0.0.1"})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.appended))
	}
	got := store.appended[0]
	if got.Action != ActionCreate || got.EntityType != "residents" || got.EntityID != "res-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.OldValues != nil {
		t.Fatalf("create must have no old values: %+v", got.OldValues)
	}
	if got.NewValues["name"] != "A. Rahman" {
		t.Fatalf("new values not captured: %+v", got.NewValues)
	}
	if got.Severity != SeverityLow || got.Category != CategoryDataModification || !got.Success {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if got.UserID != "user-9" || got.IP != "10.0.0.1" {
		t.Fatalf("write context not carried: %+v", got)
	}
	if got.ID == "" {
		t.Fatal("storage id must be generated")
	}
	if !strings.HasPrefix(got.RecordID, "AUD") {
		t.Fatalf("display id must start with AUD: %s", got.RecordID)
	}
}

func TestOnUpdateNoChangeNoRecord(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	same := map[string]any{"name": "A. Rahman", "phone": "123"}
	rec.OnUpdate(context.Background(), "residents", "res-1", same, map[string]any{"name": "A. Rahman", "phone": "123"}, WriteContext{})

	if len(store.appended) != 0 {
		t.Fatalf("no-op update must not be audited, got %d records", len(store.appended))
	}
}

func TestOnUpdateSingleField(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	before := map[string]any{"name": "A. Rahman", "phone": "123"}
	after := map[string]any{"name": "A. Rahman", "phone": "456"}
	rec.OnUpdate(context.Background(), "residents", "res-1", before, after, WriteContext{})

	if len(store.appended) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(store.appended))
	}
	got := store.appended[0]
	if len(got.ChangedFields) != 1 || got.ChangedFields[0] != "phone" {
		t.Fatalf("unexpected changed fields: %v", got.ChangedFields)
	}
	if len(got.OldValues) != 1 || got.OldValues["phone"] != "123" {
		t.Fatalf("old values must be restricted to changed fields: %+v", got.OldValues)
	}
	if len(got.NewValues) != 1 || got.NewValues["phone"] != "456" {
		t.Fatalf("new values must be restricted to changed fields: %+v", got.NewValues)
	}
}

func TestOnUpdateAddedAndRemovedFields(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	before := map[string]any{"name": "A", "old_only": 1}
	after := map[string]any{"name": "A", "new_only": 2}
	rec.OnUpdate(context.Background(), "residents", "res-1", before, after, WriteContext{})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.appended))
	}
	got := store.appended[0]
	if len(got.ChangedFields) != 2 || got.ChangedFields[0] != "new_only" || got.ChangedFields[1] != "old_only" {
		t.Fatalf("unexpected changed fields: %v", got.ChangedFields)
	}
}

func TestOnDeleteRecordsFullPriorInstance(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	prior := map[string]any{"name": "A. Rahman", "phone": "123", "ward_id": "W1"}
	rec.OnDelete(context.Background(), "households", "hh-3", prior, WriteContext{})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.appended))
	}
	got := store.appended[0]
	if got.Action != ActionDelete || got.Severity != SeverityMedium {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.OldValues) != 3 {
		t.Fatalf("delete must keep the full prior instance: %+v", got.OldValues)
	}
	if got.NewValues != nil {
		t.Fatalf("delete must have no new values: %+v", got.NewValues)
	}
}

func TestUnwatchedEntityIgnored(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	rec.OnCreate(context.Background(), "sessions", "s-1", map[string]any{"x": 1}, WriteContext{})
	rec.OnDelete(context.Background(), "sessions", "s-1", map[string]any{"x": 1}, WriteContext{})

	if len(store.appended) != 0 {
		t.Fatalf("unwatched entity must not be audited, got %d", len(store.appended))
	}
}

func TestStoreFailureIsSwallowed(t *testing.T) {
	store := &stubStore{appendFn: func(context.Context, *Record) error {
		return errors.New("audit store down")
	}}
	rec := newTestRecorder(t, store)

	// Must not panic and must not surface the error anywhere.
	rec.OnCreate(context.Background(), "residents", "res-1", map[string]any{"x": 1}, WriteContext{})
	if len(store.appended) != 0 {
		t.Fatal("append should have failed")
	}
}

func TestSecurityHook(t *testing.T) {
	store := &stubStore{}
	rec := newTestRecorder(t, store)

	rec.Security(context.Background(), ActionLogin, "user-9", false, map[string]any{"reason": "bad password"}, WriteContext{IP: "10.0.0.2"})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.appended))
	}
	got := store.appended[0]
	if got.Category != CategorySecurityEvent || got.Success || got.Action != ActionLogin {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !IsSecurityEvent(got) {
		t.Fatal("login failure must satisfy the security predicate")
	}
}

func TestIsSecurityEvent(t *testing.T) {
	base := Record{Action: ActionUpdate, Category: CategoryDataModification, Severity: SeverityLow, Success: true}
	if IsSecurityEvent(base) {
		t.Fatal("plain successful update is not a security event")
	}
	cases := []Record{
		{Action: ActionUpdate, Category: CategorySecurityEvent, Severity: SeverityLow, Success: true},
		{Action: ActionLogin, Category: CategoryDataModification, Severity: SeverityLow, Success: true},
		{Action: ActionLogout, Category: CategoryDataModification, Severity: SeverityLow, Success: true},
		{Action: ActionPasswordChange, Category: CategoryDataModification, Severity: SeverityLow, Success: true},
		{Action: ActionPermissionChange, Category: CategoryDataModification, Severity: SeverityLow, Success: true},
		{Action: ActionUpdate, Category: CategoryDataModification, Severity: SeverityHigh, Success: true},
		{Action: ActionUpdate, Category: CategoryDataModification, Severity: SeverityCritical, Success: true},
		{Action: ActionUpdate, Category: CategoryDataModification, Severity: SeverityLow, Success: false},
	}
	for i, rec := range cases {
		if !IsSecurityEvent(rec) {
			t.Fatalf("case %d must be a security event: %+v", i, rec)
		}
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: -5, Offset: -1}
	f.Normalize()
	if f.Limit != 100 || f.Offset != 0 {
		t.Fatalf("unexpected normalized filter: %+v", f)
	}
	f = Filter{Limit: 5000}
	f.Normalize()
	if f.Limit != 100 {
		t.Fatalf("limit bound not applied: %d", f.Limit)
	}
}

func TestSecurityEventsQuerySetsFlag(t *testing.T) {
	var captured Filter
	store := &stubStore{listFn: func(_ context.Context, f Filter) ([]Record, error) {
		captured = f
		return nil, nil
	}}
	rec := newTestRecorder(t, store)

	if _, err := rec.SecurityEvents(context.Background(), Filter{UserID: "user-9"}); err != nil {
		t.Fatalf("SecurityEvents: %v", err)
	}
	if !captured.SecurityOnly || captured.UserID != "user-9" || captured.Limit != 100 {
		t.Fatalf("unexpected filter passed to store: %+v", captured)
	}
}

func TestSummaryRequiresGroupBy(t *testing.T) {
	rec := newTestRecorder(t, &stubStore{})
	if _, err := rec.Summary(context.Background(), SummaryQuery{}); err == nil {
		t.Fatal("expected error for missing group-by")
	}
}
