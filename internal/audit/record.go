// Package audit captures an append-only history of mutations to watched
// entity types and of security-relevant actions. Records are written
// best-effort: a failed append is logged and counted but never propagated to
// the business write that triggered it.
package audit

import "time"

// Action classifies what happened to the entity or account.
type Action string

const (
	ActionCreate           Action = "create"
	ActionUpdate           Action = "update"
	ActionDelete           Action = "delete"
	ActionLogin            Action = "login"
	ActionLogout           Action = "logout"
	ActionPasswordChange   Action = "password_change"
	ActionPermissionChange Action = "permission_change"
	ActionEmailVerified    Action = "email_verified"
)

// Severity ranks how much attention a record deserves.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups records by concern.
type Category string

const (
	CategoryDataModification Category = "data_modification"
	CategorySecurityEvent    Category = "security_event"
)

// Record is one immutable audit entry. The application only ever appends;
// deletion is left to external retention tooling. ID is the storage key;
// RecordID is a human-readable display id and never used as identity.
type Record struct {
	ID            string         `json:"id"`
	RecordID      string         `json:"record_id"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Action        Action         `json:"action"`
	UserID        string         `json:"user_id,omitempty"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	ChangedFields []string       `json:"changed_fields,omitempty"`
	Severity      Severity       `json:"severity"`
	Category      Category       `json:"category"`
	Success       bool           `json:"success"`
	IP            string         `json:"ip,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// WriteContext carries request-scoped facts the persistence layer knows at
// mutation time. UserID is empty for system-initiated writes.
type WriteContext struct {
	UserID    string
	IP        string
	UserAgent string
	SessionID string
	RequestID string
}

// IsSecurityEvent reports whether the record counts as a security event:
// security category, a security-relevant action, high/critical severity, or
// any failed operation.
func IsSecurityEvent(r Record) bool {
	if r.Category == CategorySecurityEvent {
		return true
	}
	switch r.Action {
	case ActionLogin, ActionLogout, ActionPasswordChange, ActionPermissionChange:
		return true
	}
	if r.Severity == SeverityHigh || r.Severity == SeverityCritical {
		return true
	}
	return !r.Success
}
