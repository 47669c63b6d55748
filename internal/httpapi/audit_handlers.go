package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wardbook.org/internal/audit"
)

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	records, err := a.recorder.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (a *API) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	sq := audit.SummaryQuery{GroupBy: strings.TrimSpace(q.Get("group_by"))}
	if sq.GroupBy == "" {
		writeError(w, r, http.StatusBadRequest, "group_by is required")
		return
	}
	var err error
	if sq.Since, err = parseTimeParam(q.Get("since")); err != nil {
		writeError(w, r, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	if sq.Until, err = parseTimeParam(q.Get("until")); err != nil {
		writeError(w, r, http.StatusBadRequest, "until must be RFC 3339")
		return
	}
	rows, err := a.recorder.Summary(r.Context(), sq)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if rows == nil {
		rows = []audit.SummaryRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_by": sq.GroupBy,
		"rows":     rows,
	})
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		EntityID:   strings.TrimSpace(q.Get("entity_id")),
		UserID:     strings.TrimSpace(q.Get("user_id")),
		Action:     audit.Action(strings.TrimSpace(q.Get("action"))),
		Category:   audit.Category(strings.TrimSpace(q.Get("category"))),
	}
	for _, s := range q["severity"] {
		if s = strings.TrimSpace(s); s != "" {
			f.Severities = append(f.Severities, audit.Severity(s))
		}
	}
	if q.Get("security") == "true" {
		f.SecurityOnly = true
	}

	var err error
	if f.Since, err = parseTimeParam(q.Get("since")); err != nil {
		return audit.Filter{}, errInvalidParam("since must be RFC 3339")
	}
	if f.Until, err = parseTimeParam(q.Get("until")); err != nil {
		return audit.Filter{}, errInvalidParam("until must be RFC 3339")
	}
	if f.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		return audit.Filter{}, errInvalidParam("limit must be an integer")
	}
	if f.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		return audit.Filter{}, errInvalidParam("offset must be an integer")
	}
	return f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return string(e) }

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
