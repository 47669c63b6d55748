package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"wardbook.org/internal/audit"
	"wardbook.org/internal/ids"
)

// AuditLog implements audit.Store over PostgreSQL. The application only ever
// inserts and selects; there is no update or delete path.
type AuditLog struct {
	db *sql.DB
}

var _ audit.Store = (*AuditLog)(nil)

// securityPredicate mirrors audit.IsSecurityEvent in SQL.
const securityPredicate = `(category='security_event'
	or action in ('login','logout','password_change','permission_change')
	or severity in ('high','critical')
	or success=false)`

const auditColumns = `id, record_id, entity_type, entity_id, action, user_id,
	old_values, new_values, changed_fields, severity, category, success,
	ip, user_agent, session_id, request_id, occurred_at`

func (s *AuditLog) Append(ctx context.Context, rec *audit.Record) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	oldJSON, err := marshalValues(rec.OldValues)
	if err != nil {
		return fmt.Errorf("pg: encode old values: %w", err)
	}
	newJSON, err := marshalValues(rec.NewValues)
	if err != nil {
		return fmt.Errorf("pg: encode new values: %w", err)
	}
	changedJSON, err := json.Marshal(rec.ChangedFields)
	if err != nil {
		return fmt.Errorf("pg: encode changed fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`insert into audit_log(`+auditColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		rec.ID, rec.RecordID, rec.EntityType, rec.EntityID, string(rec.Action),
		nullable(rec.UserID), oldJSON, newJSON, changedJSON,
		string(rec.Severity), string(rec.Category), rec.Success,
		nullable(rec.IP), nullable(rec.UserAgent), nullable(rec.SessionID),
		nullable(rec.RequestID), rec.OccurredAt,
	)
	return err
}

func (s *AuditLog) List(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	f.Normalize()

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.EntityType != "" {
		add("entity_type=$%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id=$%d", f.EntityID)
	}
	if f.UserID != "" {
		add("user_id=$%d", f.UserID)
	}
	if f.Action != "" {
		add("action=$%d", string(f.Action))
	}
	if f.Category != "" {
		add("category=$%d", string(f.Category))
	}
	if len(f.Severities) > 0 {
		ph := make([]string, len(f.Severities))
		for i, sev := range f.Severities {
			args = append(args, string(sev))
			ph[i] = "$" + strconv.Itoa(len(args))
		}
		clauses = append(clauses, "severity in ("+strings.Join(ph, ",")+")")
	}
	if f.Since != nil {
		add("occurred_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("occurred_at < $%d", *f.Until)
	}
	if f.SecurityOnly {
		clauses = append(clauses, securityPredicate)
	}

	query := `select ` + auditColumns + ` from audit_log`
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" order by occurred_at desc, id desc limit $%d offset $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AuditLog) Summarize(ctx context.Context, q audit.SummaryQuery) ([]audit.SummaryRow, error) {
	column, ok := summaryColumns[q.GroupBy]
	if !ok {
		return nil, fmt.Errorf("pg: unsupported group-by field %q", q.GroupBy)
	}

	var (
		clauses []string
		args    []any
	)
	if q.Since != nil {
		args = append(args, *q.Since)
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		clauses = append(clauses, fmt.Sprintf("occurred_at < $%d", len(args)))
	}

	query := `select coalesce(` + column + `::text, ''), count(*),
		count(*) filter (where success), count(*) filter (where not success)
		from audit_log`
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	query += " group by 1 order by 2 desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.SummaryRow
	for rows.Next() {
		var row audit.SummaryRow
		if err := rows.Scan(&row.Key, &row.Total, &row.Succeeded, &row.Failed); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// summaryColumns whitelists fields a summary may group by; anything else is
// rejected before it reaches SQL.
var summaryColumns = map[string]string{
	"entity_type": "entity_type",
	"action":      "action",
	"user_id":     "user_id",
	"category":    "category",
	"severity":    "severity",
}

func scanRecord(rows *sql.Rows) (audit.Record, error) {
	var (
		rec             audit.Record
		action          string
		severity        string
		category        string
		userID          sql.NullString
		ip, ua          sql.NullString
		session, reqID  sql.NullString
		oldJSON         []byte
		newJSON         []byte
		changedJSON     []byte
	)
	err := rows.Scan(&rec.ID, &rec.RecordID, &rec.EntityType, &rec.EntityID, &action,
		&userID, &oldJSON, &newJSON, &changedJSON, &severity, &category, &rec.Success,
		&ip, &ua, &session, &reqID, &rec.OccurredAt)
	if err != nil {
		return audit.Record{}, err
	}
	rec.Action = audit.Action(action)
	rec.Severity = audit.Severity(severity)
	rec.Category = audit.Category(category)
	rec.UserID = userID.String
	rec.IP = ip.String
	rec.UserAgent = ua.String
	rec.SessionID = session.String
	rec.RequestID = reqID.String
	if len(oldJSON) > 0 {
		if err := json.Unmarshal(oldJSON, &rec.OldValues); err != nil {
			return audit.Record{}, fmt.Errorf("pg: decode old_values: %w", err)
		}
	}
	if len(newJSON) > 0 {
		if err := json.Unmarshal(newJSON, &rec.NewValues); err != nil {
			return audit.Record{}, fmt.Errorf("pg: decode new_values: %w", err)
		}
	}
	if len(changedJSON) > 0 {
		if err := json.Unmarshal(changedJSON, &rec.ChangedFields); err != nil {
			return audit.Record{}, fmt.Errorf("pg: decode changed_fields: %w", err)
		}
	}
	return rec, nil
}

func marshalValues(values map[string]any) (any, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
