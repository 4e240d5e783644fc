package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"medfollow/internal/calllog"
	"medfollow/pkg"
)

// Repository is a calllog.Sink and calllog.Reader backed by the log_records
// table.  Each row keeps the formatted log line next to the structured
// fields, so /log output matches the flat file backend byte for byte.
type Repository struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewRepository constructs a Repository from an existing sql.DB.  The caller
// is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{DB: db, Dialect: dialect}
}

// Append stores rec as one row.
func (r *Repository) Append(ctx context.Context, rec pkg.LogRecord) error {
	line, err := calllog.Format(rec)
	if err != nil {
		return err
	}
	var (
		details  any
		severity pkg.Severity
	)
	switch {
	case rec.Call != nil:
		details, severity = rec.Call, rec.Call.Severity
	case rec.Appointment != nil:
		details = rec.Appointment
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode record details: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, r.Dialect.rebind(
		`INSERT INTO log_records (id, recorded_at, kind, patient_name, language, severity, line, details)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		rec.ID.String(), rec.Timestamp.UTC().Format(time.RFC3339Nano), string(rec.Kind),
		rec.PatientName, string(rec.Language), string(severity), line, string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert log record: %w", err)
	}
	return nil
}

// Lines returns every stored line in insertion order.
func (r *Repository) Lines(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT line FROM log_records ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CountBySeverity counts call outcomes per severity.  Appointments are not
// included.
func (r *Repository) CountBySeverity(ctx context.Context) (map[pkg.Severity]int, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.rebind(
		`SELECT severity, COUNT(*) FROM log_records WHERE kind = $1 GROUP BY severity`),
		string(pkg.KindCallOutcome))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[pkg.Severity]int)
	for rows.Next() {
		var (
			sev string
			n   int
		)
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		counts[pkg.Severity(sev)] = n
	}
	return counts, rows.Err()
}
