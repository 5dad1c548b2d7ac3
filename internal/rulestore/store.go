package rulestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
)

var validate = validator.New()

// Store persists Rule rows in SQLite. It shares the process's single
// *sql.DB handle with the event store, delivery queue, and dedup history.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the alert_rules table.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alert_rules (
			rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			event_type TEXT,
			source TEXT,
			severity TEXT,
			window_seconds INTEGER NOT NULL,
			threshold INTEGER NOT NULL,
			tenant_id TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("rulestore: migrate: %w", err)
	}
	return s, nil
}

// Create validates and persists a new rule. created_at and updated_at are
// both set to now.
func (s *Store) Create(ctx context.Context, r Rule) (Rule, error) {
	if err := validate.Struct(r); err != nil {
		return Rule{}, ccerrors.NewValidation("", err.Error())
	}

	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules (name, event_type, source, severity, window_seconds, threshold, tenant_id, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.EventType, r.Source, string(r.Severity), r.WindowSeconds, r.Threshold,
		r.TenantID, boolToInt(r.Enabled), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Rule{}, ccerrors.Storage("create rule", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Rule{}, ccerrors.Storage("create rule: last insert id", err)
	}
	r.RuleID = id
	return r, nil
}

// Get returns a single rule by id.
func (s *Store) Get(ctx context.Context, id int64) (Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rule_id, name, event_type, source, severity, window_seconds, threshold, tenant_id, enabled, created_at, updated_at
		FROM alert_rules WHERE rule_id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return Rule{}, ccerrors.NewNotFound("rule", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return Rule{}, ccerrors.Storage("get rule", err)
	}
	return r, nil
}

// List returns every rule. onlyEnabled restricts the result to enabled
// rules, which is what the evaluator uses on every tick.
func (s *Store) List(ctx context.Context, onlyEnabled bool) ([]Rule, error) {
	query := `SELECT rule_id, name, event_type, source, severity, window_seconds, threshold, tenant_id, enabled, created_at, updated_at FROM alert_rules`
	if onlyEnabled {
		query += " WHERE enabled = 1"
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, ccerrors.Storage("list rules", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, ccerrors.Storage("scan rule", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetEnabled toggles a rule's enabled flag, updating updated_at but
// preserving created_at.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) (Rule, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alert_rules SET enabled = ?, updated_at = ? WHERE rule_id = ?`,
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return Rule{}, ccerrors.Storage("set enabled", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Rule{}, ccerrors.Storage("set enabled: rows affected", err)
	}
	if n == 0 {
		return Rule{}, ccerrors.NewNotFound("rule", fmt.Sprintf("%d", id))
	}
	return s.Get(ctx, id)
}

// Delete hard-deletes a rule.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE rule_id = ?`, id)
	if err != nil {
		return ccerrors.Storage("delete rule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ccerrors.Storage("delete rule: rows affected", err)
	}
	if n == 0 {
		return ccerrors.NewNotFound("rule", fmt.Sprintf("%d", id))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(rs rowScanner) (Rule, error) {
	var (
		r                    Rule
		eventType, src, sev  sql.NullString
		tenant               sql.NullString
		enabled              int
		createdAt, updatedAt string
	)
	if err := rs.Scan(&r.RuleID, &r.Name, &eventType, &src, &sev, &r.WindowSeconds, &r.Threshold,
		&tenant, &enabled, &createdAt, &updatedAt); err != nil {
		return Rule{}, err
	}
	r.EventType = eventType.String
	r.Source = src.String
	if sev.Valid {
		r.Severity = eventstore.Severity(sev.String)
	}
	r.TenantID = tenant.String
	r.Enabled = enabled != 0

	ca, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Rule{}, err
	}
	r.CreatedAt = ca
	ua, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Rule{}, err
	}
	r.UpdatedAt = ua

	return r, nil
}
