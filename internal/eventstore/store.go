package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists events to an embedded SQLite database and serves the
// indexed query/count/stats/prune paths. A single *sql.DB is shared by
// every collaborator in the process; SQLite's own locking serializes
// writers, so Store carries no additional application-level mutex.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the events table in db. The caller owns
// db's lifecycle — Store never closes it, since the same handle backs the
// rule store, delivery queue, dedup history, and audit log.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("eventstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			source TEXT NOT NULL,
			severity TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			received_at TEXT NOT NULL,
			client_ip TEXT,
			PRIMARY KEY (event_id, received_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON events(event_type, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source_ts ON events(source, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tenant_ts ON events(tenant_id, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save persists a validated event in a single transaction. No
// deduplication is performed on event_id — callers are expected to supply
// unique ids, and duplicates are accepted and stored.
func (s *Store) Save(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("eventstore: marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (event_id, event_type, source, severity, tenant_id, payload, timestamp, received_at, client_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, evt.EventType, evt.Source, string(evt.Severity), evt.TenantID,
		string(payload), evt.Timestamp.UTC().Format(time.RFC3339Nano),
		evt.ReceivedAt.UTC().Format(time.RFC3339Nano), evt.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("eventstore: insert: %w", err)
	}

	return tx.Commit()
}

// NewEventID generates a fresh unique identifier for callers that didn't
// supply one.
func NewEventID() string {
	return uuid.NewString()
}

// Query returns newest-first rows matching the AND of every non-zero field
// in filters, capped at MaxQueryLimit (DefaultQueryLimit when limit <= 0).
func (s *Store) Query(ctx context.Context, filters Filters, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	clauses, args := whereClauses(filters)
	query := "SELECT event_id, event_type, source, severity, tenant_id, payload, timestamp, received_at, client_ip FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, event_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Count returns the number of rows matching filters.
func (s *Store) Count(ctx context.Context, filters Filters) (int64, error) {
	clauses, args := whereClauses(filters)
	query := "SELECT COUNT(*) FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("eventstore: count: %w", err)
	}
	return count, nil
}

// StatsFor returns aggregate counts for a tenant scope. An empty tenantID
// means "all tenants".
func (s *Store) StatsFor(ctx context.Context, tenantID string) (Stats, error) {
	stats := Stats{BySeverity: make(map[string]int64)}

	totalFilter := Filters{TenantID: tenantID}
	total, err := s.Count(ctx, totalFilter)
	if err != nil {
		return Stats{}, err
	}
	stats.Total = total

	last24h := Filters{TenantID: tenantID, Since: time.Now().Add(-24 * time.Hour)}
	count24h, err := s.Count(ctx, last24h)
	if err != nil {
		return Stats{}, err
	}
	stats.Last24h = count24h

	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical} {
		n, err := s.Count(ctx, Filters{TenantID: tenantID, Severity: sev})
		if err != nil {
			return Stats{}, err
		}
		stats.BySeverity[string(sev)] = n
	}

	return stats, nil
}

// Prune deletes every event with received_at < cutoff in the given tenant
// (all tenants if tenantID is empty) and returns the number of rows
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time, tenantID string) (int64, error) {
	query := "DELETE FROM events WHERE received_at < ?"
	args := []any{cutoff.UTC().Format(time.RFC3339Nano)}
	if tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("eventstore: prune: %w", err)
	}
	return res.RowsAffected()
}

func whereClauses(f Filters) ([]string, []any) {
	var clauses []string
	var args []any

	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	return clauses, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(rs rowScanner) (Event, error) {
	var (
		evt        Event
		severity   string
		payload    string
		timestamp  string
		receivedAt string
		clientIP   sql.NullString
	)
	if err := rs.Scan(&evt.EventID, &evt.EventType, &evt.Source, &severity, &evt.TenantID,
		&payload, &timestamp, &receivedAt, &clientIP); err != nil {
		return Event{}, err
	}

	evt.Severity = Severity(severity)
	evt.ClientIP = clientIP.String

	if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
		return Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("parse timestamp: %w", err)
	}
	evt.Timestamp = ts
	ra, err := time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return Event{}, fmt.Errorf("parse received_at: %w", err)
	}
	evt.ReceivedAt = ra

	return evt, nil
}
