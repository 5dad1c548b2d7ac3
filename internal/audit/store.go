package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
)

// Store persists audit Records in SQLite. Records are append-only: there
// is no Update or Delete.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the operator_audit table.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS operator_audit (
			record_id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			target_id TEXT,
			metadata TEXT,
			source_ip TEXT,
			created_at TEXT NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_operator_audit_created_at ON operator_audit(created_at)`); err != nil {
		return nil, fmt.Errorf("audit: migrate index: %w", err)
	}
	return s, nil
}

// Record appends a new audit entry, stamping created_at to now.
func (s *Store) Record(ctx context.Context, r Record) (Record, error) {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return Record{}, fmt.Errorf("audit: marshal metadata: %w", err)
	}
	r.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_audit (actor, action, target_id, metadata, source_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Actor, r.Action, r.TargetID, string(metadata), r.SourceIP, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, ccerrors.Storage("record audit entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, ccerrors.Storage("record audit entry: last insert id", err)
	}
	r.RecordID = id
	return r, nil
}

// List returns the most recent audit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, actor, action, target_id, metadata, source_ip, created_at
		FROM operator_audit ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, ccerrors.Storage("list audit records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, ccerrors.Storage("scan audit record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes total audit volume and a per-action breakdown.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByAction: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operator_audit`).Scan(&stats.Total); err != nil {
		return Stats{}, ccerrors.Storage("audit stats: total", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM operator_audit GROUP BY action`)
	if err != nil {
		return Stats{}, ccerrors.Storage("audit stats: by action", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return Stats{}, ccerrors.Storage("audit stats: scan", err)
		}
		stats.ByAction[action] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(rs rowScanner) (Record, error) {
	var (
		r         Record
		targetID  sql.NullString
		metadata  sql.NullString
		sourceIP  sql.NullString
		createdAt string
	)
	if err := rs.Scan(&r.RecordID, &r.Actor, &r.Action, &targetID, &metadata, &sourceIP, &createdAt); err != nil {
		return Record{}, err
	}
	r.TargetID = targetID.String
	r.SourceIP = sourceIP.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return Record{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, err
	}
	r.CreatedAt = ts
	return r, nil
}
