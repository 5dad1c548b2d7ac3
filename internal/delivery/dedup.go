package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
)

// DedupStore tracks the last time each (rule_name, tenant_id) pair raised
// an alert, so the evaluator can suppress repeat trips inside a
// configurable window.
type DedupStore struct {
	db     *sql.DB
	window time.Duration
}

// OpenDedup creates (or attaches to) the alert_dedup table. window is the
// suppression interval applied by Suppressed.
func OpenDedup(ctx context.Context, db *sql.DB, window time.Duration) (*DedupStore, error) {
	d := &DedupStore{db: db, window: window}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alert_dedup (
			rule_name TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			last_raised_at TEXT NOT NULL,
			PRIMARY KEY (rule_name, tenant_id)
		)`); err != nil {
		return nil, fmt.Errorf("delivery: migrate dedup: %w", err)
	}
	return d, nil
}

// Suppressed reports whether ruleName has raised for tenantID within the
// configured window. A zero tenantID is treated as its own scope, matching
// the un-scoped (system-wide) rule case.
func (d *DedupStore) Suppressed(ctx context.Context, ruleName, tenantID string) (bool, error) {
	var lastRaisedAt string
	err := d.db.QueryRowContext(ctx, `
		SELECT last_raised_at FROM alert_dedup WHERE rule_name = ? AND tenant_id = ?`,
		ruleName, tenantID).Scan(&lastRaisedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, ccerrors.Storage("dedup lookup", err)
	}

	last, err := time.Parse(time.RFC3339Nano, lastRaisedAt)
	if err != nil {
		return false, ccerrors.Storage("dedup parse timestamp", err)
	}
	return time.Since(last) < d.window, nil
}

// MarkRaised records ruleName/tenantID as having just raised, resetting
// its suppression window.
func (d *DedupStore) MarkRaised(ctx context.Context, ruleName, tenantID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO alert_dedup (rule_name, tenant_id, last_raised_at)
		VALUES (?, ?, ?)
		ON CONFLICT(rule_name, tenant_id) DO UPDATE SET last_raised_at = excluded.last_raised_at`,
		ruleName, tenantID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return ccerrors.Storage("mark raised", err)
	}
	return nil
}
