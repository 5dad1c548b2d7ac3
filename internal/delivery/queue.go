package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
)

// Queue persists delivery entries and the completed-deliveries history
// table in SQLite, sharing the process's single *sql.DB handle.
type Queue struct {
	db *sql.DB
}

// Open creates (or attaches to) the delivery_queue and
// completed_deliveries tables.
func Open(ctx context.Context, db *sql.DB) (*Queue, error) {
	q := &Queue{db: db}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS delivery_queue (
			delivery_id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_event_id TEXT NOT NULL,
			alert_payload TEXT NOT NULL,
			webhook_url TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL,
			next_attempt_at TEXT NOT NULL,
			last_error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_queue_due ON delivery_queue(next_attempt_at)`,
		`CREATE TABLE IF NOT EXISTS completed_deliveries (
			delivery_id INTEGER NOT NULL,
			alert_event_id TEXT NOT NULL,
			alert_payload TEXT NOT NULL,
			webhook_url TEXT NOT NULL,
			outcome TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			last_error TEXT,
			completed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_deliveries_completed_at ON completed_deliveries(completed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("delivery: migrate: %w", err)
		}
	}
	return q, nil
}

// Enqueue appends a new pending delivery, defaulting MaxAttempts when the
// caller leaves it unset.
func (q *Queue) Enqueue(ctx context.Context, e Entry) (Entry, error) {
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e.AlertPayload)
	if err != nil {
		return Entry{}, fmt.Errorf("delivery: marshal payload: %w", err)
	}

	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO delivery_queue (alert_event_id, alert_payload, webhook_url, attempt_count, max_attempts, next_attempt_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AlertEventID, string(payload), e.WebhookURL, e.AttemptCount, e.MaxAttempts,
		e.NextAttemptAt.Format(time.RFC3339Nano), e.LastError,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, ccerrors.Storage("enqueue delivery", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, ccerrors.Storage("enqueue delivery: last insert id", err)
	}
	e.DeliveryID = id
	return e, nil
}

// DueBatch returns up to limit entries whose next_attempt_at <= now,
// oldest first. The dispatcher never processes a row with
// next_attempt_at > now.
func (q *Queue) DueBatch(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT delivery_id, alert_event_id, alert_payload, webhook_url, attempt_count, max_attempts, next_attempt_at, last_error, created_at, updated_at
		FROM delivery_queue
		WHERE next_attempt_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`, time.Now().UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, ccerrors.Storage("due batch", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, ccerrors.Storage("scan delivery", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSuccess removes a delivered entry from the queue and records its
// terminal outcome in completed_deliveries.
func (q *Queue) MarkSuccess(ctx context.Context, e Entry) error {
	return q.complete(ctx, e, OutcomeDelivered, "")
}

// MarkDeadLettered removes an exhausted entry from the queue and records
// its terminal outcome.
func (q *Queue) MarkDeadLettered(ctx context.Context, e Entry, lastError string) error {
	return q.complete(ctx, e, OutcomeDeadLettered, lastError)
}

func (q *Queue) complete(ctx context.Context, e Entry, outcome Outcome, lastError string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return ccerrors.Storage("complete delivery: begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_queue WHERE delivery_id = ?`, e.DeliveryID); err != nil {
		return ccerrors.Storage("complete delivery: delete", err)
	}
	payload, err := json.Marshal(e.AlertPayload)
	if err != nil {
		return fmt.Errorf("delivery: marshal payload for history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completed_deliveries (delivery_id, alert_event_id, alert_payload, webhook_url, outcome, attempts, last_error, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DeliveryID, e.AlertEventID, string(payload), e.WebhookURL, string(outcome), e.AttemptCount, lastError,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return ccerrors.Storage("complete delivery: insert history", err)
	}
	return tx.Commit()
}

// Reschedule records a transient failure: stores e.AttemptCount (already
// incremented by the caller) as attempt_count, sets last_error, and pushes
// next_attempt_at out by the dispatcher-computed backoff. Invariant: 0 <= attempt_count <= max_attempts is preserved by
// the caller only ever reaching here when attempt_count < max_attempts.
func (q *Queue) Reschedule(ctx context.Context, e Entry, nextAttemptAt time.Time, lastError string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE delivery_queue SET attempt_count = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE delivery_id = ?`,
		e.AttemptCount, lastError, nextAttemptAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano), e.DeliveryID,
	)
	if err != nil {
		return ccerrors.Storage("reschedule delivery", err)
	}
	return nil
}

// List returns up to limit pending queue entries (200 when limit is <= 0
// or above 1000), newest first, for the queue-contents read endpoint.
func (q *Queue) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT delivery_id, alert_event_id, alert_payload, webhook_url, attempt_count, max_attempts, next_attempt_at, last_error, created_at, updated_at
		FROM delivery_queue ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, ccerrors.Storage("list deliveries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, ccerrors.Storage("scan delivery", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// History returns the most recent completed deliveries, newest first.
func (q *Queue) History(ctx context.Context, limit int) ([]Completed, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT delivery_id, alert_event_id, alert_payload, webhook_url, outcome, attempts, last_error, completed_at
		FROM completed_deliveries ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, ccerrors.Storage("delivery history", err)
	}
	defer rows.Close()

	var out []Completed
	for rows.Next() {
		c, err := scanCompleted(rows)
		if err != nil {
			return nil, ccerrors.Storage("scan delivery history", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats summarizes queue depth and completed-delivery totals.
type Stats struct {
	Pending      int64 `json:"pending"`
	Delivered    int64 `json:"delivered"`
	DeadLettered int64 `json:"dead_lettered"`
}

// Stats computes queue depth and lifetime completed counts.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_queue`).Scan(&s.Pending); err != nil {
		return Stats{}, ccerrors.Storage("stats: pending", err)
	}
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_deliveries WHERE outcome = ?`, string(OutcomeDelivered)).Scan(&s.Delivered); err != nil {
		return Stats{}, ccerrors.Storage("stats: delivered", err)
	}
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_deliveries WHERE outcome = ?`, string(OutcomeDeadLettered)).Scan(&s.DeadLettered); err != nil {
		return Stats{}, ccerrors.Storage("stats: dead lettered", err)
	}
	return s, nil
}

// GetCompleted fetches one completed-delivery record, used by the replay
// endpoint to recover the original webhook URL and alert event id.
func (q *Queue) GetCompleted(ctx context.Context, deliveryID int64) (Completed, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT delivery_id, alert_event_id, alert_payload, webhook_url, outcome, attempts, last_error, completed_at
		FROM completed_deliveries WHERE delivery_id = ? ORDER BY completed_at DESC LIMIT 1`, deliveryID)

	c, err := scanCompleted(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Completed{}, ccerrors.NewNotFound("delivery", fmt.Sprintf("%d", deliveryID))
		}
		return Completed{}, ccerrors.Storage("get completed delivery", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompleted(rs rowScanner) (Completed, error) {
	var (
		c           Completed
		payload     string
		outcome     string
		lastErr     sql.NullString
		completedAt string
	)
	if err := rs.Scan(&c.DeliveryID, &c.AlertEventID, &payload, &c.WebhookURL, &outcome, &c.Attempts, &lastErr, &completedAt); err != nil {
		return Completed{}, err
	}
	if err := json.Unmarshal([]byte(payload), &c.AlertPayload); err != nil {
		return Completed{}, fmt.Errorf("unmarshal alert_payload: %w", err)
	}
	c.Outcome = Outcome(outcome)
	c.LastError = lastErr.String

	ts, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return Completed{}, err
	}
	c.CompletedAt = ts
	return c, nil
}

func scanEntry(rs rowScanner) (Entry, error) {
	var (
		e             Entry
		payload       string
		lastErr       sql.NullString
		nextAttemptAt string
		createdAt     string
		updatedAt     string
	)
	if err := rs.Scan(&e.DeliveryID, &e.AlertEventID, &payload, &e.WebhookURL, &e.AttemptCount, &e.MaxAttempts,
		&nextAttemptAt, &lastErr, &createdAt, &updatedAt); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(payload), &e.AlertPayload); err != nil {
		return Entry{}, fmt.Errorf("unmarshal alert_payload: %w", err)
	}
	e.LastError = lastErr.String

	na, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return Entry{}, err
	}
	e.NextAttemptAt = na
	ca, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt = ca
	ua, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = ua

	return e, nil
}
