package delivery

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q, err := Open(context.Background(), db)
	require.NoError(t, err)
	return q, db
}

func TestEnqueueDefaultsMaxAttempts(t *testing.T) {
	q, _ := newTestQueue(t)
	e, err := q.Enqueue(context.Background(), Entry{
		AlertEventID: "evt-1", AlertPayload: map[string]any{"k": "v"}, WebhookURL: "https://example.test/hook",
	})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxAttempts, e.MaxAttempts)
	require.NotZero(t, e.DeliveryID)
}

func TestDueBatchOnlyReturnsDueEntries(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	due, err := q.Enqueue(ctx, Entry{AlertEventID: "a", AlertPayload: map[string]any{}, WebhookURL: "u", NextAttemptAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Entry{AlertEventID: "b", AlertPayload: map[string]any{}, WebhookURL: "u", NextAttemptAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	batch, err := q.DueBatch(ctx, 50)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, due.DeliveryID, batch[0].DeliveryID)
}

func TestMarkSuccessRemovesRowAndRecordsHistory(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	e, err := q.Enqueue(ctx, Entry{AlertEventID: "a", AlertPayload: map[string]any{}, WebhookURL: "u"})
	require.NoError(t, err)

	require.NoError(t, q.MarkSuccess(ctx, e))

	batch, err := q.DueBatch(ctx, 50)
	require.NoError(t, err)
	require.Empty(t, batch)

	history, err := q.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, OutcomeDelivered, history[0].Outcome)
}

func TestMarkDeadLetteredRecordsHistory(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	e, err := q.Enqueue(ctx, Entry{AlertEventID: "a", AlertPayload: map[string]any{}, WebhookURL: "u", MaxAttempts: 1})
	require.NoError(t, err)
	e.AttemptCount = 1

	require.NoError(t, q.MarkDeadLettered(ctx, e, "boom"))

	history, err := q.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, OutcomeDeadLettered, history[0].Outcome)
	require.Equal(t, "boom", history[0].LastError)
}

func TestRescheduleKeepsAttemptBounds(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	e, err := q.Enqueue(ctx, Entry{AlertEventID: "a", AlertPayload: map[string]any{}, WebhookURL: "u"})
	require.NoError(t, err)

	e.AttemptCount = 1
	next := time.Now().Add(30 * time.Second)
	require.NoError(t, q.Reschedule(ctx, e, next, "transient failure"))

	list, err := q.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].AttemptCount)
	require.True(t, list[0].AttemptCount <= list[0].MaxAttempts)
	require.Equal(t, "transient failure", list[0].LastError)
}

func TestReplaySynthesizesFreshEntry(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	e, err := q.Enqueue(ctx, Entry{AlertEventID: "evt-9", AlertPayload: map[string]any{"x": 1.0}, WebhookURL: "u", MaxAttempts: 1})
	require.NoError(t, err)
	e.AttemptCount = 1
	require.NoError(t, q.MarkDeadLettered(ctx, e, "exhausted"))

	replayed, err := q.Replay(ctx, e.DeliveryID)
	require.NoError(t, err)
	require.Equal(t, 0, replayed.AttemptCount)
	require.Equal(t, "evt-9", replayed.AlertEventID)
	require.Equal(t, "u", replayed.WebhookURL)
	require.Equal(t, float64(1), replayed.AlertPayload["x"])
	require.NotEqual(t, e.DeliveryID, replayed.DeliveryID)
}

func TestDedupSuppressionWindow(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dedup, err := OpenDedup(context.Background(), db, 300*time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	suppressed, err := dedup.Suppressed(ctx, "rule-a", "tenant-a")
	require.NoError(t, err)
	require.False(t, suppressed)

	require.NoError(t, dedup.MarkRaised(ctx, "rule-a", "tenant-a"))

	suppressed, err = dedup.Suppressed(ctx, "rule-a", "tenant-a")
	require.NoError(t, err)
	require.True(t, suppressed)

	suppressed, err = dedup.Suppressed(ctx, "rule-a", "tenant-b")
	require.NoError(t, err)
	require.False(t, suppressed, "dedup is scoped per (rule_name, tenant_id)")
}
