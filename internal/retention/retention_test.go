package retention

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aetherlink/commandcenter/internal/eventstore"
)

func newTestWorker(t *testing.T, policy Policy) (*Worker, *eventstore.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events, err := eventstore.Open(context.Background(), db)
	require.NoError(t, err)
	schemas := eventstore.NewRegistry()
	eventstore.RegisterBuiltins(schemas)

	w := New(events, schemas, nil, time.Hour, policy, nil, zerolog.Nop())
	return w, events
}

func seedAt(t *testing.T, events *eventstore.Store, tenant string, receivedAt time.Time) {
	t.Helper()
	require.NoError(t, events.Save(context.Background(), eventstore.Event{
		EventID:    eventstore.NewEventID(),
		EventType:  "svc.deploy.finished",
		Severity:   eventstore.SeverityInfo,
		TenantID:   tenant,
		Payload:    map[string]any{},
		Timestamp:  receivedAt,
		ReceivedAt: receivedAt,
	}))
}

func TestPruneOnceRemovesOnlyAgedRowsInScope(t *testing.T) {
	w, events := newTestWorker(t, Policy{"": time.Hour})
	ctx := context.Background()

	seedAt(t, events, "acme", time.Now().Add(-2*time.Hour))
	seedAt(t, events, "acme", time.Now())

	require.NoError(t, w.PruneOnce(ctx))

	stats, err := events.StatsFor(ctx, "acme")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Total)
}

func TestPruneOnceHonorsPerTenantPolicy(t *testing.T) {
	w, events := newTestWorker(t, Policy{"": time.Hour, "special": 24 * time.Hour})
	ctx := context.Background()

	seedAt(t, events, "special", time.Now().Add(-2*time.Hour))

	require.NoError(t, w.PruneOnce(ctx))

	stats, err := events.StatsFor(ctx, "special")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Total, "special tenant has a 24h retention window, row should survive")
}

func TestPruneOnceEmitsPrunedEventWhenRowsDeleted(t *testing.T) {
	w, events := newTestWorker(t, Policy{"": time.Hour})
	ctx := context.Background()

	seedAt(t, events, "acme", time.Now().Add(-2*time.Hour))
	require.NoError(t, w.PruneOnce(ctx))

	stats, err := events.StatsFor(ctx, eventstore.SystemTenant)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Total, int64(1), "a system-scoped ops.events.pruned event should have been recorded")
}

func TestPruneOnceIsNoopWhenNothingAged(t *testing.T) {
	w, events := newTestWorker(t, DefaultPolicy())
	ctx := context.Background()

	seedAt(t, events, "acme", time.Now())
	require.NoError(t, w.PruneOnce(ctx))

	stats, err := events.StatsFor(ctx, "acme")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Total)
}
