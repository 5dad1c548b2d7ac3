package eventstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := Open(context.Background(), db)
	require.NoError(t, err)
	return store
}

func TestSaveAndQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	evt := Event{
		EventID: "evt-1", EventType: "svc.deploy.finished", Source: "ci",
		Severity: SeverityInfo, TenantID: "acme", Payload: map[string]any{"build": 42},
		Timestamp: time.Now().UTC(), ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, evt))

	got, err := store.Query(ctx, Filters{TenantID: "acme"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, evt.EventID, got[0].EventID)
	require.Equal(t, float64(42), got[0].Payload["build"])
}

func TestQueryFiltersAreANDed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Save(ctx, Event{
		EventID: "a", EventType: "x", Source: "svc-a", Severity: SeverityWarning,
		TenantID: "t1", Payload: map[string]any{}, Timestamp: now, ReceivedAt: now,
	}))
	require.NoError(t, store.Save(ctx, Event{
		EventID: "b", EventType: "x", Source: "svc-b", Severity: SeverityWarning,
		TenantID: "t1", Payload: map[string]any{}, Timestamp: now, ReceivedAt: now,
	}))

	got, err := store.Query(ctx, Filters{EventType: "x", Source: "svc-a", TenantID: "t1"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].EventID)
}

func TestQueryLimitClampedToMax(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, Event{
			EventID: string(rune('a' + i)), EventType: "x", Source: "s", Severity: SeverityInfo,
			TenantID: "t", Payload: map[string]any{}, Timestamp: now, ReceivedAt: now,
		}))
	}
	got, err := store.Query(ctx, Filters{}, MaxQueryLimit+500)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestPruneRemovesOnlyAgedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	require.NoError(t, store.Save(ctx, Event{
		EventID: "old", EventType: "x", Source: "s", Severity: SeverityInfo,
		TenantID: "t", Payload: map[string]any{}, Timestamp: old, ReceivedAt: old,
	}))
	require.NoError(t, store.Save(ctx, Event{
		EventID: "new", EventType: "x", Source: "s", Severity: SeverityInfo,
		TenantID: "t", Payload: map[string]any{}, Timestamp: fresh, ReceivedAt: fresh,
	}))

	cutoff := time.Now().Add(-24 * time.Hour)
	n, err := store.Prune(ctx, cutoff, "t")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	remaining, err := store.Query(ctx, Filters{TenantID: "t"}, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "new", remaining[0].EventID)
}

func TestStatsForCountsBySeverity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, Event{
		EventID: "1", EventType: "x", Source: "s", Severity: SeverityCritical,
		TenantID: "t", Payload: map[string]any{}, Timestamp: now, ReceivedAt: now,
	}))
	require.NoError(t, store.Save(ctx, Event{
		EventID: "2", EventType: "x", Source: "s", Severity: SeverityCritical,
		TenantID: "t", Payload: map[string]any{}, Timestamp: now, ReceivedAt: now,
	}))

	stats, err := store.StatsFor(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(2), stats.BySeverity[string(SeverityCritical)])
	require.Equal(t, int64(2), stats.Last24h)
}
