package audit

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := Open(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Record(context.Background(), Record{
		Actor: "alice", Action: ActionRuleCreate, TargetID: "7", Metadata: map[string]any{"name": "too many errors"},
	})
	require.NoError(t, err)
	require.NotZero(t, r.RecordID)
	require.False(t, r.CreatedAt.IsZero())
}

func TestListReturnsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, Record{Actor: "alice", Action: ActionRuleCreate, TargetID: "1"})
	require.NoError(t, err)
	_, err = s.Record(ctx, Record{Actor: "bob", Action: ActionRuleDelete, TargetID: "1"})
	require.NoError(t, err)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, ActionRuleDelete, list[0].Action)
	require.Equal(t, ActionRuleCreate, list[1].Action)
}

func TestStatsGroupsByAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, Record{Actor: "alice", Action: ActionRuleCreate})
	require.NoError(t, err)
	_, err = s.Record(ctx, Record{Actor: "alice", Action: ActionRuleCreate})
	require.NoError(t, err)
	_, err = s.Record(ctx, Record{Actor: "bob", Action: ActionReplay})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total)
	require.EqualValues(t, 2, stats.ByAction[ActionRuleCreate])
	require.EqualValues(t, 1, stats.ByAction[ActionReplay])
}

func TestRecordPersistsMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, Record{
		Actor: "alice", Action: ActionReplay, TargetID: "42",
		Metadata: map[string]any{"new_delivery_id": float64(99)},
	})
	require.NoError(t, err)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, float64(99), list[0].Metadata["new_delivery_id"])
}
