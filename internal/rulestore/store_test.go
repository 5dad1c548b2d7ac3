package rulestore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
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

func TestCreateRejectsInvalidRule(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), Rule{Name: "", WindowSeconds: 60, Threshold: 5})
	require.Error(t, err)
	var valErr *ccerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule, err := s.Create(ctx, Rule{
		Name: "too many errors", EventType: "svc.error", Severity: eventstore.SeverityError,
		WindowSeconds: 60, Threshold: 5, Enabled: true,
	})
	require.NoError(t, err)
	require.NotZero(t, rule.RuleID)

	got, err := s.Get(ctx, rule.RuleID)
	require.NoError(t, err)
	require.Equal(t, rule.Name, got.Name)
	require.Equal(t, eventstore.SeverityError, got.Severity)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 999)
	var nfErr *ccerrors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestListOnlyEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, Rule{Name: "enabled-rule", WindowSeconds: 60, Threshold: 1, Enabled: true})
	require.NoError(t, err)
	disabled, err := s.Create(ctx, Rule{Name: "disabled-rule", WindowSeconds: 60, Threshold: 1, Enabled: false})
	require.NoError(t, err)

	enabled, err := s.List(ctx, true)
	require.NoError(t, err)
	for _, r := range enabled {
		require.NotEqual(t, disabled.RuleID, r.RuleID)
	}

	all, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSetEnabledPreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule, err := s.Create(ctx, Rule{Name: "r", WindowSeconds: 10, Threshold: 1, Enabled: true})
	require.NoError(t, err)

	updated, err := s.SetEnabled(ctx, rule.RuleID, false)
	require.NoError(t, err)
	require.False(t, updated.Enabled)
	require.Equal(t, rule.CreatedAt.Unix(), updated.CreatedAt.Unix())
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete(context.Background(), 999)
	var nfErr *ccerrors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}
