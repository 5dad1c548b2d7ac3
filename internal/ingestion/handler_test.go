package ingestion

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
)

func newTestIntake(t *testing.T) *Intake {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events, err := eventstore.Open(context.Background(), db)
	require.NoError(t, err)

	schemas := eventstore.NewRegistry()
	schemas.MustRegister(eventstore.SchemaEntry{EventType: "svc.deploy.finished", RequiredFields: []string{"build"}})

	return New(events, schemas, nil, nil, nil, zerolog.Nop())
}

func TestPublishRejectsUnknownType(t *testing.T) {
	i := newTestIntake(t)
	_, err := i.Publish(context.Background(), Input{EventType: "svc.unregistered"}, "acme", "1.2.3.4:9000")
	var valErr *ccerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestPublishRejectsMissingRequiredField(t *testing.T) {
	i := newTestIntake(t)
	_, err := i.Publish(context.Background(), Input{EventType: "svc.deploy.finished", Payload: map[string]any{}}, "acme", "")
	require.Error(t, err)
}

func TestPublishDefaultsTenantFromContext(t *testing.T) {
	i := newTestIntake(t)
	evt, err := i.Publish(context.Background(), Input{
		EventType: "svc.deploy.finished", Payload: map[string]any{"build": 1},
	}, "acme", "")
	require.NoError(t, err)
	require.Equal(t, "acme", evt.TenantID)
}

func TestPublishDefaultsTenantToSystemWhenContextEmpty(t *testing.T) {
	i := newTestIntake(t)
	evt, err := i.Publish(context.Background(), Input{
		EventType: "svc.deploy.finished", Payload: map[string]any{"build": 1},
	}, "", "")
	require.NoError(t, err)
	require.Equal(t, eventstore.SystemTenant, evt.TenantID)
}

func TestPublishStripsPortFromClientIP(t *testing.T) {
	i := newTestIntake(t)
	evt, err := i.Publish(context.Background(), Input{
		EventType: "svc.deploy.finished", Payload: map[string]any{"build": 1},
	}, "acme", "10.0.0.5:54321")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5", evt.ClientIP)
}

func TestPublishRejectsInvalidSeverity(t *testing.T) {
	i := newTestIntake(t)
	_, err := i.Publish(context.Background(), Input{
		EventType: "svc.deploy.finished", Payload: map[string]any{"build": 1}, Severity: "catastrophic",
	}, "acme", "")
	require.Error(t, err)
}
