// Package ingestion implements the external event entry point:
// validation against the schema registry, tenant/timestamp
// normalization, persistence, and live fan-out.
package ingestion

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/observability"
)

// Intake validates, persists, and fans out inbound events. It holds no
// mutable state beyond its collaborators.
type Intake struct {
	events   *eventstore.Store
	schemas  *eventstore.Registry
	hub      *fanout.Hub
	counters *observability.Counters
	recorder observability.Recorder
	log      zerolog.Logger
}

// New wires an Intake. recorder may be nil to fall back to a no-op.
func New(events *eventstore.Store, schemas *eventstore.Registry, hub *fanout.Hub,
	counters *observability.Counters, recorder observability.Recorder, log zerolog.Logger) *Intake {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &Intake{
		events: events, schemas: schemas, hub: hub, counters: counters, recorder: recorder,
		log: observability.Component(log, "ingestion"),
	}
}

// Input is the caller-supplied shape of POST /events/publish before
// server-side defaulting.
type Input struct {
	EventID   string              `json:"event_id"`
	EventType string              `json:"event_type"`
	Source    string              `json:"source"`
	Severity  eventstore.Severity `json:"severity"`
	TenantID  string              `json:"tenant_id"`
	Payload   map[string]any      `json:"payload"`
	Timestamp time.Time           `json:"timestamp"`
}

// Publish validates in against the schema registry, normalizes
// defaults, persists the event, and broadcasts it to live subscribers.
// tenantFromCtx is the tenant resolved by request middleware; it is used
// whenever the input omits tenant_id. clientIP is the caller's remote
// address.
func (i *Intake) Publish(ctx context.Context, in Input, tenantFromCtx, clientIP string) (eventstore.Event, error) {
	if in.EventType == "" {
		return eventstore.Event{}, ccerrors.MissingField("event_type")
	}
	if !i.schemas.Has(in.EventType) {
		return eventstore.Event{}, ccerrors.UnknownType(in.EventType)
	}
	if in.Payload == nil {
		in.Payload = map[string]any{}
	}
	if err := i.schemas.Validate(in.EventType, in.Payload); err != nil {
		return eventstore.Event{}, ccerrors.NewValidation("payload", err.Error())
	}
	if in.Severity == "" {
		in.Severity = eventstore.SeverityInfo
	}
	if !in.Severity.Valid() {
		return eventstore.Event{}, ccerrors.NewValidation("severity", "must be one of info, warning, error, critical")
	}

	tenantID := in.TenantID
	if tenantID == "" {
		tenantID = tenantFromCtx
	}
	if tenantID == "" {
		tenantID = eventstore.SystemTenant
	}

	eventID := in.EventID
	if eventID == "" {
		eventID = eventstore.NewEventID()
	}

	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	evt := eventstore.Event{
		EventID:    eventID,
		EventType:  in.EventType,
		Source:     in.Source,
		Severity:   in.Severity,
		TenantID:   tenantID,
		Payload:    in.Payload,
		Timestamp:  timestamp,
		ReceivedAt: time.Now().UTC(),
		ClientIP:   stripPort(clientIP),
	}

	err := i.events.Save(ctx, evt)
	i.recorder.RecordIngest(ctx, in.EventType, err)
	if err != nil {
		return eventstore.Event{}, ccerrors.Storage("save event", err)
	}
	if i.counters != nil {
		i.counters.IncIngested()
	}
	if i.hub != nil {
		i.hub.Publish(evt)
	}
	return evt, nil
}

func stripPort(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
