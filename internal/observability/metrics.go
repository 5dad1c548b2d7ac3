package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records Command Center metrics. Use NewRecorder() for an
// OpenTelemetry-backed instance, or NoopRecorder{} when metrics are
// disabled (tests, one-shot CLI invocations).
type Recorder interface {
	RecordIngest(ctx context.Context, eventType string, err error)
	RecordEvaluatorTick(ctx context.Context, rulesScanned int, alertsRaised int, duration time.Duration)
	RecordDispatchAttempt(ctx context.Context, outcome string, duration time.Duration)
	RecordFanoutDrop(ctx context.Context, subscriberID string)
}

type otelRecorder struct {
	ingestTotal    metric.Int64Counter
	ingestErrors   metric.Int64Counter
	evaluatorTicks metric.Int64Counter
	alertsRaised   metric.Int64Counter
	evaluatorLat   metric.Float64Histogram
	dispatchTotal  metric.Int64Counter
	dispatchLat    metric.Float64Histogram
	fanoutDrops    metric.Int64Counter
}

// NewRecorder builds an OTel-backed Recorder under the "commandcenter"
// meter name. Instrument-creation failures degrade to a no-op so a
// misconfigured exporter never blocks startup.
func NewRecorder() Recorder {
	meter := otel.Meter("commandcenter")

	ingestTotal, err1 := meter.Int64Counter("commandcenter.ingest.events",
		metric.WithDescription("Events accepted by the ingestion API"))
	ingestErrors, err2 := meter.Int64Counter("commandcenter.ingest.errors",
		metric.WithDescription("Events rejected by the ingestion API"))
	evaluatorTicks, err3 := meter.Int64Counter("commandcenter.evaluator.ticks",
		metric.WithDescription("Rule evaluator cycles completed"))
	alertsRaised, err4 := meter.Int64Counter("commandcenter.alerts.raised",
		metric.WithDescription("ops.alert.raised events persisted"))
	evaluatorLat, err5 := meter.Float64Histogram("commandcenter.evaluator.latency_ms",
		metric.WithDescription("Rule evaluator cycle latency"), metric.WithUnit("ms"))
	dispatchTotal, err6 := meter.Int64Counter("commandcenter.dispatch.attempts",
		metric.WithDescription("Webhook delivery attempts by outcome"))
	dispatchLat, err7 := meter.Float64Histogram("commandcenter.dispatch.latency_ms",
		metric.WithDescription("Webhook delivery attempt latency"), metric.WithUnit("ms"))
	fanoutDrops, err8 := meter.Int64Counter("commandcenter.fanout.drops",
		metric.WithDescription("Events dropped for a slow streaming subscriber"))

	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil || err7 != nil || err8 != nil {
		return NoopRecorder{}
	}

	return &otelRecorder{
		ingestTotal:    ingestTotal,
		ingestErrors:   ingestErrors,
		evaluatorTicks: evaluatorTicks,
		alertsRaised:   alertsRaised,
		evaluatorLat:   evaluatorLat,
		dispatchTotal:  dispatchTotal,
		dispatchLat:    dispatchLat,
		fanoutDrops:    fanoutDrops,
	}
}

func (r *otelRecorder) RecordIngest(ctx context.Context, eventType string, err error) {
	r.ingestTotal.Add(ctx, 1)
	if err != nil {
		r.ingestErrors.Add(ctx, 1)
	}
}

func (r *otelRecorder) RecordEvaluatorTick(ctx context.Context, rulesScanned, alertsRaised int, duration time.Duration) {
	r.evaluatorTicks.Add(ctx, 1)
	if alertsRaised > 0 {
		r.alertsRaised.Add(ctx, int64(alertsRaised))
	}
	r.evaluatorLat.Record(ctx, float64(duration.Milliseconds()))
}

func (r *otelRecorder) RecordDispatchAttempt(ctx context.Context, outcome string, duration time.Duration) {
	r.dispatchTotal.Add(ctx, 1)
	r.dispatchLat.Record(ctx, float64(duration.Milliseconds()))
}

func (r *otelRecorder) RecordFanoutDrop(ctx context.Context, subscriberID string) {
	r.fanoutDrops.Add(ctx, 1)
}

// Counters is the one atomic-only shared-state struct the concurrency
// model allows outside the schema registry and the fan-out subscriber
// list. It is instantiated once by main and injected into collaborators —
// never a package-level singleton.
type Counters struct {
	eventsIngested  atomic.Int64
	deliveriesSent  atomic.Int64
	deliveriesDead  atomic.Int64
	fanoutDropped   atomic.Int64
	ruleTripsRaised atomic.Int64
}

func (c *Counters) IncIngested()      { c.eventsIngested.Add(1) }
func (c *Counters) IncDeliverySent()  { c.deliveriesSent.Add(1) }
func (c *Counters) IncDeliveryDead()  { c.deliveriesDead.Add(1) }
func (c *Counters) IncFanoutDropped() { c.fanoutDropped.Add(1) }
func (c *Counters) IncRuleTrip()      { c.ruleTripsRaised.Add(1) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	EventsIngested  int64 `json:"events_ingested"`
	DeliveriesSent  int64 `json:"deliveries_sent"`
	DeliveriesDead  int64 `json:"deliveries_dead_lettered"`
	FanoutDropped   int64 `json:"fanout_dropped"`
	RuleTripsRaised int64 `json:"rule_trips_raised"`
}

// Snapshot reads all counters without coordination beyond their own atomics.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		EventsIngested:  c.eventsIngested.Load(),
		DeliveriesSent:  c.deliveriesSent.Load(),
		DeliveriesDead:  c.deliveriesDead.Load(),
		FanoutDropped:   c.fanoutDropped.Load(),
		RuleTripsRaised: c.ruleTripsRaised.Load(),
	}
}
