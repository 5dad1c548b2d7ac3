package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/observability"
	"github.com/aetherlink/commandcenter/internal/ops"
)

const (
	pollInterval = 30 * time.Second
	startDelay   = 10 * time.Second
	batchSize    = 50
)

// Poster delivers a JSON payload to a webhook URL. Satisfied by
// *webhookclient.Client; an interface here keeps the dispatcher testable
// without a real HTTP round trip.
type Poster interface {
	Deliver(ctx context.Context, url string, payload map[string]any) error
}

// Dispatcher drains the delivery queue on a fixed cadence, POSTs each due
// entry, and records the outcome. Entries within a batch are processed
// concurrently; DueBatch's SELECT plus this process's single-goroutine
// ownership of each fetched row is the "lease" that keeps an entry from
// being processed twice concurrently.
type Dispatcher struct {
	queue    *Queue
	events   *eventstore.Store
	schemas  *eventstore.Registry
	hub      *fanout.Hub
	poster   Poster
	counters *observability.Counters
	recorder observability.Recorder
	services *ops.Registry
	log      zerolog.Logger
}

// NewDispatcher wires a Dispatcher. recorder and services may be nil.
func NewDispatcher(queue *Queue, events *eventstore.Store, schemas *eventstore.Registry, hub *fanout.Hub,
	poster Poster, counters *observability.Counters, recorder observability.Recorder, services *ops.Registry, log zerolog.Logger) *Dispatcher {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &Dispatcher{
		queue: queue, events: events, schemas: schemas, hub: hub,
		poster: poster, counters: counters, recorder: recorder, services: services,
		log: observability.Component(log, "dispatcher"),
	}
}

// Run blocks until ctx is cancelled, firing DrainOnce on a 30s cadence
// with the first run delayed 10s after startup.
func (d *Dispatcher) Run(ctx context.Context) {
	timer := time.NewTimer(startDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := d.DrainOnce(ctx); err != nil {
				d.log.Error().Err(err).Msg("drain cycle failed")
			}
			timer.Reset(pollInterval)
		}
	}
}

// DrainOnce fetches up to batchSize due entries and processes them
// concurrently, waiting for every attempt to finish before returning.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	if d.services != nil {
		d.services.Tick(ops.ServiceDeliveryDispatch)
	}

	batch, err := d.queue.DueBatch(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, entry := range batch {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			d.attempt(ctx, e)
		}(entry)
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, e Entry) {
	start := time.Now()
	deliverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := d.poster.Deliver(deliverCtx, e.WebhookURL, e.AlertPayload)
	elapsed := time.Since(start)

	if err == nil {
		d.recorder.RecordDispatchAttempt(ctx, "success", elapsed)
		if markErr := d.queue.MarkSuccess(ctx, e); markErr != nil {
			d.log.Error().Err(markErr).Int64("delivery_id", e.DeliveryID).Msg("mark success failed")
			return
		}
		if d.counters != nil {
			d.counters.IncDeliverySent()
		}
		return
	}

	d.recorder.RecordDispatchAttempt(ctx, "failure", elapsed)
	d.fail(ctx, e, err)
}

func (d *Dispatcher) fail(ctx context.Context, e Entry, deliverErr error) {
	e.AttemptCount++
	lastError := deliverErr.Error()

	var transient *ccerrors.TransientDeliveryError
	_ = errors.As(deliverErr, &transient)

	if e.AttemptCount >= e.MaxAttempts {
		if err := d.queue.MarkDeadLettered(ctx, e, lastError); err != nil {
			d.log.Error().Err(err).Int64("delivery_id", e.DeliveryID).Msg("mark dead-lettered failed")
			return
		}
		if d.counters != nil {
			d.counters.IncDeliveryDead()
		}
		d.emitDeadLetter(ctx, e, lastError)
		return
	}

	backoff := ccerrors.Jitter(ccerrors.DeliveryBackoff(e.AttemptCount))
	nextAttemptAt := time.Now().UTC().Add(backoff)
	if err := d.queue.Reschedule(ctx, e, nextAttemptAt, lastError); err != nil {
		d.log.Error().Err(err).Int64("delivery_id", e.DeliveryID).Msg("reschedule failed")
	}
}

func (d *Dispatcher) emitDeadLetter(ctx context.Context, e Entry, lastError string) {
	now := time.Now().UTC()
	payload := map[string]any{
		"alert_event_id":  e.AlertEventID,
		"webhook_url":     e.WebhookURL,
		"attempts":        e.AttemptCount,
		"last_error":      lastError,
		"alert_rule_name": ruleNameFromSnapshot(e.AlertPayload),
	}
	if err := d.schemas.Validate(eventstore.TypeDeliveryFailed, payload); err != nil {
		d.log.Error().Err(err).Msg("dead-letter payload failed schema validation")
		return
	}

	evt := eventstore.Event{
		EventID:    eventstore.NewEventID(),
		EventType:  eventstore.TypeDeliveryFailed,
		Source:     "commandcenter.dispatcher",
		Severity:   eventstore.SeverityError,
		TenantID:   eventstore.SystemTenant,
		Payload:    payload,
		Timestamp:  now,
		ReceivedAt: now,
	}
	if err := d.events.Save(ctx, evt); err != nil {
		d.log.Error().Err(err).Msg("failed to persist dead-letter event")
		return
	}
	if d.hub != nil {
		d.hub.Publish(evt)
	}
}

// ruleNameFromSnapshot recovers rule_name from the snapshotted alert event
// an entry was enqueued with. The snapshot is the alert event's own JSON
// round trip, so the rule name lives at payload.rule_name; returns "" if
// the shape is missing or unexpected rather than failing the dead-letter
// write over it.
func ruleNameFromSnapshot(alertPayload map[string]any) string {
	nested, ok := alertPayload["payload"].(map[string]any)
	if !ok {
		return ""
	}
	ruleName, _ := nested["rule_name"].(string)
	return ruleName
}
