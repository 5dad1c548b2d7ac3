// Package evaluator implements the rule evaluator: a fixed-cadence scan
// of enabled alert rules against recent events, raising a synthetic
// ops.alert.raised event and enqueueing a delivery per configured
// webhook whenever a rule trips.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/delivery"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/observability"
	"github.com/aetherlink/commandcenter/internal/ops"
	"github.com/aetherlink/commandcenter/internal/rulestore"
)

const tickInterval = 15 * time.Second

// Evaluator scans enabled rules on a fixed cadence. It carries no mutable
// state of its own — every collaborator it reads from or writes to is
// its own concurrency-safe store.
type Evaluator struct {
	rules    *rulestore.Store
	events   *eventstore.Store
	schemas  *eventstore.Registry
	dedup    *delivery.DedupStore
	queue    *delivery.Queue
	hub      *fanout.Hub
	webhooks []string
	counters *observability.Counters
	recorder observability.Recorder
	services *ops.Registry
	log      zerolog.Logger
}

// New wires an Evaluator. webhooks is the fixed list of URLs a tripped
// rule fans delivery rows out to. recorder and services may be nil.
func New(rules *rulestore.Store, events *eventstore.Store, schemas *eventstore.Registry, dedup *delivery.DedupStore,
	queue *delivery.Queue, hub *fanout.Hub, webhooks []string, counters *observability.Counters,
	recorder observability.Recorder, services *ops.Registry, log zerolog.Logger) *Evaluator {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &Evaluator{
		rules: rules, events: events, schemas: schemas, dedup: dedup, queue: queue, hub: hub,
		webhooks: webhooks, counters: counters, recorder: recorder, services: services,
		log: observability.Component(log, "evaluator"),
	}
}

// Run blocks until ctx is cancelled, firing EvaluateOnce every 15
// seconds.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.EvaluateOnce(ctx); err != nil {
				e.log.Error().Err(err).Msg("evaluation cycle failed")
			}
		}
	}
}

// Result summarizes one evaluation cycle, returned to the one-shot admin
// endpoint as well as used internally for metrics.
type Result struct {
	RulesScanned int `json:"rules_scanned"`
	AlertsRaised int `json:"alerts_raised"`
	Suppressed   int `json:"suppressed_by_dedup"`
}

// EvaluateOnce scans every enabled rule exactly once, synchronously. Used
// both by the background ticker and by the admin one-shot endpoint.
func (e *Evaluator) EvaluateOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	rules, err := e.rules.List(ctx, true)
	if err != nil {
		return Result{}, fmt.Errorf("evaluator: list enabled rules: %w", err)
	}

	var result Result
	result.RulesScanned = len(rules)

	for _, rule := range rules {
		tripped, err := e.evaluateRule(ctx, rule)
		if err != nil {
			e.log.Error().Err(err).Int64("rule_id", rule.RuleID).Msg("rule evaluation failed")
			continue
		}
		switch tripped {
		case tripOutcomeRaised:
			result.AlertsRaised++
		case tripOutcomeSuppressed:
			result.Suppressed++
		}
	}

	e.recorder.RecordEvaluatorTick(ctx, result.RulesScanned, result.AlertsRaised, time.Since(start))
	if e.services != nil {
		e.services.Tick(ops.ServiceRuleEvaluator)
	}
	return result, nil
}

type tripOutcome int

const (
	tripOutcomeNone tripOutcome = iota
	tripOutcomeRaised
	tripOutcomeSuppressed
)

func (e *Evaluator) evaluateRule(ctx context.Context, rule rulestore.Rule) (tripOutcome, error) {
	since := time.Now().Add(-time.Duration(rule.WindowSeconds) * time.Second)
	count, err := e.events.Count(ctx, rule.AsEventFilters(since))
	if err != nil {
		return tripOutcomeNone, fmt.Errorf("count matching events: %w", err)
	}
	if count < int64(rule.Threshold) {
		return tripOutcomeNone, nil
	}

	suppressed, err := e.dedup.Suppressed(ctx, rule.Name, rule.TenantID)
	if err != nil {
		return tripOutcomeNone, fmt.Errorf("dedup lookup: %w", err)
	}

	// The alert event is always persisted, even when dedup-suppressed —
	// only the per-webhook delivery enqueue and the dedup-history update
	// are gated on suppression.
	if err := e.raise(ctx, rule, count, suppressed); err != nil {
		return tripOutcomeNone, err
	}
	if suppressed {
		return tripOutcomeSuppressed, nil
	}
	if err := e.dedup.MarkRaised(ctx, rule.Name, rule.TenantID); err != nil {
		return tripOutcomeNone, fmt.Errorf("mark raised: %w", err)
	}
	return tripOutcomeRaised, nil
}

func (e *Evaluator) raise(ctx context.Context, rule rulestore.Rule, matchedCount int64, suppressed bool) error {
	now := time.Now().UTC()
	payload := map[string]any{
		"rule_name":      rule.Name,
		"rule_id":        rule.RuleID,
		"matched_count":  matchedCount,
		"window_seconds": rule.WindowSeconds,
		"threshold":      rule.Threshold,
	}
	if err := e.schemas.Validate(eventstore.TypeAlertRaised, payload); err != nil {
		return fmt.Errorf("alert payload failed schema validation: %w", err)
	}

	tenantID := rule.TenantID
	if tenantID == "" {
		tenantID = eventstore.SystemTenant
	}

	evt := eventstore.Event{
		EventID:    eventstore.NewEventID(),
		EventType:  eventstore.TypeAlertRaised,
		Source:     "commandcenter.evaluator",
		Severity:   eventstore.SeverityCritical,
		TenantID:   tenantID,
		Payload:    payload,
		Timestamp:  now,
		ReceivedAt: now,
	}
	if err := e.events.Save(ctx, evt); err != nil {
		return fmt.Errorf("persist alert event: %w", err)
	}
	if e.hub != nil {
		e.hub.Publish(evt)
	}
	if e.counters != nil {
		e.counters.IncRuleTrip()
	}
	if suppressed {
		return nil
	}

	eventSnapshot, err := snapshotEvent(evt)
	if err != nil {
		return fmt.Errorf("snapshot alert event: %w", err)
	}
	for _, webhook := range e.webhooks {
		if _, err := e.queue.Enqueue(ctx, delivery.Entry{
			AlertEventID: evt.EventID,
			AlertPayload: eventSnapshot,
			WebhookURL:   webhook,
		}); err != nil {
			e.log.Error().Err(err).Str("webhook_url", webhook).Msg("failed to enqueue delivery")
		}
	}
	return nil
}

// snapshotEvent round-trips evt through JSON so the webhook contract
// ("full alert event as JSON body") is satisfied byte-for-byte, the same
// shape a /events/stream subscriber would receive.
func snapshotEvent(evt eventstore.Event) (map[string]any, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	var snapshot map[string]any
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}
