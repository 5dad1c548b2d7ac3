// Package retention implements the periodic event-pruning worker:
// compute per-tenant cutoff times from policy and delete aged rows from
// the event store. Pruning is best-effort — a tick's failure is logged
// and retried on the next interval.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/ops"
)

const defaultRetentionDays = 7

// Worker prunes events older than its retention policy, per tenant, on a
// fixed interval.
type Worker struct {
	events   *eventstore.Store
	schemas  *eventstore.Registry
	hub      *fanout.Hub
	interval time.Duration
	policy   Policy
	services *ops.Registry
	log      zerolog.Logger
}

// Policy maps tenant id to retention duration. An empty key is the
// default applied to every tenant (and the "system" scope) not otherwise
// listed.
type Policy map[string]time.Duration

// DefaultPolicy returns a policy applying the spec's 7-day default to
// every tenant.
func DefaultPolicy() Policy {
	return Policy{"": defaultRetentionDays * 24 * time.Hour}
}

// New wires a Worker. interval is the retention tick cadence
// (EVENT_RETENTION_CRON_SECONDS), defaulting to 3600s when zero.
func New(events *eventstore.Store, schemas *eventstore.Registry, hub *fanout.Hub, interval time.Duration, policy Policy, services *ops.Registry, log zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Worker{
		events: events, schemas: schemas, hub: hub, interval: interval, policy: policy, services: services,
		log: log.With().Str("component", "retention").Logger(),
	}
}

// Run blocks until ctx is cancelled, firing PruneOnce on the configured
// interval.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.PruneOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("prune cycle failed")
			}
		}
	}
}

// scopes lists every tenant the worker has an explicit policy for, plus
// the always-present "system" scope and the wildcard default scope
// represented by an empty tenant id (meaning: prune across all tenants
// not individually scoped).
func (w *Worker) scopes() []string {
	seen := map[string]struct{}{eventstore.SystemTenant: {}, "": {}}
	scopes := []string{eventstore.SystemTenant, ""}
	for tenant := range w.policy {
		if tenant == "" {
			continue
		}
		if _, ok := seen[tenant]; ok {
			continue
		}
		seen[tenant] = struct{}{}
		scopes = append(scopes, tenant)
	}
	return scopes
}

func (w *Worker) retentionFor(tenant string) time.Duration {
	if d, ok := w.policy[tenant]; ok {
		return d
	}
	return w.policy[""]
}

// PruneOnce runs a single prune pass across every configured scope,
// emitting an ops.events.pruned event for any scope where at least one
// row was deleted.
func (w *Worker) PruneOnce(ctx context.Context) error {
	if w.services != nil {
		w.services.Tick(ops.ServiceRetentionWorker)
	}

	for _, scope := range w.scopes() {
		retention := w.retentionFor(scope)
		cutoff := time.Now().Add(-retention)

		deleted, err := w.events.Prune(ctx, cutoff, scope)
		if err != nil {
			w.log.Error().Err(err).Str("scope", scopeLabel(scope)).Msg("prune failed for scope")
			continue
		}
		if deleted == 0 {
			continue
		}
		if err := w.emitPruned(ctx, scope, deleted, cutoff, retention); err != nil {
			w.log.Error().Err(err).Str("scope", scopeLabel(scope)).Msg("failed to emit prune event")
		}
	}
	return nil
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "*"
	}
	return scope
}

func (w *Worker) emitPruned(ctx context.Context, scope string, deleted int64, cutoff time.Time, retention time.Duration) error {
	now := time.Now().UTC()
	payload := map[string]any{
		"scope":          scopeLabel(scope),
		"pruned_count":   deleted,
		"cutoff":         cutoff.UTC().Format(time.RFC3339Nano),
		"retention_days": retention.Hours() / 24,
	}
	if err := w.schemas.Validate(eventstore.TypeEventsPruned, payload); err != nil {
		return fmt.Errorf("prune payload failed schema validation: %w", err)
	}

	evt := eventstore.Event{
		EventID:    eventstore.NewEventID(),
		EventType:  eventstore.TypeEventsPruned,
		Source:     "commandcenter.retention",
		Severity:   eventstore.SeverityInfo,
		TenantID:   eventstore.SystemTenant,
		Payload:    payload,
		Timestamp:  now,
		ReceivedAt: now,
	}
	if err := w.events.Save(ctx, evt); err != nil {
		return fmt.Errorf("persist prune event: %w", err)
	}
	if w.hub != nil {
		w.hub.Publish(evt)
	}
	return nil
}
