// Package ops implements read-only process introspection: the service
// registry listing the Command Center's own logical subsystems and their
// last-tick health.
package ops

import (
	"sync"
	"time"

	"github.com/aetherlink/commandcenter/internal/registry"
)

// ServiceDescriptor is a point-in-time health snapshot for one of the
// Command Center's background subsystems.
type ServiceDescriptor struct {
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	LastTickAt time.Time `json:"last_tick_at"`
}

// Logical subsystem names registered at startup.
const (
	ServiceEventStore       = "event-store"
	ServiceRuleEvaluator    = "rule-evaluator"
	ServiceDeliveryDispatch = "delivery-dispatcher"
	ServiceRetentionWorker  = "retention-worker"
	ServiceFanoutHub        = "fanout-hub"
	ServiceIngestionAPI     = "ingestion-api"
	ServiceQueryAdminAPI    = "query-api"
)

// Registry tracks ServiceDescriptor entries for every subsystem. It is
// read-only from the API's perspective — there is no endpoint to
// register a new service, only to tick an existing one's last-activity
// timestamp.
type Registry struct {
	mu      sync.Mutex
	entries *registry.Registry[string, ServiceDescriptor]
}

// NewRegistry pre-registers every built-in subsystem with a zero
// LastTickAt.
func NewRegistry() *Registry {
	r := &Registry{entries: registry.New[string, ServiceDescriptor]()}
	for _, svc := range []struct{ name, domain string }{
		{ServiceEventStore, "storage"},
		{ServiceRuleEvaluator, "background-loop"},
		{ServiceDeliveryDispatch, "background-loop"},
		{ServiceRetentionWorker, "background-loop"},
		{ServiceFanoutHub, "streaming"},
		{ServiceIngestionAPI, "http"},
		{ServiceQueryAdminAPI, "http"},
	} {
		r.entries.Register(svc.name, ServiceDescriptor{Name: svc.name, Domain: svc.domain})
	}
	return r
}

// Tick records that a subsystem has just completed a unit of work. The
// rule evaluator, delivery dispatcher, and retention worker tick once per
// cycle; nothing ticks the other subsystems, so their LastTickAt stays
// zero.
func (r *Registry) Tick(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.entries.Get(name)
	if !ok {
		return
	}
	desc.LastTickAt = time.Now().UTC()
	r.entries.Register(name, desc)
}

// List returns every registered service descriptor.
func (r *Registry) List() []ServiceDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Values()
}
