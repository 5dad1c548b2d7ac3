package eventstore

import (
	"fmt"

	"github.com/aetherlink/commandcenter/internal/registry"
)

// SchemaEntry is the static metadata registered per event_type. It is a
// process-wide constant, loaded once at startup, extended in code rather
// than at runtime — there is no admin API to add event types.
type SchemaEntry struct {
	EventType      string
	Description    string
	RequiredFields []string
}

// Registry holds the write-once table of known event types. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	entries *registry.Registry[string, SchemaEntry]
}

// NewRegistry builds an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{entries: registry.New[string, SchemaEntry]()}
}

// MustRegister adds a schema entry, panicking on a malformed entry. Intended
// for startup-time registration only (see RegisterBuiltins).
func (r *Registry) MustRegister(entry SchemaEntry) {
	if entry.EventType == "" {
		panic("eventstore: schema entry requires a non-empty EventType")
	}
	r.entries.Register(entry.EventType, entry)
}

// Get returns the schema entry for an event type.
func (r *Registry) Get(eventType string) (SchemaEntry, bool) {
	return r.entries.Get(eventType)
}

// Has reports whether eventType is registered.
func (r *Registry) Has(eventType string) bool {
	return r.entries.Has(eventType)
}

// Types lists every registered event type.
func (r *Registry) Types() []string {
	return r.entries.Keys()
}

// Validate checks eventType against the registry and confirms every
// required field is present in payload. It returns a *ccerrors-shaped
// error via the caller's wrapping — this package only reports plain errors
// so it has no import-cycle risk with ccerrors' higher-level taxonomy.
func (r *Registry) Validate(eventType string, payload map[string]any) error {
	entry, ok := r.entries.Get(eventType)
	if !ok {
		return fmt.Errorf("unknown event_type %q", eventType)
	}
	for _, field := range entry.RequiredFields {
		if _, present := payload[field]; !present {
			return fmt.Errorf("missing required field %q for event_type %q", field, eventType)
		}
	}
	return nil
}

// Synthetic event types the Command Center itself produces. Pre-registered
// so the store's own writes never hit the "unknown event_type" rejection
// that guards producer traffic.
const (
	TypeAlertRaised    = "ops.alert.raised"
	TypeDeliveryFailed = "ops.alert.delivery.failed"
	TypeEventsPruned   = "ops.events.pruned"
)

// RegisterBuiltins adds the schema entries for the Command Center's own
// synthetic event types. Call once at startup alongside any
// producer-supplied schema entries.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(SchemaEntry{
		EventType:      TypeAlertRaised,
		Description:    "Emitted by the rule evaluator when a threshold trips.",
		RequiredFields: []string{"rule_name", "rule_id", "matched_count", "window_seconds", "threshold"},
	})
	r.MustRegister(SchemaEntry{
		EventType:      TypeDeliveryFailed,
		Description:    "Dead-letter record for a webhook delivery that exhausted its retries.",
		RequiredFields: []string{"alert_event_id", "webhook_url", "attempts", "alert_rule_name"},
	})
	r.MustRegister(SchemaEntry{
		EventType:      TypeEventsPruned,
		Description:    "Emitted by the retention worker after a scope's prune deletes at least one row.",
		RequiredFields: []string{"scope", "pruned_count", "cutoff"},
	})
}
