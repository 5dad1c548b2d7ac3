// Package eventstore implements the durable, append-only event log: the
// schema registry that gates what may be written, and the SQLite-backed
// store that persists and indexes events for retrieval.
package eventstore

import "time"

// Severity is the canonical severity level of an event.
type Severity string

// Canonical severity levels, ordered low to high.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the four canonical levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// SystemTenant is the default tenant for events and rules with no explicit
// tenant scope.
const SystemTenant = "system"

// Event is the immutable unit of observable state persisted by the store.
// It is never mutated once written.
type Event struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	Source     string         `json:"source"`
	Severity   Severity       `json:"severity"`
	TenantID   string         `json:"tenant_id"`
	Payload    map[string]any `json:"payload"`
	Timestamp  time.Time      `json:"timestamp"`
	ReceivedAt time.Time      `json:"received_at"`
	ClientIP   string         `json:"client_ip,omitempty"`
}

// Filters is the AND-composed filter grammar shared by Query and Count.
type Filters struct {
	EventType string
	Source    string
	Severity  Severity
	TenantID  string
	Since     time.Time // zero value means "no lower bound"
}

// Stats summarizes event volume for a tenant scope (or globally, when
// TenantID is empty in the request that produced it).
type Stats struct {
	Total      int64            `json:"total"`
	Last24h    int64            `json:"last_24h"`
	BySeverity map[string]int64 `json:"by_severity"`
}

// MaxQueryLimit is the hard ceiling on Query's limit parameter.
const MaxQueryLimit = 1000

// DefaultQueryLimit is applied when the caller does not specify a limit.
const DefaultQueryLimit = 50
