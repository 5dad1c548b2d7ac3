// Package rulestore implements persistent CRUD for alert threshold rules.
package rulestore

import (
	"time"

	"github.com/aetherlink/commandcenter/internal/eventstore"
)

// Rule is a threshold definition evaluated on a fixed cadence while
// enabled. Filters are all optional and AND-composed.
type Rule struct {
	RuleID        int64              `json:"rule_id"`
	Name          string             `json:"name" validate:"required"`
	EventType     string             `json:"event_type,omitempty"`
	Source        string             `json:"source,omitempty"`
	Severity      eventstore.Severity `json:"severity,omitempty" validate:"omitempty,oneof=info warning error critical"`
	WindowSeconds int                `json:"window_seconds" validate:"required,gt=0"`
	Threshold     int                `json:"threshold" validate:"required,gt=0"`
	TenantID      string             `json:"tenant_id,omitempty"`
	Enabled       bool               `json:"enabled"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// AsEventFilters converts the rule's own filter fields into the event
// store's filter grammar for a count query anchored at since.
func (r Rule) AsEventFilters(since time.Time) eventstore.Filters {
	return eventstore.Filters{
		EventType: r.EventType,
		Source:    r.Source,
		Severity:  r.Severity,
		TenantID:  r.TenantID,
		Since:     since,
	}
}
