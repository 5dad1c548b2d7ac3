// Package delivery implements the durable webhook delivery queue: pending
// entries with attempt state, the dedup history that suppresses repeat
// rule trips, a completed-deliveries history table, and the dispatcher
// loop that drains the queue.
package delivery

import "time"

// DefaultMaxAttempts is applied to every new queue entry unless the caller
// overrides it.
const DefaultMaxAttempts = 5

// Entry is a pending or in-flight webhook delivery attempt.
type Entry struct {
	DeliveryID    int64          `json:"delivery_id"`
	AlertEventID  string         `json:"alert_event_id"`
	AlertPayload  map[string]any `json:"alert_payload"`
	WebhookURL    string         `json:"webhook_url"`
	AttemptCount  int            `json:"attempt_count"`
	MaxAttempts   int            `json:"max_attempts"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Outcome is the terminal state recorded for a delivery once it leaves the
// pending queue.
type Outcome string

// Terminal delivery outcomes.
const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Completed is an append-only record of a delivery's terminal outcome,
// derived the moment its queue row is removed. It exists so
// /alerts/deliveries/history has a single durable source of truth instead
// of an in-memory list that can drift from the queue.
type Completed struct {
	DeliveryID   int64          `json:"delivery_id"`
	AlertEventID string         `json:"alert_event_id"`
	AlertPayload map[string]any `json:"alert_payload"`
	WebhookURL   string         `json:"webhook_url"`
	Outcome      Outcome        `json:"outcome"`
	Attempts     int            `json:"attempts"`
	LastError    string         `json:"last_error,omitempty"`
	CompletedAt  time.Time      `json:"completed_at"`
}
