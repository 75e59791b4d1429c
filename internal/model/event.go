package model

import "time"

// Circuit event kinds, sent as the "event" field of a webhook payload.
const (
	EventCircuitBroken    = "circuit.broken"
	EventCircuitRecovered = "circuit.recovered"
)

// CircuitBrokenEvent is published when a circuit leaves closed for open.
// Re-opening after a failed half-open trial is not a new event.
type CircuitBrokenEvent struct {
	Breaker      string    `json:"breaker"`
	FailureCount int       `json:"failure_count"`
	BrokenAt     time.Time `json:"broken_at"`
}

// CircuitRecoveredEvent is published when a half-open circuit closes.
// ProbeCount is how many half-open trials it took.
type CircuitRecoveredEvent struct {
	Breaker     string        `json:"breaker"`
	ProbeCount  int           `json:"probe_count"`
	RecoverTime time.Duration `json:"recover_time_ns"`
}

// CircuitWebhookPayload wraps one of the events above for delivery.
type CircuitWebhookPayload struct {
	Event   string      `json:"event"`
	Service string      `json:"service"`
	SentAt  time.Time   `json:"sent_at"`
	Data    interface{} `json:"data"`
}
