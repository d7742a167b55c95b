// Package audit defines the audit event sink consumed by the pipeline and a
// best-effort SQLite adapter. The core only depends on the Sink interface;
// durable audit storage remains the surrounding application's concern.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Outcomes recorded on query events.
const (
	OutcomeAnswered = "answered"
	OutcomeNoMatch  = "no_match"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Event is one audit entry. Events are emitted fire-and-forget on every
// query path, success or failure.
type Event struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Department string    `json:"department"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Verdict    string    `json:"verdict,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(action, outcome string) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Action:  action,
		Outcome: outcome,
	}
}

// Sink receives audit events. Implementations must not block; delivery is
// best-effort and a failed write never fails the response path.
type Sink interface {
	Log(event Event)
}

// NopSink discards events.
type NopSink struct{}

// Log implements Sink.
func (NopSink) Log(Event) {}
