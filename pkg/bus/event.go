// Package bus implements the in-process publish/subscribe event broker
// described in spec §4.1: bounded history, per-subscriber bounded queues
// with overflow-drop, and per-subscriber per-event-type FIFO delivery.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType is drawn from the closed set in spec §4.1.
type EventType string

const (
	FileCreated              EventType = "file.created"
	FileModified             EventType = "file.modified"
	FileMoved                EventType = "file.moved"
	FileDeleted              EventType = "file.deleted"
	ActionGenerated          EventType = "action.generated"
	ActionProcessed          EventType = "action.processed"
	ActionApproved           EventType = "action.approved"
	ActionExecuted           EventType = "action.executed"
	ActionFailed             EventType = "action.failed"
	PlanCreated              EventType = "plan.created"
	PlanApproved             EventType = "plan.approved"
	PlanExecutionCompleted   EventType = "plan.execution_completed"
	EmailReceived            EventType = "email.received"
	ApprovalRequired         EventType = "approval.required"
	ApprovalGranted          EventType = "approval.granted"
	ApprovalDenied           EventType = "approval.denied"
	ServiceStarted           EventType = "service.started"
	ServiceStopped           EventType = "service.stopped"
	ServiceError             EventType = "service.error"
	HealthCheck              EventType = "health.check"
	HealthStatus             EventType = "health.status"
	SystemShutdown           EventType = "system.shutdown"
	SystemRestart            EventType = "system.restart"
	// BusOverflow is not part of the closed domain set in spec §4.1's
	// enumeration, but spec §4.1 "Back-pressure" requires it be published;
	// it is bus-internal, not a pipeline event.
	BusOverflow EventType = "bus.overflow"
)

// Event is one message carried by the bus (spec §4.1).
type Event struct {
	EventType     EventType      `json:"event_type"`
	EventID       string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`

	// seq is assigned by the bus on publish for history/replay ordering;
	// unexported because it's an internal bookkeeping detail, not part of
	// the wire contract.
	seq uint64
}

// NewEvent constructs an Event with a fresh ID and the current timestamp.
func NewEvent(eventType EventType, source string, correlationID string, payload map[string]any) *Event {
	return &Event{
		EventType:     eventType,
		EventID:       uuid.New().String(),
		Timestamp:     now(),
		Source:        source,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// now is a var so tests can freeze time without reaching for a fake clock
// abstraction the teacher's codebase doesn't use either.
var now = time.Now

// Seq returns the bus-assigned sequence number, valid only after Publish.
func (e *Event) Seq() uint64 {
	return e.seq
}

// Handler processes a delivered event. Returning an error only affects
// logging; the bus does not retry handler invocations.
type Handler func(e *Event) error
