// Package notify defines the Notifier collaborator used for escalation
// decisions out of the approval rule engine (spec §1's "notification
// transports" are named as a collaborator but left out of scope for the
// core; this package supplies one concrete transport).
package notify

import "context"

// Escalation is the payload sent when the approval engine escalates an
// action (spec §4.4 "critical-risk -> escalate").
type Escalation struct {
	CorrelationID string
	ActionID      string
	ActionType    string
	RiskLevel     string
	Reason        string
}

// Notifier delivers an escalation to a human-facing channel.
type Notifier interface {
	Notify(ctx context.Context, e Escalation) error
}
