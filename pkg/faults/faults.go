// Package faults defines the closed error taxonomy shared across the
// workflow engine, execution engine, audit log, and bus (spec §7). Local
// handlers translate foreign faults (OS errors, adapter failures) into one
// of these kinds; raw OS errors never cross a transition boundary.
package faults

import (
	"errors"
	"fmt"
)

// Kind is one member of the closed taxonomy in spec §7.
type Kind string

const (
	InvalidTransition Kind = "InvalidTransition"
	FileNotFound      Kind = "FileNotFound"
	TargetExists      Kind = "TargetExists"
	LockTimeout       Kind = "LockTimeout"
	LockStale         Kind = "LockStale"
	MoveFailed        Kind = "MoveFailed"
	SchemaInvalid     Kind = "SchemaInvalid"
	StepTimeout       Kind = "StepTimeout"
	StepFailed        Kind = "StepFailed"
	RollbackFailed    Kind = "RollbackFailed"
	BusOverflow       Kind = "BusOverflow"
	HealthTimeout     Kind = "HealthTimeout"
	IntegrityBroken   Kind = "IntegrityBroken"
	CredentialMissing Kind = "CredentialMissing"
)

// Retryable reports whether the recovery column in spec §7 calls for retry.
func (k Kind) Retryable() bool {
	switch k {
	case LockTimeout, MoveFailed:
		return true
	default:
		return false
	}
}

// Fault is an error annotated with a taxonomy Kind, the resource it
// concerns, and an optional wrapped cause.
type Fault struct {
	Kind     Kind
	Resource string
	Message  string
	Cause    error
}

func (f *Fault) Error() string {
	if f.Resource != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Resource, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Cause }

// New builds a Fault with no wrapped cause.
func New(kind Kind, resource, message string) *Fault {
	return &Fault{Kind: kind, Resource: resource, Message: message}
}

// Wrap builds a Fault around an underlying error.
func Wrap(kind Kind, resource string, cause error) *Fault {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Fault{Kind: kind, Resource: resource, Message: msg, Cause: cause}
}

// As extracts the Fault from err, if any, following the error chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the taxonomy Kind of err, or "" if err does not wrap a
// Fault.
func KindOf(err error) Kind {
	if f, ok := As(err); ok {
		return f.Kind
	}
	return ""
}
