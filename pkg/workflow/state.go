// Package workflow implements the state machine and transition engine
// described in spec §4.3: file locking, atomic moves, retry with backoff,
// dead-letter queueing, and correlation tracking.
package workflow

import "github.com/vaultflow/vaultflow/pkg/vault"

// State is one of the sixteen workflow states in spec §4.3.
type State string

const (
	Inbox             State = "INBOX"
	NeedsAction       State = "NEEDS_ACTION"
	ActionProcessing  State = "ACTION_PROCESSING"
	Plans             State = "PLANS"
	PendingApproval   State = "PENDING_APPROVAL"
	ApprovalReview    State = "APPROVAL_REVIEW"
	Approved          State = "APPROVED"
	Rejected          State = "REJECTED"
	ExecutionPending  State = "EXECUTION_PENDING"
	Executing         State = "EXECUTING"
	Executed          State = "EXECUTED"
	Done              State = "DONE"
	Failed            State = "FAILED"
	Retry             State = "RETRY"
	DeadLetter        State = "DEAD_LETTER"
	Archived          State = "ARCHIVED"
)

// terminal marks the end states DONE, ARCHIVED and DEAD_LETTER. DONE still
// has one outgoing edge in matrix, to ARCHIVED.
var terminal = map[State]bool{
	Done:       true,
	Archived:   true,
	DeadLetter: true,
}

// IsTerminal reports whether s is one of DONE, ARCHIVED, DEAD_LETTER.
func IsTerminal(s State) bool { return terminal[s] }

// matrix is the transition table in spec §4.3. RETRY's target set is
// computed per-instance (it includes "source-state", the state the entry
// was in before it failed), so RETRY is handled specially in Valid.
var matrix = map[State]map[State]bool{
	Inbox:            {NeedsAction: true, Failed: true},
	NeedsAction:      {ActionProcessing: true, Failed: true},
	ActionProcessing: {Plans: true, Failed: true, Retry: true},
	Plans:            {PendingApproval: true, ExecutionPending: true, Failed: true},
	PendingApproval:  {ApprovalReview: true, Failed: true},
	ApprovalReview:   {Approved: true, Rejected: true, Failed: true},
	Approved:         {Executing: true, Failed: true},
	Executing:        {Executed: true, Failed: true, Retry: true},
	Executed:         {Done: true, Failed: true},
	Done:             {Archived: true},
	Rejected:         {Archived: true, DeadLetter: true},
	Failed:           {Retry: true, DeadLetter: true},
	// Retry's valid targets depend on the source state being retried into,
	// so Valid special-cases it below rather than listing it here.
}

// Valid reports whether (from, to) is a listed edge. sourceState is the
// state an in-flight RETRY entry should return to; pass "" when from is
// not RETRY.
func Valid(from, to, sourceState State) bool {
	if from == Retry {
		return to == DeadLetter || to == sourceState
	}
	targets, ok := matrix[from]
	if !ok {
		return false
	}
	return targets[to]
}

// folderFor maps a State to the vault folder holding files in that state.
// States with no standing folder (ACTION_PROCESSING, APPROVAL_REVIEW,
// EXECUTION_PENDING, EXECUTING, EXECUTED, RETRY) are transient — files
// conceptually in them remain in their last standing folder while the
// engine works, so folderFor returns the nearest durable folder.
func folderFor(s State) vault.Folder {
	switch s {
	case Inbox:
		return vault.Inbox
	case NeedsAction, ActionProcessing:
		return vault.NeedsAction
	case Plans:
		return vault.Plans
	case PendingApproval, ApprovalReview:
		return vault.PendingApproval
	case Approved, Executing, Executed, ExecutionPending:
		return vault.Approved
	case Done:
		return vault.Done
	case Failed, Retry:
		return vault.Failed
	case Rejected:
		return vault.Failed
	case DeadLetter:
		return vault.DeadLetter
	case Archived:
		return vault.Archived
	default:
		return vault.Failed
	}
}

// EventTypeFor maps a completed transition to the bus event type it
// publishes (spec §6 "Event mapping").
func EventTypeFor(from, to State) string {
	switch {
	case from == Inbox && to == NeedsAction:
		return "action.generated"
	case from == NeedsAction && to == Plans, from == ActionProcessing && to == Plans:
		return "plan.created"
	case from == Plans && to == PendingApproval:
		return "approval.required"
	case from == PendingApproval && to == Approved, from == ApprovalReview && to == Approved:
		return "action.approved"
	case to == Done:
		return "plan.execution_completed"
	case to == DeadLetter:
		return "action.failed"
	case to == Failed:
		return "action.failed"
	default:
		return "transition.completed"
	}
}
