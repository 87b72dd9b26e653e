// Package adapters declares the contracts the core binds to for
// functionality explicitly kept out of scope (spec §1, §6): plan
// generation and step execution are pluggable, the core only orchestrates
// them. No concrete implementation lives here by design — wiring a real
// LLM or email/calendar/API backend is left to the operator's deployment.
package adapters

import (
	"context"

	"github.com/vaultflow/vaultflow/pkg/models"
)

// PlanGenerator turns an Action into a Plan. The engine invites plan
// generation after materializing an action file (spec §2 "Data flow").
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, action *models.Action) (*models.Plan, error)
}

// StepResult is what a StepExecutor reports back for one executed step.
type StepResult struct {
	// RollbackToken is opaque data the executor later passes to Rollback
	// to compensate this step (spec §4.5 "e.g., created-file path,
	// calendar-event-id, idempotency key for a compensating call").
	RollbackToken string
}

// StepExecutor performs one plan step's side effects in REAL mode (spec
// §4.5). Rollback is only called for steps marked Reversible that
// succeeded.
type StepExecutor interface {
	Execute(ctx context.Context, step models.Step) (StepResult, error)
	Rollback(ctx context.Context, step models.Step, result StepResult) error
}

// IngressAdapter is the contract external sources (email, chat, generic
// file drop) implement to deliver raw material into Inbox. The engine
// only consumes files that land there; it never calls an IngressAdapter
// directly (spec §3 "Ownership": adapters publish events into the bus,
// not files into the pipeline folders, except Inbox).
type IngressAdapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
