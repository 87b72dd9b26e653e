// Package execution implements the per-step execution engine in spec
// §4.5: DRY_RUN/REAL/SIMULATED modes, a LIFO rollback stack, and
// configurable rollback strategy.
package execution

import "github.com/vaultflow/vaultflow/pkg/models"

// Mode selects how a plan's steps are carried out (spec §4.5).
type Mode string

const (
	// DryRun logs a "would execute" intention per step with no side effects.
	DryRun Mode = "DRY_RUN"
	// Real invokes the step's adapter.
	Real Mode = "REAL"
	// Simulated sleeps params.simulated_ms (default 100) and reports success.
	Simulated Mode = "SIMULATED"
)

// RollbackStrategy configures what happens after a step failure (spec
// §4.5 "Rollback strategy").
type RollbackStrategy string

const (
	// Automatic pops and invokes compensations in reverse on any step
	// failure.
	Automatic RollbackStrategy = "AUTOMATIC"
	// Manual pauses the run, preserving the rollback stack, pending an
	// operator instruction.
	Manual RollbackStrategy = "MANUAL"
	// None is fire-and-forget: failure is recorded but nothing is undone.
	None RollbackStrategy = "NONE"
)

// StepStatus is the lifecycle of one step within a run (spec §4.5
// "Per-step result").
type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepRunning     StepStatus = "running"
	StepSucceeded   StepStatus = "succeeded"
	StepFailed      StepStatus = "failed"
	StepRolledBack  StepStatus = "rolled_back"
)

// StepResult is one entry in a Run's per-step results.
type StepResult struct {
	Index         int             `json:"index"`
	Status        StepStatus      `json:"status"`
	DurationMs    int64           `json:"duration_ms"`
	Error         string          `json:"error,omitempty"`
	RollbackToken string          `json:"rollback_token,omitempty"`
	Step          models.Step     `json:"-"`
}
