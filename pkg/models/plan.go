package models

import "time"

// PlanStatus is the closed enum of Plan lifecycle statuses (spec §3 table).
type PlanStatus string

const (
	PlanDraft            PlanStatus = "draft"
	PlanPlanned          PlanStatus = "planned"
	PlanPendingApproval  PlanStatus = "pending_approval"
	PlanApproved         PlanStatus = "approved"
	PlanExecuted         PlanStatus = "executed"
	PlanRejected         PlanStatus = "rejected"
	PlanCancelled        PlanStatus = "cancelled"
)

// StepKind is the closed enum of executable step kinds.
type StepKind string

const (
	StepEmail    StepKind = "email"
	StepCalendar StepKind = "calendar"
	StepFile     StepKind = "file"
	StepAPI      StepKind = "api"
	StepScript   StepKind = "script"
)

// Step is one unit of plan execution (spec §3 table).
type Step struct {
	Index          int            `yaml:"index" json:"index"`
	Kind           StepKind       `yaml:"kind" json:"kind"`
	Params         map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Reversible     bool           `yaml:"reversible" json:"reversible"`
	RollbackParams map[string]any `yaml:"rollback_params,omitempty" json:"rollback_params,omitempty"`
}

// Plan is the ordered sequence of steps that fulfils an Action (spec §3 table).
type Plan struct {
	ActionID             string     `yaml:"action_id" json:"action_id"`
	ID                   string     `yaml:"id" json:"id"`
	Status               PlanStatus `yaml:"status" json:"status"`
	CreatedAt            time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `yaml:"updated_at" json:"updated_at"`
	EstimatedDurationMin int        `yaml:"estimated_duration_min" json:"estimated_duration_min"`
	Steps                []Step     `yaml:"steps" json:"steps"`
	RequiresApproval     bool       `yaml:"requires_approval" json:"requires_approval"`
	CorrelationID        string     `yaml:"correlation_id" json:"correlation_id"`

	// Narrative sections, stored as Markdown body below the front-matter
	// (spec §6 plan file shape). Empty strings are valid.
	Objectives       string `yaml:"-" json:"-"`
	StepsNarrative   string `yaml:"-" json:"-"`
	Resources        string `yaml:"-" json:"-"`
	SuccessCriteria  string `yaml:"-" json:"-"`
}
