package models

import "time"

// Decision is the closed enum of approval-engine outcomes (spec §4.4).
type Decision string

const (
	DecisionAutoApprove    Decision = "auto_approve"
	DecisionRequireApproval Decision = "require_approval"
	DecisionAutoReject     Decision = "auto_reject"
	DecisionEscalate       Decision = "escalate"
)

// RiskLevel is the closed enum produced by risk-score bucketing (spec §4.4).
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Approval is the record of a plan's approval-engine evaluation and,
// eventually, its human resolution (spec §3 table).
type Approval struct {
	ID          string     `yaml:"id" json:"id"`
	ActionID    string     `yaml:"action_id" json:"action_id"`
	PlanID      string     `yaml:"plan_id" json:"plan_id"`
	Decision    Decision   `yaml:"decision" json:"decision"`
	Reason      string     `yaml:"reason,omitempty" json:"reason,omitempty"`
	RequestedAt time.Time  `yaml:"requested_at" json:"requested_at"`
	ResolvedAt  *time.Time `yaml:"resolved_at" json:"resolved_at"`
	Approver    *string    `yaml:"approver" json:"approver"`
	RiskLevel   RiskLevel  `yaml:"risk_level" json:"risk_level"`

	// Approvers is advisory metadata copied from the matched rule (spec
	// Open Questions: no routing mechanism exists yet).
	Approvers []string `yaml:"approvers,omitempty" json:"approvers,omitempty"`
}

// Resolve marks the approval resolved by the given approver at t.
func (a *Approval) Resolve(approver string, t time.Time) {
	a.Approver = &approver
	a.ResolvedAt = &t
}

// IsResolved reports whether a human (or the auto-decision path) has closed
// this approval out.
func (a *Approval) IsResolved() bool {
	return a.ResolvedAt != nil
}
