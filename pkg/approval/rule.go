// Package approval implements the ordered, risk-based rule engine described
// in spec §4.4: action context goes in, a decision with a matched rule id
// and risk level comes out.
package approval

import "github.com/vaultflow/vaultflow/pkg/models"

// Rule is one ApprovalRule record (spec §4.4). The zero value of each
// bound means "unconstrained" — ActionTypes empty matches any type,
// MinRiskLevel/MaxRiskLevel empty spans the full low..critical range, and
// MinDurationMin/MaxDurationMin zero mean no lower/upper duration bound.
// MinDurationMin and MaxRiskLevel extend the spec's literal four-field
// schema so the built-in "duration>120" and "risk=low" rules are
// expressible; a config-supplied rule may leave them unset.
type Rule struct {
	RuleID         string
	Name           string
	Priority       int
	ActionTypes    []models.ActionType
	MinRiskLevel   models.RiskLevel
	MaxRiskLevel   models.RiskLevel
	MinDurationMin int
	MaxDurationMin int
	Decision       models.Decision
	Approvers      []string
}

func (r Rule) matchesType(t models.ActionType) bool {
	if len(r.ActionTypes) == 0 {
		return true
	}
	for _, at := range r.ActionTypes {
		if at == t {
			return true
		}
	}
	return false
}

var riskOrder = map[models.RiskLevel]int{
	models.RiskLow:      0,
	models.RiskMedium:   1,
	models.RiskHigh:     2,
	models.RiskCritical: 3,
}

func (r Rule) matchesRisk(risk models.RiskLevel) bool {
	min := 0
	if r.MinRiskLevel != "" {
		min = riskOrder[r.MinRiskLevel]
	}
	max := riskOrder[models.RiskCritical]
	if r.MaxRiskLevel != "" {
		max = riskOrder[r.MaxRiskLevel]
	}
	order := riskOrder[risk]
	return order >= min && order <= max
}

func (r Rule) matchesDuration(durationMin int) bool {
	if r.MinDurationMin > 0 && durationMin <= r.MinDurationMin {
		return false
	}
	if r.MaxDurationMin > 0 && durationMin > r.MaxDurationMin {
		return false
	}
	return true
}

// Matches reports whether every predicate on r holds for the given action
// shape (spec §4.4 "a rule matches iff all its predicates hold").
func (r Rule) Matches(actionType models.ActionType, risk models.RiskLevel, durationMin int) bool {
	return r.matchesType(actionType) && r.matchesRisk(risk) && r.matchesDuration(durationMin)
}

// DefaultRules is the built-in rule set from spec §4.4, priority ascending.
func DefaultRules() []Rule {
	return []Rule{
		{
			RuleID: "critical-risk", Name: "Critical risk escalates", Priority: 1,
			MinRiskLevel: models.RiskCritical, Decision: models.DecisionEscalate,
		},
		{
			RuleID: "high-risk", Name: "High risk requires approval", Priority: 2,
			MinRiskLevel: models.RiskHigh, Decision: models.DecisionRequireApproval,
		},
		{
			RuleID: "duration>120", Name: "Long-running actions require approval", Priority: 3,
			MinDurationMin: 120, Decision: models.DecisionRequireApproval,
		},
		{
			RuleID: "analysis-or-report", Name: "Data analysis and reports require approval", Priority: 4,
			ActionTypes: []models.ActionType{models.ActionDataAnalysis, models.ActionReportGeneration},
			Decision:    models.DecisionRequireApproval,
		},
		{
			RuleID: "short-email-auto-approve", Name: "Short email responses auto-approve", Priority: 5,
			ActionTypes: []models.ActionType{models.ActionEmailResponse}, MaxDurationMin: 29,
			Decision: models.DecisionAutoApprove,
		},
		{
			RuleID: "short-low-risk-followup-auto-approve", Name: "Short low-risk follow-ups auto-approve", Priority: 6,
			ActionTypes: []models.ActionType{models.ActionFollowUp}, MaxDurationMin: 29,
			MinRiskLevel: models.RiskLow, MaxRiskLevel: models.RiskLow,
			Decision: models.DecisionAutoApprove,
		},
	}
}
