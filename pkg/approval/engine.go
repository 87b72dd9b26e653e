package approval

import (
	"sort"
	"sync"

	"github.com/vaultflow/vaultflow/pkg/models"
)

// Engine evaluates an ordered rule set against action context. Rules can
// be swapped at runtime (SIGHUP reload), so reads and writes go through a
// mutex rather than assuming single-threaded access.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine constructs an Engine, sorting rules by ascending priority
// (spec §4.4 "Iterates rules in ascending priority").
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: sortedByPriority(rules)}
}

func sortedByPriority(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return sorted
}

// SetRules atomically replaces the rule set (spec §6 "SIGHUP -> reload
// approval rules (atomic swap)"). In-flight Evaluate calls observe either
// the old or the new set in full, never a partial mix.
func (e *Engine) SetRules(rules []Rule) {
	sorted := sortedByPriority(rules)
	e.mu.Lock()
	e.rules = sorted
	e.mu.Unlock()
}

// Context is the action/plan shape Evaluate scores and matches against.
type Context struct {
	ActionType  models.ActionType
	Priority    models.Priority
	DurationMin int
	Source      string
}

// Result is Evaluate's output (spec §4.4 "Evaluate(context) returns
// {decision, matched_rule_id, reason, risk_level}").
type Result struct {
	Decision      models.Decision
	MatchedRuleID string
	Reason        string
	RiskLevel     models.RiskLevel
	RiskScore     int
}

// Evaluate scores ctx, buckets the score into a RiskLevel, then returns the
// first rule (in ascending priority) whose predicates all hold. If none
// match, the default decision is require_approval (spec §4.4 "if none
// match, default is require_approval").
func (e *Engine) Evaluate(ctx Context) Result {
	score := Score(ctx.ActionType, ctx.Priority, ctx.DurationMin, ctx.Source)
	risk := Bucket(score)

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	for _, r := range rules {
		if r.Matches(ctx.ActionType, risk, ctx.DurationMin) {
			return Result{
				Decision:      r.Decision,
				MatchedRuleID: r.RuleID,
				Reason:        r.Name,
				RiskLevel:     risk,
				RiskScore:     score,
			}
		}
	}

	return Result{
		Decision:      models.DecisionRequireApproval,
		MatchedRuleID: "",
		Reason:        "no rule matched; defaulting to require_approval",
		RiskLevel:     risk,
		RiskScore:     score,
	}
}
