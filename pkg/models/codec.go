package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EncodeAction renders an Action as the YAML file body described in spec §6.
func EncodeAction(a *Action) ([]byte, error) {
	out, err := yaml.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("models: encode action: %w", err)
	}
	return out, nil
}

// DecodeAction parses an action.yaml body.
func DecodeAction(data []byte) (*Action, error) {
	var a Action
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("models: decode action: %w", err)
	}
	return &a, nil
}

const frontMatterDelim = "---"

// planFrontMatter mirrors Plan's front-matter fields only; the narrative
// sections live in the Markdown body below the closing "---".
type planFrontMatter struct {
	ActionID             string `yaml:"action_id"`
	ID                   string `yaml:"id"`
	Status               PlanStatus `yaml:"status"`
	CreatedAt            interface{} `yaml:"created_at"`
	UpdatedAt            interface{} `yaml:"updated_at"`
	EstimatedDurationMin int    `yaml:"estimated_duration_min"`
	RequiresApproval     bool   `yaml:"requires_approval"`
	Steps                []Step `yaml:"steps"`
	CorrelationID        string `yaml:"correlation_id"`
}

// EncodePlan renders a Plan as the Markdown-with-YAML-front-matter file
// described in spec §6.
func EncodePlan(p *Plan) ([]byte, error) {
	fm := planFrontMatter{
		ActionID:             p.ActionID,
		ID:                   p.ID,
		Status:               p.Status,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		EstimatedDurationMin: p.EstimatedDurationMin,
		RequiresApproval:     p.RequiresApproval,
		Steps:                p.Steps,
		CorrelationID:        p.CorrelationID,
	}
	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("models: encode plan front-matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterDelim)
	b.WriteByte('\n')
	b.Write(yamlBytes)
	b.WriteString(frontMatterDelim)
	b.WriteByte('\n')
	b.WriteString("# Objectives\n")
	b.WriteString(p.Objectives)
	b.WriteString("\n\n# Steps\n")
	b.WriteString(p.StepsNarrative)
	b.WriteString("\n\n# Resources\n")
	b.WriteString(p.Resources)
	b.WriteString("\n\n# Success Criteria\n")
	b.WriteString(p.SuccessCriteria)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// DecodePlan parses a plan.md file's front-matter and narrative sections.
func DecodePlan(data []byte) (*Plan, error) {
	fmYAML, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("models: decode plan: %w", err)
	}

	var fm planFrontMatter
	if err := yaml.Unmarshal(fmYAML, &fm); err != nil {
		return nil, fmt.Errorf("models: decode plan front-matter: %w", err)
	}

	p := &Plan{
		ActionID:             fm.ActionID,
		ID:                   fm.ID,
		Status:               fm.Status,
		EstimatedDurationMin: fm.EstimatedDurationMin,
		RequiresApproval:     fm.RequiresApproval,
		Steps:                fm.Steps,
		CorrelationID:        fm.CorrelationID,
	}
	p.CreatedAt = parseTimeField(fm.CreatedAt)
	p.UpdatedAt = parseTimeField(fm.UpdatedAt)

	p.Objectives, p.StepsNarrative, p.Resources, p.SuccessCriteria = parseNarrativeSections(body)
	return p, nil
}

type approvalFrontMatter struct {
	ID          string      `yaml:"id"`
	ActionID    string      `yaml:"action_id"`
	PlanID      string      `yaml:"plan_id"`
	Decision    Decision    `yaml:"decision"`
	RiskLevel   RiskLevel   `yaml:"risk_level"`
	RequestedAt interface{} `yaml:"requested_at"`
	ResolvedAt  interface{} `yaml:"resolved_at"`
	Approver    *string     `yaml:"approver"`
	Approvers   []string    `yaml:"approvers,omitempty"`
}

// EncodeApproval renders an Approval as the Markdown-front-matter-only file
// described in spec §6 (no narrative body is defined for approvals).
func EncodeApproval(a *Approval) ([]byte, error) {
	fm := approvalFrontMatter{
		ID:          a.ID,
		ActionID:    a.ActionID,
		PlanID:      a.PlanID,
		Decision:    a.Decision,
		RiskLevel:   a.RiskLevel,
		RequestedAt: a.RequestedAt,
		Approver:    a.Approver,
		Approvers:   a.Approvers,
	}
	if a.ResolvedAt != nil {
		fm.ResolvedAt = *a.ResolvedAt
	}
	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("models: encode approval: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterDelim)
	b.WriteByte('\n')
	b.Write(yamlBytes)
	b.WriteString(frontMatterDelim)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// DecodeApproval parses an approval.md file.
func DecodeApproval(data []byte) (*Approval, error) {
	fmYAML, _, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("models: decode approval: %w", err)
	}
	var fm approvalFrontMatter
	if err := yaml.Unmarshal(fmYAML, &fm); err != nil {
		return nil, fmt.Errorf("models: decode approval front-matter: %w", err)
	}
	a := &Approval{
		ID:        fm.ID,
		ActionID:  fm.ActionID,
		PlanID:    fm.PlanID,
		Decision:  fm.Decision,
		RiskLevel: fm.RiskLevel,
		Approver:  fm.Approver,
		Approvers: fm.Approvers,
	}
	a.RequestedAt = parseTimeField(fm.RequestedAt)
	if fm.ResolvedAt != nil {
		t := parseTimeField(fm.ResolvedAt)
		if !t.IsZero() {
			a.ResolvedAt = &t
		}
	}
	return a, nil
}
