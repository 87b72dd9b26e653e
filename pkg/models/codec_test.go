package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActionRoundTrip(t *testing.T) {
	dur := 45
	a := &Action{
		ID:                   "11111111-1111-1111-1111-111111111111",
		Type:                 ActionEmailResponse,
		Priority:             PriorityLow,
		Context:              map[string]string{"from": "alice@example.com"},
		CreatedAt:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:               "gmail-adapter",
		EstimatedDurationMin: &dur,
	}

	encoded, err := EncodeAction(a)
	require.NoError(t, err)

	decoded, err := DecodeAction(encoded)
	require.NoError(t, err)
	require.Equal(t, a.ID, decoded.ID)
	require.Equal(t, a.Type, decoded.Type)
	require.Equal(t, a.Source, decoded.Source)
	require.Equal(t, a.Duration(), decoded.Duration())
}

func TestPlanRoundTrip(t *testing.T) {
	p := &Plan{
		ActionID:             "a-1",
		ID:                   "p-1",
		Status:               PlanPendingApproval,
		CreatedAt:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:            time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
		EstimatedDurationMin: 180,
		RequiresApproval:     true,
		CorrelationID:        "corr-1",
		Steps: []Step{
			{Index: 0, Kind: StepEmail, Reversible: false},
			{Index: 1, Kind: StepAPI, Reversible: true, RollbackParams: map[string]any{"id": "x"}},
		},
		Objectives:      "Respond to the customer.",
		StepsNarrative:  "1. Draft reply\n2. Send",
		Resources:       "None",
		SuccessCriteria: "Customer receives a reply within 1 hour.",
	}

	encoded, err := EncodePlan(p)
	require.NoError(t, err)

	decoded, err := DecodePlan(encoded)
	require.NoError(t, err)
	require.Equal(t, p.ID, decoded.ID)
	require.Equal(t, p.Status, decoded.Status)
	require.Equal(t, p.RequiresApproval, decoded.RequiresApproval)
	require.Len(t, decoded.Steps, 2)
	require.Equal(t, p.Objectives, decoded.Objectives)
	require.Equal(t, p.SuccessCriteria, decoded.SuccessCriteria)
}

func TestApprovalRoundTrip(t *testing.T) {
	a := &Approval{
		ID:          "appr-1",
		ActionID:    "a-1",
		PlanID:      "p-1",
		Decision:    DecisionRequireApproval,
		RiskLevel:   RiskHigh,
		RequestedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Approvers:   []string{"alice", "bob"},
	}

	encoded, err := EncodeApproval(a)
	require.NoError(t, err)

	decoded, err := DecodeApproval(encoded)
	require.NoError(t, err)
	require.Equal(t, a.ID, decoded.ID)
	require.Equal(t, a.Decision, decoded.Decision)
	require.Equal(t, a.RiskLevel, decoded.RiskLevel)
	require.False(t, decoded.IsResolved())
	require.ElementsMatch(t, a.Approvers, decoded.Approvers)
}
