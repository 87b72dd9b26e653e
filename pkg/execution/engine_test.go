package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/adapters"
	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/models"
)

type fakeExecutor struct {
	failIndexes   map[int]int
	attempts      map[int]int
	rolledBack    []int
	rollbackErr   error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failIndexes: map[int]int{}, attempts: map[int]int{}}
}

func (f *fakeExecutor) Execute(ctx context.Context, step models.Step) (adapters.StepResult, error) {
	f.attempts[step.Index]++
	if remaining, ok := f.failIndexes[step.Index]; ok && remaining > 0 {
		f.failIndexes[step.Index] = remaining - 1
		return adapters.StepResult{}, errors.New("adapter failure")
	}
	return adapters.StepResult{RollbackToken: "token-" + string(step.Kind)}, nil
}

func (f *fakeExecutor) Rollback(ctx context.Context, step models.Step, result adapters.StepResult) error {
	f.rolledBack = append(f.rolledBack, step.Index)
	return f.rollbackErr
}

func TestRunPlanDryRunAlwaysSucceeds(t *testing.T) {
	e := New(DefaultConfig(), nil, nil, nil)
	plan := &models.Plan{Steps: []models.Step{{Index: 0, Kind: models.StepEmail}}}
	outcome := e.RunPlan(context.Background(), plan, newFakeExecutor(), "corr-1")
	require.True(t, outcome.Success)
	require.Equal(t, StepSucceeded, outcome.Results[0].Status)
}

func TestRunPlanRealModeSucceedsAfterTransientFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Real
	cfg.Retry.Base = time.Millisecond
	cfg.Retry.Cap = 10 * time.Millisecond
	exec := newFakeExecutor()
	exec.failIndexes[0] = 2

	e := New(cfg, nil, nil, nil)
	plan := &models.Plan{Steps: []models.Step{{Index: 0, Kind: models.StepAPI, Reversible: true}}}
	outcome := e.RunPlan(context.Background(), plan, exec, "corr-2")
	require.True(t, outcome.Success)
	require.Equal(t, 3, exec.attempts[0])
}

func TestRunPlanAutomaticRollbackOnFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Real
	cfg.Retry.MaxAttempts = 0
	exec := newFakeExecutor()
	exec.failIndexes[1] = 99

	e := New(cfg, nil, nil, nil)
	plan := &models.Plan{Steps: []models.Step{
		{Index: 0, Kind: models.StepFile, Reversible: true},
		{Index: 1, Kind: models.StepAPI, Reversible: true},
	}}
	outcome := e.RunPlan(context.Background(), plan, exec, "corr-3")
	require.False(t, outcome.Success)
	require.True(t, outcome.Compensated)
	require.Equal(t, []int{0}, exec.rolledBack)
}

func TestRunPlanNonReversibleStepRecordsNotSupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Real
	cfg.Retry.MaxAttempts = 0
	exec := newFakeExecutor()
	exec.failIndexes[1] = 99

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	e := New(cfg, auditLog, nil, nil)
	plan := &models.Plan{Steps: []models.Step{
		{Index: 0, Kind: models.StepFile, Reversible: false},
		{Index: 1, Kind: models.StepAPI, Reversible: true},
	}}
	outcome := e.RunPlan(context.Background(), plan, exec, "corr-4")
	require.False(t, outcome.Success)
	require.Empty(t, exec.rolledBack)

	entries, err := auditLog.Query(audit.Filter{EventType: "rollback.not_supported"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunPlanManualStrategyPreservesStack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Real
	cfg.RollbackStrategy = Manual
	cfg.Retry.MaxAttempts = 0
	exec := newFakeExecutor()
	exec.failIndexes[1] = 99

	e := New(cfg, nil, nil, nil)
	plan := &models.Plan{Steps: []models.Step{
		{Index: 0, Kind: models.StepFile, Reversible: true},
		{Index: 1, Kind: models.StepAPI, Reversible: true},
	}}
	outcome := e.RunPlan(context.Background(), plan, exec, "corr-5")
	require.False(t, outcome.Success)
	require.False(t, outcome.Compensated)
	require.Empty(t, exec.rolledBack)
}
