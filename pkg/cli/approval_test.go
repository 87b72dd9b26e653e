package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/approval"
	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/execution"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/pipeline"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

type noopPlanGenerator struct{}

func (noopPlanGenerator) GeneratePlan(ctx context.Context, a *models.Action) (*models.Plan, error) {
	return &models.Plan{ID: "plan-" + a.ID, Status: models.PlanDraft}, nil
}

// seedPendingApproval drives a stem from Needs_Action to Pending_Approval
// using the same processor the running service would use, so the test
// exercises the real plan.md/approval.md siblings the CLI reads.
func seedPendingApproval(t *testing.T, vaultDir, stem string) {
	t.Helper()
	root := vault.NewRoot(vaultDir)
	require.NoError(t, root.Init())
	auditLog, err := audit.Open(filepath.Join(root.Dir(vault.SystemLogAudit), "immutable_audit.jsonl"))
	require.NoError(t, err)
	eventBus := bus.New(nil, 100)
	wfEngine := workflow.New(root, auditLog, eventBus, nil, workflow.DefaultConfig())
	apprEngine := approval.NewEngine([]approval.Rule{
		{RuleID: "manual", Priority: 1, Decision: models.DecisionRequireApproval},
	})
	execEngine := execution.New(execution.DefaultConfig(), auditLog, eventBus, nil)
	proc := pipeline.New(root, wfEngine, apprEngine, execEngine, eventBus, auditLog, nil,
		noopPlanGenerator{}, nil, nil, nil, 0)

	data, err := models.EncodeAction(&models.Action{
		ID: "a-" + stem, Type: models.ActionOther, Priority: models.PriorityLow, Source: "inbox",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(root.FilePath(vault.NeedsAction, stem, vault.KindAction), data, 0o644))

	proc.ProcessAction(context.Background(), stem, "corr-"+stem)
}

func TestApprovalListShowsPendingStem(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgDir, "approval", "list"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), stem)
}

func TestApprovalShowPrintsDecodedRecord(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgDir, "approval", "show", stem})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "\"decision\"")
}

func TestApprovalShowUnknownStemIsUsageError(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	initVault(t, vaultDir)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgDir, "approval", "show", "does-not-exist"})
	err := root.Execute()
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))
}

func TestApprovalApproveArchivesActionAfterDone(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgDir, "approval", "approve", stem})
	require.NoError(t, root.Execute())

	vroot := vault.NewRoot(vaultDir)
	_, err := os.Stat(vroot.FilePath(vault.Archived, stem, vault.KindAction))
	require.NoError(t, err, "DONE auto-archives (workflow/state.go's DONE -> ARCHIVED edge)")
	_, err = os.Stat(vroot.FilePath(vault.Archived, stem, vault.KindApproval))
	require.NoError(t, err, "approval.md should follow the action file to its final folder")
	_, err = os.Stat(vroot.FilePath(vault.PendingApproval, stem, vault.KindApproval))
	require.True(t, os.IsNotExist(err), "stale Pending_Approval copy should be removed")
}

func TestApprovalRejectRequiresReason(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgDir, "approval", "reject", stem})
	err := root.Execute()
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))
}

func TestApprovalRejectArchivesActionAfterRejected(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgDir, "approval", "reject", stem, "--reason", "not needed"})
	require.NoError(t, root.Execute())

	vroot := vault.NewRoot(vaultDir)
	_, err := os.Stat(vroot.FilePath(vault.Archived, stem, vault.KindAction))
	require.NoError(t, err, "REJECTED auto-archives (workflow/state.go's REJECTED -> ARCHIVED edge)")
}

func TestApprovalHistoryReturnsJSONArray(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	stem := vault.NewStem()
	seedPendingApproval(t, vaultDir, stem)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgDir, "approval", "history"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "[")
}
