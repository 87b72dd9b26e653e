package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/execution"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/pipeline"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

func newApprovalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Inspect and resolve pending approvals",
	}
	cmd.AddCommand(
		newApprovalListCommand(),
		newApprovalShowCommand(),
		newApprovalApproveCommand(),
		newApprovalRejectCommand(),
		newApprovalHistoryCommand(),
	)
	return cmd
}

func newApprovalListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootFromConfig(cmd)
			if err != nil {
				return err
			}
			entries, err := os.ReadDir(root.Dir(vault.PendingApproval))
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), stemFromApprovalFile(e.Name()))
			}
			return nil
		},
	}
}

func newApprovalShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <stem>",
		Short: "Show one pending approval's detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootFromConfig(cmd)
			if err != nil {
				return err
			}
			appr, err := loadApproval(root, args[0])
			if err != nil {
				return usageErrorf("%w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(appr)
		},
	}
}

func newApprovalApproveCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "approve <stem>",
		Short: "Approve a pending action and run its plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveApproval(cmd.Context(), args[0], true, reason)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "approver's reason (optional)")
	return cmd
}

func newApprovalRejectCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <stem>",
		Short: "Reject a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return usageErrorf("reject requires --reason")
			}
			return resolveApproval(cmd.Context(), args[0], false, reason)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "reason for rejection (required)")
	return cmd
}

func newApprovalHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently resolved approval decisions from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize(cmd.Context(), flagConfigDir)
			if err != nil {
				return usageErrorf("loading configuration: %w", err)
			}
			root := vault.NewRoot(cfg.VaultPath)
			if err := root.EnsureInitialized(); err != nil {
				return usageErrorf("%w", err)
			}
			auditLog, err := audit.Open(cfg.Audit.Path)
			if err != nil {
				return err
			}
			entries, err := auditLog.Query(audit.Filter{EventType: "transition.completed"})
			if err != nil {
				return err
			}
			resolved := make([]*models.AuditEntry, 0, len(entries))
			for _, entry := range entries {
				if from, _ := entry.Details["from"].(string); from == string(workflow.ApprovalReview) {
					resolved = append(resolved, entry)
				}
			}
			if limit > 0 && len(resolved) > limit {
				resolved = resolved[len(resolved)-limit:]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resolved)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

// rootFromConfig loads configuration and returns an initialized vault
// root, failing with a usage error if the vault hasn't been created yet.
func rootFromConfig(cmd *cobra.Command) (*vault.Root, error) {
	cfg, err := config.Initialize(cmd.Context(), flagConfigDir)
	if err != nil {
		return nil, usageErrorf("loading configuration: %w", err)
	}
	root := vault.NewRoot(cfg.VaultPath)
	if err := root.EnsureInitialized(); err != nil {
		return nil, usageErrorf("%w", err)
	}
	return root, nil
}

func stemFromApprovalFile(name string) string {
	return name[:len(name)-len(vault.Suffix(vault.KindApproval))]
}

func loadApproval(root *vault.Root, stem string) (*models.Approval, error) {
	data, err := os.ReadFile(root.FilePath(vault.PendingApproval, stem, vault.KindApproval))
	if err != nil {
		return nil, fmt.Errorf("no pending approval found for %s: %w", stem, err)
	}
	return models.DecodeApproval(data)
}

func loadPlan(root *vault.Root, folder vault.Folder, stem string) (*models.Plan, error) {
	data, err := os.ReadFile(root.FilePath(folder, stem, vault.KindPlan))
	if err != nil {
		return nil, fmt.Errorf("no plan found for %s: %w", stem, err)
	}
	return models.DecodePlan(data)
}

// resolveApproval drives a human decision directly against the vault
// filesystem: the two-level lock (in-process mutex plus the per-stem
// .locks file) serializes this against any running `vaultflow start`
// process touching the same stem, so calling the workflow engine's
// Transition from a separate CLI process is safe (spec §5 "Concurrency").
func resolveApproval(ctx context.Context, stem string, approve bool, reason string) error {
	cfg, err := config.Initialize(ctx, flagConfigDir)
	if err != nil {
		return usageErrorf("loading configuration: %w", err)
	}
	root := vault.NewRoot(cfg.VaultPath)
	if err := root.EnsureInitialized(); err != nil {
		return usageErrorf("%w", err)
	}

	appr, err := loadApproval(root, stem)
	if err != nil {
		return usageErrorf("%w", err)
	}
	plan, err := loadPlan(root, vault.PendingApproval, stem)
	if err != nil {
		return usageErrorf("%w", err)
	}

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return err
	}
	eventBus := bus.New(nil, cfg.Bus.HistoryCapacity)
	wfEngine := workflow.New(root, auditLog, eventBus, nil, cfg.WorkflowConfig())
	execEngine := execution.New(cfg.ExecutionEngineConfig(), auditLog, eventBus, nil)
	proc := pipeline.New(root, wfEngine, nil, execEngine, eventBus, auditLog, nil, nil, nil, nil, nil, cfg.Bus.QueueCapacity)

	entry := wfEngine.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.PendingApproval, To: workflow.ApprovalReview,
		CorrelationID: plan.CorrelationID, Actor: "operator",
	})
	if !entry.Success {
		return fmt.Errorf("entry transition to APPROVAL_REVIEW failed: %w", entry.Err)
	}

	approver := "operator"
	appr.Resolve(approver, time.Now().UTC())
	if reason != "" {
		appr.Reason = reason
	}

	var finalFolder vault.Folder
	if approve {
		proc.RunApproved(ctx, stem, plan.CorrelationID, plan)
		finalFolder = terminalFolder(root, stem, vault.Archived, vault.Done, vault.Failed)
	} else {
		proc.RunRejected(ctx, stem, plan.CorrelationID)
		finalFolder = terminalFolder(root, stem, vault.Archived, vault.Failed)
	}

	if err := relocateApprovalRecord(root, stem, appr, finalFolder); err != nil {
		return fmt.Errorf("relocating approval record: %w", err)
	}
	return nil
}

// terminalFolder reports whichever of the candidate folders now holds the
// stem's action file, so the approval record can follow it there.
func terminalFolder(root *vault.Root, stem string, candidates ...vault.Folder) vault.Folder {
	for _, f := range candidates {
		if _, err := os.Stat(root.FilePath(f, stem, vault.KindAction)); err == nil {
			return f
		}
	}
	return candidates[0]
}

// relocateApprovalRecord writes the resolved approval record into folder
// and removes the stale Pending_Approval copy. The action file's move is
// already recorded and audited by workflow.Engine.Transition; this is
// just the sibling artifact following it, the same supplementary-write
// pattern pipeline.Processor uses when first creating it.
func relocateApprovalRecord(root *vault.Root, stem string, appr *models.Approval, folder vault.Folder) error {
	data, err := models.EncodeApproval(appr)
	if err != nil {
		return err
	}
	newPath := root.FilePath(folder, stem, vault.KindApproval)
	if err := os.WriteFile(newPath+".tmp", data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(newPath+".tmp", newPath); err != nil {
		return err
	}
	oldPath := root.FilePath(vault.PendingApproval, stem, vault.KindApproval)
	if oldPath != newPath {
		os.Remove(oldPath)
	}
	return nil
}
