package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/audit"
	auditindex "github.com/vaultflow/vaultflow/pkg/audit/index"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/credentials"
	"github.com/vaultflow/vaultflow/pkg/execution"
	"github.com/vaultflow/vaultflow/pkg/ingest"
	"github.com/vaultflow/vaultflow/pkg/metrics"
	"github.com/vaultflow/vaultflow/pkg/notify"
	"github.com/vaultflow/vaultflow/pkg/orchestrator"
	"github.com/vaultflow/vaultflow/pkg/pipeline"
	"github.com/vaultflow/vaultflow/pkg/retention"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/version"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the vault's services and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), flagConfigDir, flagLogLevel)
		},
	}
}

func runStart(ctx context.Context, configDir, logLevel string) error {
	logger := setupLogger(logLevel)

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return usageErrorf("loading configuration: %w", err)
	}

	root := vault.NewRoot(cfg.VaultPath)
	if err := root.Init(); err != nil {
		return fmt.Errorf("initializing vault: %w", err)
	}

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}

	if cfg.Audit.IndexDSNEnv != "" {
		if dsn := os.Getenv(cfg.Audit.IndexDSNEnv); dsn != "" {
			idx, err := auditindex.Open(ctx, dsn)
			if err != nil {
				logger.Warn("start: audit secondary index unavailable, continuing JSONL-only", "error", err)
			} else {
				auditLog.SetIndex(idx)
				defer idx.Close()
			}
		}
	}

	if err := writePidFile(root); err != nil {
		logger.Warn("start: could not write pidfile", "error", err)
	}
	defer removePidFile(root)

	eventBus := bus.New(logger, cfg.Bus.HistoryCapacity)
	m := metrics.New("vaultflow")

	wfEngine := workflow.New(root, auditLog, eventBus, logger, cfg.WorkflowConfig())
	apprEngine := newApprovalEngine(cfg)
	execEngine := execution.New(cfg.ExecutionEngineConfig(), auditLog, eventBus, logger)

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Warn("start: notifier configuration invalid, falling back to noop", "error", err)
		notifier = notify.Noop{}
	}

	if cfg.Credentials.PassphraseEnv != "" {
		if passphrase := os.Getenv(cfg.Credentials.PassphraseEnv); passphrase != "" {
			if _, err := credentials.Open(root, passphrase, auditLog); err != nil {
				logger.Warn("start: credential store open failed", "error", err)
			}
		}
	}

	proc := pipeline.New(root, wfEngine, apprEngine, execEngine, eventBus, auditLog, notifier, nil, nil, m, logger, cfg.Bus.QueueCapacity)

	watcher := ingest.NewWatcher(root, wfEngine, eventBus, logger)
	retentionSvc := retention.NewService(root, wfEngine.DeadLetterQueue(), auditLog, retentionConfigFrom(cfg), logger)
	dashboard := orchestrator.NewDashboardWriter(root, auditLog, dashboardInterval(cfg), logger)

	orch := orchestrator.New(orchestratorConfigFrom(cfg), eventBus, auditLog, logger)
	orch.Registry().Register(proc)
	orch.Registry().Register(watcher)
	orch.Registry().Register(retentionSvc)
	orch.Registry().Register(dashboard)

	orch.OnReload(func() {
		reloaded, err := config.Initialize(ctx, configDir)
		if err != nil {
			logger.Error("reload: configuration reload failed, keeping current rules", "error", err)
			return
		}
		apprEngine.SetRules(reloaded.ApprovalRules())
		logger.Info("reload: approval rules swapped", "rule_count", len(reloaded.ApprovalRules()))
	})

	logger.Info("vaultflow: starting", "version", version.Full(), "vault_path", cfg.VaultPath, "pid", os.Getpid())
	return orch.Run(ctx)
}

func pidFilePath(root *vault.Root) string {
	return filepath.Join(root.Dir(vault.SystemLog), "vaultflow.pid")
}

func writePidFile(root *vault.Root) error {
	return os.WriteFile(pidFilePath(root), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePidFile(root *vault.Root) {
	os.Remove(pidFilePath(root))
}

func readPidFile(root *vault.Root) (int, error) {
	data, err := os.ReadFile(pidFilePath(root))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}
