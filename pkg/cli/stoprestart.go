package cli

import (
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal a running vaultflow process to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signalRunning(cmd, syscall.SIGTERM, "stop requested")
		},
	}
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Reload approval rules in a running vaultflow process",
		Long: "Restart sends SIGHUP, which reloads the approval rule set via an " +
			"atomic swap. It does not stop and relaunch the process; use stop " +
			"followed by start for a full restart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signalRunning(cmd, syscall.SIGHUP, "reload requested")
		},
	}
}

func signalRunning(cmd *cobra.Command, sig syscall.Signal, verb string) error {
	cfg, err := config.Initialize(cmd.Context(), flagConfigDir)
	if err != nil {
		return usageErrorf("loading configuration: %w", err)
	}
	root := vault.NewRoot(cfg.VaultPath)
	pid, err := readPidFile(root)
	if err != nil {
		return usageErrorf("no running vaultflow process found for vault %s: %w", cfg.VaultPath, err)
	}
	if !processAlive(pid) {
		return usageErrorf("pidfile found but process %d is not running", pid)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return err
	}
	cmd.Printf("%s (pid %d)\n", verb, pid)
	return nil
}

// processAlive reports whether pid refers to a live process, using the
// signal-0 probe (no actual signal delivered).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
