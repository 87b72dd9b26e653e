// Package cli implements vaultflow's command-line surface (spec §6
// "External Interfaces"): vault init, start/stop/restart/status, and the
// approval queue commands, wired directly against the vault filesystem
// rather than through any network API.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// UsageError marks a bad-input failure (spec §6 exit code 2), as opposed
// to a runtime error (exit code 1).
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// usageErrorf builds a UsageError from a format string.
func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

var (
	flagConfigDir string
	flagLogLevel  string
)

// NewRootCommand builds vaultflow's cobra command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vaultflow",
		Short:         "Local-first automation orchestrator that moves files through a vault pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfigDir, "config", getEnv("VAULTFLOW_CONFIG_DIR", "./config"), "configuration directory")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", getEnv("VAULTFLOW_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCommand(),
		newStartCommand(),
		newStopCommand(),
		newRestartCommand(),
		newStatusCommand(),
		newApprovalCommand(),
		newVersionCommand(),
	)
	return root
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Execute runs the command tree and returns the process exit code per
// spec §6: 0 success, 1 runtime error, 2 bad input.
func Execute() int {
	return exitCode(NewRootCommand().Execute())
}

// exitCode maps a command error to a process exit code per spec §6: 0
// success, 1 runtime error, 2 bad input (a *UsageError).
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintln(os.Stderr, "error:", usageErr.Error())
		return 2
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
