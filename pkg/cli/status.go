package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

// folderCounts maps every pipeline folder to its current file count,
// read directly off the filesystem (spec's local-first design: status
// never talks to a running process, only the vault itself).
type folderCounts map[string]int

type statusReport struct {
	VaultPath string       `json:"vault_path"`
	Running   bool         `json:"running"`
	PID       int          `json:"pid,omitempty"`
	Folders   folderCounts `json:"folders"`
	AuditTail int          `json:"audit_entries_tail"`
}

func newStatusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vault folder counts and whether the service is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize(cmd.Context(), flagConfigDir)
			if err != nil {
				return usageErrorf("loading configuration: %w", err)
			}
			report, err := buildStatusReport(cfg)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func buildStatusReport(cfg *config.Config) (statusReport, error) {
	root := vault.NewRoot(cfg.VaultPath)
	if err := root.EnsureInitialized(); err != nil {
		return statusReport{}, usageErrorf("%w", err)
	}

	counts := make(folderCounts)
	for _, f := range vault.AllFolders() {
		entries, err := os.ReadDir(root.Dir(f))
		if err != nil {
			continue
		}
		n := 0
		for _, e := range entries {
			if !e.IsDir() {
				n++
			}
		}
		counts[string(f)] = n
	}

	report := statusReport{VaultPath: cfg.VaultPath, Folders: counts}

	if pid, err := readPidFile(root); err == nil && processAlive(pid) {
		report.Running = true
		report.PID = pid
	}

	if auditLog, err := audit.Open(cfg.Audit.Path); err == nil {
		entries, _ := auditLog.Query(audit.Filter{Limit: 20})
		report.AuditTail = len(entries)
	}

	return report, nil
}

func printStatus(cmd *cobra.Command, r statusReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "vault:   %s\n", r.VaultPath)
	if r.Running {
		fmt.Fprintf(cmd.OutOrStdout(), "status:  running (pid %d)\n", r.PID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "status:  stopped")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "folders:")
	for _, f := range vault.AllFolders() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d\n", f, r.Folders[string(f)])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recent audit entries: %d\n", r.AuditTail)
}
