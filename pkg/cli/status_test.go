package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

func initVault(t *testing.T, vaultDir string) *vault.Root {
	t.Helper()
	root := vault.NewRoot(vaultDir)
	require.NoError(t, root.Init())
	return root
}

func TestBuildStatusReportUninitializedVaultIsUsageError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VaultPath = filepath.Join(t.TempDir(), "never-created")
	_, err := buildStatusReport(cfg)
	require.Error(t, err)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestBuildStatusReportCountsFolders(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	root := initVault(t, vaultDir)

	require.NoError(t, os.WriteFile(root.FilePath(vault.NeedsAction, "stem-1", vault.KindAction), []byte("x"), 0o644))

	cfg := config.DefaultConfig()
	cfg.VaultPath = vaultDir
	report, err := buildStatusReport(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, report.Folders[string(vault.NeedsAction)])
	require.False(t, report.Running)
}

func TestBuildStatusReportDetectsRunningProcess(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	root := initVault(t, vaultDir)
	require.NoError(t, os.WriteFile(pidFilePath(root), []byte(strconv.Itoa(os.Getpid())), 0o644))

	cfg := config.DefaultConfig()
	cfg.VaultPath = vaultDir
	report, err := buildStatusReport(cfg)
	require.NoError(t, err)
	require.True(t, report.Running)
	require.Equal(t, os.Getpid(), report.PID)
}

func TestStatusCommandJSONOutput(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	initVault(t, vaultDir)
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgDir, "status", "--json"})
	require.NoError(t, root.Execute())

	var report statusReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, vaultDir, report.VaultPath)
}
