package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/vault"
)

// writeConfigDir writes a vaultflow.yaml pointing vault_path at vaultDir
// and returns the directory holding it, ready for --config.
func writeConfigDir(t *testing.T, vaultDir string) string {
	t.Helper()
	dir := t.TempDir()
	yaml := "vault_path: " + vaultDir + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vaultflow.yaml"), []byte(yaml), 0o644))
	return dir
}

func TestInitCommandCreatesVaultLayout(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	cfgDir := writeConfigDir(t, vaultDir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgDir, "init"})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), vaultDir)
	for _, f := range vault.AllFolders() {
		info, err := os.Stat(filepath.Join(vaultDir, string(f)))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestInitCommandFailsOnBadConfig(t *testing.T) {
	cfgDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "vaultflow.yaml"), []byte("execution:\n  mode: NOT_A_MODE\n"), 0o644))

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgDir, "init"})
	err := root.Execute()
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))
}
