package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/vault"
)

func TestDashboardRenderAndWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	root := vault.NewRoot(dir)
	require.NoError(t, root.Init())

	dw := NewDashboardWriter(root, nil, time.Hour, nil)
	dw.SetWatchers([]WatcherStatus{{Name: "inbox-watcher", Healthy: true, LastEvent: time.Now()}})

	dw.writeOnce()

	data, err := os.ReadFile(filepath.Join(dir, "Dashboard.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "# Vault Dashboard")
	require.Contains(t, string(data), "inbox-watcher")
	require.NotContains(t, string(data), ".tmp")
}
