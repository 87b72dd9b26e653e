package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

func TestDLQAdmitListRetryRoundTrip(t *testing.T) {
	root := newTestRoot(t)
	stem := vault.NewStem()
	srcPath := root.FilePath(vault.Failed, stem, vault.KindAction)
	require.NoError(t, os.WriteFile(srcPath, []byte("type: email_response\n"), 0o644))

	dlq := NewDeadLetterQueue(root)
	entry := models.DLQEntry{
		OriginalPath:  srcPath,
		SourceState:   string(vault.Failed),
		Error:         "move failed",
		Attempts:      5,
		CorrelationID: "corr-1",
	}
	require.NoError(t, dlq.Admit(srcPath, entry))

	_, err := os.Stat(srcPath)
	require.True(t, os.IsNotExist(err))

	entries, err := dlq.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "corr-1", entries[0].CorrelationID)

	dest, err := dlq.Retry(entries[0].DLQID)
	require.NoError(t, err)
	require.Equal(t, srcPath, dest)

	_, err = os.Stat(dest)
	require.NoError(t, err)

	entries, err = dlq.List()
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

func TestDLQPurgeOlderThan(t *testing.T) {
	root := newTestRoot(t)
	stem := vault.NewStem()
	srcPath := root.FilePath(vault.Failed, stem, vault.KindAction)
	require.NoError(t, os.WriteFile(srcPath, []byte("type: other\n"), 0o644))

	dlq := NewDeadLetterQueue(root)
	entry := models.DLQEntry{
		OriginalPath:  srcPath,
		SourceState:   string(vault.Failed),
		QuarantinedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, dlq.Admit(srcPath, entry))

	purged, err := dlq.Purge(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	remaining, err := dlq.List()
	require.NoError(t, err)
	require.Len(t, remaining, 0)
}

func TestDLQRetryUnknownIDFails(t *testing.T) {
	root := newTestRoot(t)
	dlq := NewDeadLetterQueue(root)
	_, err := dlq.Retry("does-not-exist")
	require.Error(t, err)
}

func TestDLQListEmptyWhenFolderMissing(t *testing.T) {
	dir := t.TempDir()
	root := vault.NewRoot(filepath.Join(dir, "nested"))
	dlq := NewDeadLetterQueue(root)
	entries, err := dlq.List()
	require.NoError(t, err)
	require.Len(t, entries, 0)
}
