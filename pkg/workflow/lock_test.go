package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/vault"
)

func TestLockTableSerializesSameStem(t *testing.T) {
	lt := NewLockTable()
	release, err := lt.acquire(context.Background(), "stem-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lt.acquire(ctx, "stem-a")
	require.Error(t, err)

	release()

	release2, err := lt.acquire(context.Background(), "stem-a")
	require.NoError(t, err)
	release2()
}

func TestLockTableDifferentStemsIndependent(t *testing.T) {
	lt := NewLockTable()
	releaseA, err := lt.acquire(context.Background(), "stem-a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := lt.acquire(context.Background(), "stem-b")
	require.NoError(t, err)
	releaseB()
}

func newTestRoot(t *testing.T) *vault.Root {
	t.Helper()
	dir := t.TempDir()
	root := vault.NewRoot(dir)
	require.NoError(t, root.Init())
	return root
}

func TestFileLockAcquireAndRelease(t *testing.T) {
	root := newTestRoot(t)
	fl := NewFileLock(root, 300*time.Second)

	res, err := fl.Acquire("stem-1")
	require.NoError(t, err)
	require.False(t, res.ReclaimedStale)

	_, err = fl.Acquire("stem-1")
	require.Error(t, err)

	require.NoError(t, fl.Release("stem-1"))

	_, err = fl.Acquire("stem-1")
	require.NoError(t, err)
	require.NoError(t, fl.Release("stem-1"))
}

func TestFileLockReclaimsStale(t *testing.T) {
	root := newTestRoot(t)
	fl := NewFileLock(root, 10*time.Millisecond)

	_, err := fl.Acquire("stem-2")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	res, err := fl.Acquire("stem-2")
	require.NoError(t, err)
	require.True(t, res.ReclaimedStale)

	require.NoError(t, fl.Release("stem-2"))
}

func TestFileLockReleaseIdempotent(t *testing.T) {
	root := newTestRoot(t)
	fl := NewFileLock(root, 300*time.Second)
	require.NoError(t, fl.Release("never-acquired"))

	_ = os.Remove(filepath.Join(root.Dir(vault.DotLocks), "ghost.lock"))
}
