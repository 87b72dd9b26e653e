package credentials

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

func newTestRoot(t *testing.T) *vault.Root {
	t.Helper()
	dir := t.TempDir()
	root := vault.NewRoot(dir)
	require.NoError(t, root.Init())
	return root
}

func TestSetGetRoundTrip(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "correct horse battery staple", nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("slack_token", "xoxb-secret", nil))
	val, err := s.Get("slack_token")
	require.NoError(t, err)
	require.Equal(t, "xoxb-secret", val)
}

func TestGetMissingReturnsCredentialMissing(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "pw", nil)
	require.NoError(t, err)

	_, err = s.Get("nope")
	require.Error(t, err)
	require.Equal(t, faults.CredentialMissing, faults.KindOf(err))
}

func TestGetExpiredTreatedAsMissing(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "pw", nil)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.Set("temp", "v", &past))
	_, err = s.Get("temp")
	require.Error(t, err)
}

func TestListReturnsNamesNotValues(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "pw", nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("a", "1", nil))
	require.NoError(t, s.Set("b", "2", nil))
	names := s.List()
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestRotateReencryptsUnderNewMaster(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "old-pass", nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("key1", "value1", nil))

	require.NoError(t, s.Rotate("new-pass"))
	val, err := s.Get("key1")
	require.NoError(t, err)
	require.Equal(t, "value1", val)

	reopened, err := Open(root, "new-pass", nil)
	require.NoError(t, err)
	val, err = reopened.Get("key1")
	require.NoError(t, err)
	require.Equal(t, "value1", val)
}

func TestReopenWithWrongPassphraseFailsToDecrypt(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "right-pass", nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v", nil))

	reopened, err := Open(root, "wrong-pass", nil)
	require.NoError(t, err)
	_, err = reopened.Get("k")
	require.Error(t, err)
}

func TestPersistedFileNeverContainsPlaintext(t *testing.T) {
	root := newTestRoot(t)
	s, err := Open(root, "pw", nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("secret", "super-secret-plaintext-marker", nil))

	data, err := os.ReadFile(s.blobPath())
	require.NoError(t, err)
	require.NotContains(t, string(data), "super-secret-plaintext-marker")
}
