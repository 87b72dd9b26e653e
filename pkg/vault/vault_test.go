package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitCreatesAllFolders(t *testing.T) {
	root := NewRoot(t.TempDir())
	require.NoError(t, root.Init())
	require.NoError(t, root.EnsureInitialized())

	for _, f := range allFolders {
		info, err := os.Stat(root.Dir(f))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestFilePathRoundTrip(t *testing.T) {
	root := NewRoot("/vault")
	stem := NewStem()
	p := root.FilePath(NeedsAction, stem, KindAction)

	base := filepath.Base(p)
	gotStem, kind, ok := ParseStem(base)
	require.True(t, ok)
	require.Equal(t, stem, gotStem)
	require.Equal(t, KindAction, kind)
}

func TestParseStemRejectsUnknownSuffix(t *testing.T) {
	_, _, ok := ParseStem("not-a-vault-file.txt")
	require.False(t, ok)
}

func TestValidStem(t *testing.T) {
	require.True(t, ValidStem(NewStem()))
	require.False(t, ValidStem("not-a-uuid"))
}
