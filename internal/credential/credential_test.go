package credential

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	assert.Empty(t, m.Token())

	require.NoError(t, m.SetToken("  abc  "))
	assert.Equal(t, "abc", m.Token())

	require.NoError(t, m.Clear())
	assert.Empty(t, m.Token())
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential")
	f := NewFile(path)

	assert.Empty(t, f.Token())

	require.NoError(t, f.SetToken("eyJhbGciOi"))
	assert.Equal(t, "eyJhbGciOi", f.Token())

	// A second handle on the same path sees the token, like a second CLI run.
	assert.Equal(t, "eyJhbGciOi", NewFile(path).Token())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, f.Clear())
	assert.Empty(t, f.Token())
	require.NoError(t, f.Clear())
}

func TestFile_EmptyTokenClears(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "credential"))

	require.NoError(t, f.SetToken("abc"))
	require.NoError(t, f.SetToken("   "))

	_, err := os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStoresSatisfyInterface(t *testing.T) {
	var _ Store = NewMemory()
	var _ Store = NewFile("x")
}
