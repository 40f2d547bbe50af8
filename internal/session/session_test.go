package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	s := NewMemory("  abc ")
	assert.Equal(t, "abc", s.Token())
	require.NoError(t, s.Clear())
	assert.Empty(t, s.Token())
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")

	s, err := NewFile(path)
	require.NoError(t, err)
	assert.Empty(t, s.Token())

	require.NoError(t, s.SetToken("secret"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", reopened.Token())

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
