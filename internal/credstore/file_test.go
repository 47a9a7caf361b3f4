package credstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hackerai-desktop/internal/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.json")
	store, err := NewFileStore(path, "passphrase")
	require.NoError(t, err)

	_, ok, err := store.Get()
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored yet")

	cred := Credential{AccessToken: "access", RefreshToken: "refresh"}
	require.NoError(t, store.Set(cred))

	got, ok, err := store.Get()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cred, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "access", "file content is sealed")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	_, ok, err = store.Get()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	writer, err := NewFileStore(path, "right")
	require.NoError(t, err)
	require.NoError(t, writer.Set(Credential{AccessToken: "a", RefreshToken: "r"}))

	reader, err := NewFileStore(path, "wrong")
	require.NoError(t, err)

	_, _, err = reader.Get()
	assert.ErrorIs(t, err, ErrStorage)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	store, err := NewFileStore(path, "pw")
	require.NoError(t, err)

	_, _, err = store.Get()
	assert.ErrorIs(t, err, ErrParse)
}

func TestNewFileStoreRequiresPassphrase(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "c.json"), "")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig().Credentials

	store, err := New(cfg, "")
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, store)

	cfg.Backend = config.BackendFile
	cfg.FilePath = filepath.Join(t.TempDir(), "c.json")
	store, err = New(cfg, "pw")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	cfg.Backend = "vault"
	_, err = New(cfg, "pw")
	assert.ErrorIs(t, err, ErrStorage)
}
