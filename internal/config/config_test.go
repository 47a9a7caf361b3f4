package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "hackerai", cfg.Auth.Scheme)
	assert.Equal(t, "https://hackerai.co", cfg.Auth.DefaultOrigin)
	assert.True(t, cfg.Auth.RequireState)
	assert.Equal(t, BackendKeyring, cfg.Credentials.Backend)
	assert.Equal(t, "npx", cfg.Sandbox.Runner)
	assert.Equal(t, "@hackerai/local", cfg.Sandbox.Package)
	assert.Equal(t, "hackerai/sandbox", cfg.Sandbox.DefaultImage)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.GracePeriod())
	assert.Equal(t, 10*time.Minute, cfg.Auth.LoginStateTTL())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Auth, cfg.Auth)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"auth": {"scheme": "hackerai-dev", "allowed_origin_hosts": ["staging.hackerai.co"]},
		"sandbox": {"grace_period_ms": 250}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hackerai-dev", cfg.Auth.Scheme)
	assert.Equal(t, []string{"staging.hackerai.co"}, cfg.Auth.AllowedOriginHosts)
	assert.Equal(t, "https://hackerai.co", cfg.Auth.DefaultOrigin, "untouched fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.GracePeriod())
	assert.Equal(t, "npx", cfg.Sandbox.Runner)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HACKERAI_DESKTOP_LOG_LEVEL", "debug")
	t.Setenv("HACKERAI_DESKTOP_AUTH_BASE_URL", "http://localhost:3000/api/desktop-auth")
	t.Setenv("HACKERAI_DESKTOP_AUTH_ALLOWED_ORIGIN_HOSTS", "localhost,dev.hackerai.co")
	t.Setenv("HACKERAI_DESKTOP_AUTH_REQUIRE_STATE", "false")
	t.Setenv("HACKERAI_DESKTOP_CREDENTIALS_BACKEND", "file")
	t.Setenv("HACKERAI_DESKTOP_SANDBOX_RUNNER", "bunx")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:3000/api/desktop-auth", cfg.Auth.BaseURL)
	assert.Equal(t, []string{"localhost", "dev.hackerai.co"}, cfg.Auth.AllowedOriginHosts)
	assert.False(t, cfg.Auth.RequireState)
	assert.Equal(t, BackendFile, cfg.Credentials.Backend)
	assert.Equal(t, "bunx", cfg.Sandbox.Runner)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credentials.Backend = "cloud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.Scheme = "hackerai://"
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Auth.AllowedOriginHosts = []string{"hackerai.co"}
	cfg.Control.Addr = "127.0.0.1:9000"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hackerai.co"}, loaded.Auth.AllowedOriginHosts)
	assert.Equal(t, "127.0.0.1:9000", loaded.Control.Addr)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, DefaultConfig().Save(path))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) { reloaded <- cfg })
	require.NoError(t, err)
	defer w.Close()

	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	require.NoError(t, cfg.Save(path))

	select {
	case got := <-reloaded:
		assert.Equal(t, "warn", got.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}
