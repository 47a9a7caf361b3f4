package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	appName = "hackerai-desktop"

	// EnvPrefix prefixes every environment override, e.g. HACKERAI_DESKTOP_LOG_LEVEL.
	EnvPrefix = "HACKERAI_DESKTOP_"

	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// AuthConfig controls the browser login flow and the deep-link callback.
type AuthConfig struct {
	BaseURL              string   `json:"base_url" env:"BASE_URL"`
	Scheme               string   `json:"scheme" env:"SCHEME"`
	DefaultOrigin        string   `json:"default_origin" env:"DEFAULT_ORIGIN"`
	AllowedOriginHosts   []string `json:"allowed_origin_hosts" env:"ALLOWED_ORIGIN_HOSTS" envSeparator:","`
	RequireState         bool     `json:"require_state" env:"REQUIRE_STATE"`
	LoginStateTTLSeconds int      `json:"login_state_ttl_seconds" env:"LOGIN_STATE_TTL_SECONDS"`
}

// LoginStateTTL returns how long an issued login state stays acceptable.
func (a AuthConfig) LoginStateTTL() time.Duration {
	if a.LoginStateTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(a.LoginStateTTLSeconds) * time.Second
}

// CredentialsConfig selects where the credential pair is persisted.
type CredentialsConfig struct {
	Backend  string `json:"backend" env:"BACKEND"` // "keyring" or "file"
	Service  string `json:"service" env:"SERVICE"`
	Key      string `json:"key" env:"KEY"`
	FilePath string `json:"file_path,omitempty" env:"FILE_PATH"`
}

// SandboxConfig describes how the local sandbox worker is launched.
type SandboxConfig struct {
	Runner            string `json:"runner" env:"RUNNER"`
	Package           string `json:"package" env:"PACKAGE"`
	DefaultImage      string `json:"default_image" env:"DEFAULT_IMAGE"`
	GracePeriodMillis int    `json:"grace_period_ms" env:"GRACE_PERIOD_MS"`
	DockerBinary      string `json:"docker_binary" env:"DOCKER_BINARY"`
	PidFile           string `json:"-" env:"PID_FILE"`
}

// GracePeriod returns the window a stopping sandbox gets before a force kill.
func (s SandboxConfig) GracePeriod() time.Duration {
	if s.GracePeriodMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.GracePeriodMillis) * time.Millisecond
}

// ControlConfig configures the loopback control API used by the presentation layer.
type ControlConfig struct {
	Addr      string `json:"addr" env:"ADDR"`
	TokenPath string `json:"-" env:"TOKEN_PATH"`
}

// Config represents application configuration
type Config struct {
	Auth        AuthConfig        `json:"auth" envPrefix:"AUTH_"`
	Credentials CredentialsConfig `json:"credentials" envPrefix:"CREDENTIALS_"`
	Sandbox     SandboxConfig     `json:"sandbox" envPrefix:"SANDBOX_"`
	Control     ControlConfig     `json:"control" envPrefix:"CONTROL_"`
	LogLevel    string            `json:"log_level" env:"LOG_LEVEL"` // debug, info, warn, error, none
	LogPath     string            `json:"-" env:"LOG_PATH"`
	JournalPath string            `json:"-" env:"JOURNAL_PATH"`
	LockPath    string            `json:"-" env:"LOCK_PATH"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		return defaultConfigDir()
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Auth: AuthConfig{
			BaseURL:              "https://hackerai.co/api/desktop-auth",
			Scheme:               "hackerai",
			DefaultOrigin:        "https://hackerai.co",
			AllowedOriginHosts:   []string{"hackerai.co", "www.hackerai.co", "localhost"},
			RequireState:         true,
			LoginStateTTLSeconds: 600,
		},
		Credentials: CredentialsConfig{
			Backend:  BackendKeyring,
			Service:  appName,
			Key:      "auth-tokens",
			FilePath: filepath.Join(defaultConfigDir(), "credentials.json"),
		},
		Sandbox: SandboxConfig{
			Runner:            "npx",
			Package:           "@hackerai/local",
			DefaultImage:      "hackerai/sandbox",
			GracePeriodMillis: 2000,
			DockerBinary:      "docker",
			PidFile:           filepath.Join(stateDir, "sandbox.pid"),
		},
		Control: ControlConfig{
			Addr:      "127.0.0.1:8937",
			TokenPath: filepath.Join(stateDir, "control.token"),
		},
		LogLevel:    "info",
		LogPath:     filepath.Join(stateDir, appName+".log"),
		JournalPath: filepath.Join(stateDir, "events.db"),
		LockPath:    filepath.Join(stateDir, appName+".lock"),
	}
}

// Load reads the JSON config at path over the defaults. A missing file is not
// an error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

// ApplyEnv overlays HACKERAI_DESKTOP_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// fillDefaults restores fields a partial config file may have blanked.
func (c *Config) fillDefaults() {
	def := DefaultConfig()

	if c.Auth.BaseURL == "" {
		c.Auth.BaseURL = def.Auth.BaseURL
	}
	if c.Auth.Scheme == "" {
		c.Auth.Scheme = def.Auth.Scheme
	}
	if c.Auth.DefaultOrigin == "" {
		c.Auth.DefaultOrigin = def.Auth.DefaultOrigin
	}
	if c.Auth.AllowedOriginHosts == nil {
		c.Auth.AllowedOriginHosts = def.Auth.AllowedOriginHosts
	}
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = def.Credentials.Backend
	}
	if c.Credentials.Service == "" {
		c.Credentials.Service = def.Credentials.Service
	}
	if c.Credentials.Key == "" {
		c.Credentials.Key = def.Credentials.Key
	}
	if c.Credentials.FilePath == "" {
		c.Credentials.FilePath = def.Credentials.FilePath
	}
	if c.Sandbox.Runner == "" {
		c.Sandbox.Runner = def.Sandbox.Runner
	}
	if c.Sandbox.Package == "" {
		c.Sandbox.Package = def.Sandbox.Package
	}
	if c.Sandbox.DefaultImage == "" {
		c.Sandbox.DefaultImage = def.Sandbox.DefaultImage
	}
	if c.Sandbox.DockerBinary == "" {
		c.Sandbox.DockerBinary = def.Sandbox.DockerBinary
	}
	if c.Sandbox.PidFile == "" {
		c.Sandbox.PidFile = def.Sandbox.PidFile
	}
	if c.Control.Addr == "" {
		c.Control.Addr = def.Control.Addr
	}
	if c.Control.TokenPath == "" {
		c.Control.TokenPath = def.Control.TokenPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.JournalPath == "" {
		c.JournalPath = def.JournalPath
	}
	if c.LockPath == "" {
		c.LockPath = def.LockPath
	}
}

// Validate rejects settings the core cannot run with.
func (c *Config) Validate() error {
	switch c.Credentials.Backend {
	case BackendKeyring, BackendFile:
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	if strings.ContainsAny(c.Auth.Scheme, ":/") {
		return fmt.Errorf("scheme %q must not contain ':' or '/'", c.Auth.Scheme)
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
