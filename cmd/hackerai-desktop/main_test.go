package main

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/journal"
)

func TestParseArgs(t *testing.T) {
	opts, command, rest, err := parseArgs([]string{"-config", "/tmp/c.json", "-log-level", "debug", "sandbox", "start", "-name", "x"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c.json", opts.configPath)
	assert.Equal(t, "debug", opts.logLevel)
	assert.Equal(t, "sandbox", command)
	assert.Equal(t, []string{"start", "-name", "x"}, rest)
}

func TestParseArgsCommandIsCaseInsensitive(t *testing.T) {
	_, command, _, err := parseArgs([]string{"STATUS"})
	require.NoError(t, err)
	assert.Equal(t, "status", command)
}

func TestParseArgsErrors(t *testing.T) {
	_, _, _, err := parseArgs(nil)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, _, _, err = parseArgs([]string{"help"})
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, _, _, err = parseArgs([]string{"bogus"})
	assert.ErrorContains(t, err, `unknown command "bogus"`)
}

func newTestApp(t *testing.T) (*cliApp, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Credentials.Backend = config.BackendFile
	cfg.Credentials.FilePath = filepath.Join(dir, "credentials.json")
	cfg.LockPath = filepath.Join(dir, "daemon.lock")
	cfg.JournalPath = filepath.Join(dir, "events.db")
	cfg.Control.TokenPath = filepath.Join(dir, "control.token")
	t.Setenv(passphraseEnv, "correct horse")

	var out bytes.Buffer
	return &cliApp{cfg: cfg, out: &out}, &out
}

func TestStatusWithoutDaemon(t *testing.T) {
	app, out := newTestApp(t)

	require.NoError(t, app.dispatch("status", nil))
	assert.Contains(t, out.String(), "authenticated: false")
	assert.Contains(t, out.String(), "daemon: not running")
}

func TestLocalLogoutDeletesCredential(t *testing.T) {
	app, out := newTestApp(t)

	store, err := credstore.New(app.cfg.Credentials, "correct horse")
	require.NoError(t, err)
	require.NoError(t, store.Set(credstore.Credential{AccessToken: "a", RefreshToken: "r"}))

	require.NoError(t, app.dispatch("status", nil))
	assert.Contains(t, out.String(), "authenticated: true")

	out.Reset()
	require.NoError(t, app.dispatch("logout", nil))
	assert.Contains(t, out.String(), "Signed out.")

	_, ok, err := store.Get()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalRefreshNeedsSession(t *testing.T) {
	app, _ := newTestApp(t)

	err := app.dispatch("refresh", nil)
	assert.ErrorContains(t, err, "not signed in")
}

func TestDaemonOnlyCommandsNeedDaemon(t *testing.T) {
	app, _ := newTestApp(t)

	assert.ErrorIs(t, app.dispatch("sandbox", []string{"status"}), errNoDaemon)
	assert.ErrorIs(t, app.dispatch("open", []string{"hackerai://auth-callback?token=x"}), errNoDaemon)
	assert.ErrorIs(t, app.sandbox(context.Background(), []string{"stop"}), errNoDaemon)
}

func TestEventsListsJournal(t *testing.T) {
	app, out := newTestApp(t)

	jr, err := journal.Open(app.cfg.JournalPath)
	require.NoError(t, err)
	require.NoError(t, jr.Record(events.Event{
		Kind:   events.AuthError,
		Time:   time.Now(),
		Reason: "state-mismatch",
	}))
	require.NoError(t, jr.Close())

	require.NoError(t, app.dispatch("events", []string{"-n", "5"}))
	assert.Contains(t, out.String(), "auth-error")
	assert.Contains(t, out.String(), "reason=state-mismatch")
}

func TestOpenBrowserRejectsNonWebSchemes(t *testing.T) {
	assert.ErrorContains(t, openBrowser("file:///etc/passwd"), "refusing")
	assert.ErrorContains(t, openBrowser("hackerai://auth?token=x"), "refusing")
}

func TestFollowJournalDrainsBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	jr, err := journal.Open(path)
	require.NoError(t, err)

	bus := events.NewBus()
	stop := followJournal(bus, jr)

	for i := 0; i < 10; i++ {
		bus.Publish(events.Event{Kind: events.SandboxStopped, Sandbox: &events.Sandbox{PID: 100 + i}})
	}
	stop()

	reopened, err := journal.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(50)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
	assert.Equal(t, events.SandboxStopped, entries[0].Kind)
}
