package journal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hackerai-desktop/internal/events"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordRecentNewestFirst(t *testing.T) {
	j := openTest(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(events.Event{Kind: events.AuthError, Time: base, Reason: "missing-token"}))
	require.NoError(t, j.Record(events.Event{Kind: events.SandboxStarted, Time: base.Add(time.Minute), Sandbox: &events.Sandbox{PID: 42, Name: "n", Image: "hackerai/sandbox"}}))
	require.NoError(t, j.Record(events.Event{Kind: events.SandboxStopped, Time: base.Add(2 * time.Minute)}))

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, events.SandboxStopped, entries[0].Kind)
	assert.Equal(t, events.SandboxStarted, entries[1].Kind)
	assert.Equal(t, "pid=42 name=n image=hackerai/sandbox", entries[1].Detail)
	assert.Equal(t, events.AuthError, entries[2].Kind)
	assert.Equal(t, "missing-token", entries[2].Reason)
	assert.True(t, base.Equal(entries[2].Time))

	limited, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, entries[0].ID, limited[0].ID)
}

func TestRecordRedactsTokens(t *testing.T) {
	j := openTest(t)
	token := strings.Repeat("cd", 32)

	require.NoError(t, j.Record(events.Event{
		Kind:       events.AuthSuccess,
		Credential: &events.Credential{AccessToken: token, RefreshToken: "refresh-secret"},
	}))

	entries, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Detail, token)
	assert.NotContains(t, entries[0].Detail, "refresh-secret")
	assert.Contains(t, entries[0].Detail, token[:8])
}

func TestPrune(t *testing.T) {
	j := openTest(t)
	now := time.Now().UTC()

	require.NoError(t, j.Record(events.Event{Kind: events.AuthError, Time: now.Add(-48 * time.Hour)}))
	require.NoError(t, j.Record(events.Event{Kind: events.AuthSuccess, Time: now}))

	n, err := j.Prune(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, events.AuthSuccess, entries[0].Kind)
}

func TestFollowBus(t *testing.T) {
	j := openTest(t)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(8)

	done := make(chan struct{})
	go func() {
		j.Follow(ch)
		close(done)
	}()

	bus.Publish(events.Event{Kind: events.SandboxExited, Sandbox: &events.Sandbox{PID: 7}})
	bus.Publish(events.Event{Kind: events.AuthError, Reason: "state-mismatch"})

	require.Eventually(t, func() bool {
		entries, err := j.Recent(10)
		return err == nil && len(entries) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after unsubscribe")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(events.Event{Kind: events.AuthSuccess}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
