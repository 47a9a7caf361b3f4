package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemove(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "state", "sandbox.pid"))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNoRecord)

	rec := Record{PID: os.Getpid(), Name: "desk", Image: "hackerai/sandbox", StartedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, p.Write(rec))

	got, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, rec.PID, got.PID)
	assert.Equal(t, rec.Name, got.Name)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))

	left, ok := p.Leftover()
	assert.True(t, ok)
	assert.Equal(t, rec.PID, left.PID)

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove())
	_, ok = p.Leftover()
	assert.False(t, ok)
}

func TestLeftoverDropsDeadRecord(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}

	p := New(filepath.Join(t.TempDir(), "sandbox.pid"))
	require.NoError(t, p.Write(Record{PID: cmd.Process.Pid}))

	_, ok := p.Leftover()
	assert.False(t, ok)
	_, err := os.Stat(p.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLeftoverDropsGarbage(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "sandbox.pid"))
	require.NoError(t, os.WriteFile(p.Path(), []byte("not json"), 0o600))

	_, ok := p.Leftover()
	assert.False(t, ok)
}

func TestDisabledPidfile(t *testing.T) {
	p := New("")
	assert.NoError(t, p.Write(Record{PID: 1}))
	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNoRecord)
	assert.NoError(t, p.Remove())
}
