//go:build !windows

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker writes a docker stand-in that answers the probes the way the
// real CLI does.
func fakeDocker(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
case "$1" in
  --version) echo "Docker version 27.0.3, build 7d4bcd8" ;;
  images)
    if [ "$3" = "hackerai/sandbox" ]; then echo "3f1c2a9b8e7d"; fi ;;
  pull)
    if [ "$2" = "missing/image" ]; then echo "pull access denied for missing/image" >&2; exit 1; fi
    echo "Status: Downloaded newer image for $2" ;;
  *) exit 2 ;;
esac
`
	path := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDockerCheck(t *testing.T) {
	d := NewDocker(fakeDocker(t), "")

	status := d.Check(context.Background())
	assert.True(t, status.Available)
	assert.Equal(t, "Docker version 27.0.3, build 7d4bcd8", status.Version)
	assert.Empty(t, status.Error)
}

func TestDockerCheckMissingBinary(t *testing.T) {
	d := NewDocker(filepath.Join(t.TempDir(), "no-docker"), "")

	status := d.Check(context.Background())
	assert.False(t, status.Available)
	assert.Contains(t, status.Error, "failed to run docker command")
}

func TestDockerHasImage(t *testing.T) {
	d := NewDocker(fakeDocker(t), "hackerai/sandbox")

	ok, err := d.HasImage(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasImage(context.Background(), "other/image")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDockerPullImage(t *testing.T) {
	d := NewDocker(fakeDocker(t), "")

	assert.NoError(t, d.PullImage(context.Background(), "hackerai/sandbox"))

	err := d.PullImage(context.Background(), "missing/image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull access denied")
}
