package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// DockerStatus reports whether the docker CLI is usable.
type DockerStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Docker probes the local container runtime through its CLI.
type Docker struct {
	binary       string
	defaultImage string
}

// NewDocker returns a prober using binary ("docker" when empty).
func NewDocker(binary, defaultImage string) *Docker {
	if binary == "" {
		binary = "docker"
	}
	return &Docker{binary: binary, defaultImage: defaultImage}
}

// Check reports the docker version, or why docker cannot be used. It never
// returns an error; failures are described in the status.
func (d *Docker) Check(ctx context.Context) DockerStatus {
	logger.Info("checking Docker availability")

	stdout, stderr, err := d.run(ctx, "--version")
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = fmt.Sprintf("failed to run docker command: %v", err)
		}
		logger.Warn("docker check failed: %s", msg)
		return DockerStatus{Error: msg}
	}

	version := strings.TrimSpace(stdout)
	logger.Info("docker available: %s", version)
	return DockerStatus{Available: true, Version: version}
}

// HasImage reports whether image exists locally.
func (d *Docker) HasImage(ctx context.Context, image string) (bool, error) {
	image = d.image(image)
	stdout, stderr, err := d.run(ctx, "images", "-q", image)
	if err != nil {
		return false, fmt.Errorf("failed to check image: %v: %s", err, strings.TrimSpace(stderr))
	}

	exists := strings.TrimSpace(stdout) != ""
	logger.Info("image %s exists: %t", image, exists)
	return exists, nil
}

// PullImage pulls image.
func (d *Docker) PullImage(ctx context.Context, image string) error {
	image = d.image(image)
	logger.Info("pulling image: %s", image)

	if _, stderr, err := d.run(ctx, "pull", image); err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		logger.Error("failed to pull image: %s", msg)
		return fmt.Errorf("pull failed: %s", msg)
	}
	logger.Info("image pulled successfully: %s", image)
	return nil
}

func (d *Docker) image(image string) string {
	if image != "" {
		return image
	}
	if d.defaultImage != "" {
		return d.defaultImage
	}
	return "hackerai/sandbox"
}

func (d *Docker) run(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
