// Package sandbox supervises the local sandbox worker: a single child process
// started through the package runner and stopped with a grace period.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/logger"
	"github.com/codefionn/hackerai-desktop/internal/pidfile"
	"github.com/codefionn/hackerai-desktop/internal/procctl"
)

var (
	// ErrAlreadyRunning is returned by Start while a sandbox is held.
	ErrAlreadyRunning = errors.New("sandbox is already running")
	// ErrProcess wraps failures to launch the sandbox.
	ErrProcess = errors.New("sandbox process error")
)

// StartConfig is a start request.
type StartConfig struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Dangerous bool   `json:"dangerous,omitempty"`
	Persist   bool   `json:"persist,omitempty"`
}

// Handle describes the supervised sandbox.
type Handle struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Image   string `json:"image"`
	Name    string `json:"name,omitempty"`
}

// Spawner launches the runner process.
type Spawner interface {
	Spawn(ctx context.Context, name string, args []string) (*procctl.Process, error)
}

// Options holds the supervisor's collaborators. Zero values select the
// platform defaults.
type Options struct {
	Config     config.SandboxConfig
	Spawner    Spawner
	Controller procctl.Controller
	Events     events.Publisher
	Pidfile    *pidfile.Pidfile
	Logger     *logger.Logger
}

type instance struct {
	proc     *procctl.Process
	handle   Handle
	stopping bool
	stopped  chan struct{}
}

// Supervisor owns at most one sandbox. The mutex guards only the slot; the
// stop sequence runs outside it.
type Supervisor struct {
	cfg     config.SandboxConfig
	spawner Spawner
	ctl     procctl.Controller
	events  events.Publisher
	pids    *pidfile.Pidfile
	log     *logger.Logger

	mu       sync.Mutex
	current  *instance
	starting bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// NewSupervisor builds a supervisor from opts.
func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{
		cfg:     opts.Config,
		spawner: opts.Spawner,
		ctl:     opts.Controller,
		events:  opts.Events,
		pids:    opts.Pidfile,
		log:     opts.Logger,
	}
	if s.spawner == nil {
		s.spawner = ExecSpawner{}
	}
	if s.ctl == nil {
		s.ctl = procctl.New()
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.pids == nil {
		s.pids = pidfile.New(opts.Config.PidFile)
	}
	if s.log == nil {
		s.log = logger.Global()
	}
	s.log = s.log.WithPrefix("sandbox")
	return s
}

// Start launches a sandbox. It fails with ErrAlreadyRunning while one is held
// or being started.
func (s *Supervisor) Start(ctx context.Context, sc StartConfig) (Handle, error) {
	s.mu.Lock()
	if s.current != nil || s.starting {
		s.mu.Unlock()
		return Handle{}, ErrAlreadyRunning
	}
	s.starting = true
	s.mu.Unlock()

	image := s.image(sc.Image)
	s.log.Info("starting sandbox with name: %s", sc.Name)

	proc, err := s.spawner.Spawn(ctx, s.runner(), BuildArgs(s.pkg(), sc, image))
	if err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		s.log.Error("failed to start sandbox: %v", err)
		return Handle{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	inst := &instance{
		proc:    proc,
		handle:  Handle{Running: true, PID: proc.Pid(), Image: image, Name: sc.Name},
		stopped: make(chan struct{}),
	}

	s.mu.Lock()
	s.current = inst
	s.starting = false
	s.mu.Unlock()

	s.log.Info("sandbox started with PID: %d", inst.handle.PID)
	if err := s.pids.Write(pidfile.Record{
		PID:       inst.handle.PID,
		Name:      sc.Name,
		Image:     image,
		StartedAt: proc.StartedAt(),
	}); err != nil {
		s.log.Warn("failed to record sandbox pid: %v", err)
	}
	s.events.Publish(events.Event{Kind: events.SandboxStarted, Sandbox: inst.eventPayload()})

	go s.watch(inst)
	return inst.handle, nil
}

// Stop terminates the sandbox: graceful request, grace window, then force
// kill. It always returns nil and leaves the supervisor stopped.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	inst := s.current
	if inst == nil {
		s.mu.Unlock()
		s.log.Debug("no sandbox was running")
		return nil
	}
	if inst.stopping {
		s.mu.Unlock()
		<-inst.stopped
		return nil
	}
	inst.stopping = true
	s.mu.Unlock()

	s.log.Info("stopping sandbox %d", inst.handle.PID)
	s.terminate(inst.proc)

	s.mu.Lock()
	if s.current == inst {
		s.current = nil
	}
	s.mu.Unlock()
	close(inst.stopped)

	if err := s.pids.Remove(); err != nil {
		s.log.Warn("%v", err)
	}
	s.events.Publish(events.Event{Kind: events.SandboxStopped, Sandbox: inst.eventPayload()})
	return nil
}

func (s *Supervisor) terminate(proc *procctl.Process) {
	if !s.ctl.Poll(proc) {
		s.log.Info("sandbox had already exited")
		return
	}

	err := s.ctl.TerminateGracefully(proc)
	switch {
	case errors.Is(err, procctl.ErrGracefulUnsupported):
	case err != nil:
		s.log.Warn("graceful termination failed: %v", err)
	default:
		select {
		case <-proc.Done():
		case <-time.After(s.cfg.GracePeriod()):
		}
	}

	if !s.ctl.Poll(proc) {
		s.log.Info("sandbox stopped gracefully")
		return
	}
	s.log.Warn("sandbox didn't stop gracefully, killing")
	if err := s.ctl.ForceKill(proc); err != nil {
		s.log.Error("failed to kill sandbox %d: %v", proc.Pid(), err)
	}
}

// Status reports the sandbox. An exited process is noticed here and the
// slot is cleared.
func (s *Supervisor) Status() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.current
	if inst == nil {
		return Handle{Image: s.image("")}
	}
	if s.ctl.Poll(inst.proc) {
		return inst.handle
	}

	s.log.Info("sandbox exited with code %d", inst.proc.ExitCode())
	if !inst.stopping {
		s.current = nil
		if err := s.pids.Remove(); err != nil {
			s.log.Warn("%v", err)
		}
	}
	return Handle{Image: inst.handle.Image, Name: inst.handle.Name}
}

// Output returns the tail of the sandbox's captured output. Empty without a
// sandbox.
func (s *Supervisor) Output() (stdout, stderr string) {
	s.mu.Lock()
	inst := s.current
	s.mu.Unlock()
	if inst == nil {
		return "", ""
	}
	return inst.proc.Stdout(), inst.proc.Stderr()
}

// Leftover reports a sandbox recorded by an earlier daemon that is still alive.
func (s *Supervisor) Leftover() (pidfile.Record, bool) {
	return s.pids.Leftover()
}

// watch announces exits that happen outside Stop. The slot itself is cleared
// lazily by Status.
func (s *Supervisor) watch(inst *instance) {
	<-inst.proc.Done()

	s.mu.Lock()
	stopping := inst.stopping
	s.mu.Unlock()
	if stopping {
		return
	}

	s.log.Warn("sandbox %d exited on its own (code %d)", inst.handle.PID, inst.proc.ExitCode())
	if stderr := inst.proc.Stderr(); stderr != "" {
		s.log.Debug("sandbox stderr: %s", stderr)
	}
	s.events.Publish(events.Event{Kind: events.SandboxExited, Sandbox: inst.eventPayload()})
}

func (inst *instance) eventPayload() *events.Sandbox {
	return &events.Sandbox{PID: inst.handle.PID, Name: inst.handle.Name, Image: inst.handle.Image}
}

func (s *Supervisor) image(requested string) string {
	if requested != "" {
		return requested
	}
	if s.cfg.DefaultImage != "" {
		return s.cfg.DefaultImage
	}
	return config.DefaultConfig().Sandbox.DefaultImage
}

func (s *Supervisor) runner() string {
	if s.cfg.Runner != "" {
		return s.cfg.Runner
	}
	return config.DefaultConfig().Sandbox.Runner
}

func (s *Supervisor) pkg() string {
	if s.cfg.Package != "" {
		return s.cfg.Package
	}
	return config.DefaultConfig().Sandbox.Package
}

// BuildArgs returns the runner arguments for sc.
func BuildArgs(pkg string, sc StartConfig, image string) []string {
	args := []string{pkg, "--token", sc.Token, "--name", sc.Name, "--image", image}
	if sc.Dangerous {
		args = append(args, "--dangerous")
	}
	if sc.Persist {
		args = append(args, "--persist")
	}
	return args
}
