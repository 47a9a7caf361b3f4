package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/auth"
	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/control"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/journal"
	"github.com/codefionn/hackerai-desktop/internal/lockfile"
	"github.com/codefionn/hackerai-desktop/internal/logger"
	"github.com/codefionn/hackerai-desktop/internal/pidfile"
	"github.com/codefionn/hackerai-desktop/internal/pprof"
	"github.com/codefionn/hackerai-desktop/internal/sandbox"
)

const journalRetention = 30 * 24 * time.Hour

func runServe(cfg *config.Config, configPath string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var profiling pprof.Config
	fs.StringVar(&profiling.HTTPAddr, "pprof-http", "", "Serve pprof on this address (e.g. 127.0.0.1:6060)")
	fs.StringVar(&profiling.CPUProfile, "cpu-profile", "", "Write a CPU profile to this file")
	fs.StringVar(&profiling.HeapProfile, "heap-profile", "", "Write a heap profile to this file on exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lock := lockfile.New(cfg.LockPath)
	if err := lock.TryAcquire(cfg.Control.Addr); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release lock: %v", err)
		}
	}()

	logger.Info("hackerai-desktop daemon starting (pid %d)", os.Getpid())

	if profiling.Enabled() {
		profiler := pprof.NewHandler(profiling)
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	store, err := openCredentialStore(cfg)
	if err != nil {
		return err
	}

	bus := events.NewBus()

	jr, err := journal.Open(cfg.JournalPath)
	if err != nil {
		bus.Close()
		return err
	}
	if n, err := jr.Prune(time.Now().Add(-journalRetention)); err != nil {
		logger.Warn("%v", err)
	} else if n > 0 {
		logger.Debug("pruned %d journal entries", n)
	}
	defer followJournal(bus, jr)()

	manager := auth.NewManager(auth.Options{
		Config: cfg.Auth,
		Store:  store,
		Events: bus,
	})

	supervisor := sandbox.NewSupervisor(sandbox.Options{
		Config:  cfg.Sandbox,
		Events:  bus,
		Pidfile: pidfile.New(cfg.Sandbox.PidFile),
	})
	if rec, ok := supervisor.Leftover(); ok {
		logger.Warn("a sandbox from an earlier run is still alive (pid %d, name %s); it is not supervised", rec.PID, rec.Name)
	}

	token, err := control.LoadOrCreateToken(cfg.Control.TokenPath)
	if err != nil {
		return err
	}

	server, err := control.NewServer(control.Options{
		Addr:    cfg.Control.Addr,
		Token:   token,
		Auth:    manager,
		Sandbox: supervisor,
		Docker:  sandbox.NewDocker(cfg.Sandbox.DockerBinary, cfg.Sandbox.DefaultImage),
		Journal: jr,
		Bus:     bus,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	watcher, err := config.Watch(configPath, func(next *config.Config) {
		level := logger.ParseLevel(next.LogLevel)
		logger.Global().SetLevel(level)
		logger.Info("log level is now %s; other changes apply after restart", level)
	})
	if err != nil {
		logger.Warn("config changes will not be picked up: %v", err)
	} else {
		defer watcher.Close()
	}

	fmt.Fprintf(os.Stderr, "hackerai-desktop listening on %s\n", server.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	_ = supervisor.Stop()
	if err := server.Stop(); err != nil {
		logger.Warn("%v", err)
	}
	return nil
}

// followJournal records bus events into jr. The returned func closes the bus,
// waits until every queued event is written and then closes the journal.
func followJournal(bus *events.Bus, jr *journal.Journal) func() {
	feed, _ := bus.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		jr.Follow(feed)
	}()

	return func() {
		bus.Close()
		<-done
		if err := jr.Close(); err != nil {
			logger.Warn("failed to close journal: %v", err)
		}
	}
}
