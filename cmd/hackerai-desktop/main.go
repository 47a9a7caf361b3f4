package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/logger"
	"github.com/codefionn/hackerai-desktop/internal/securemem"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	opts, command, rest, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("%s failed: %v", command, err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()
	defer securemem.Purge()

	if command == "serve" {
		return runServe(cfg, opts.configPath, rest)
	}

	// Short-lived commands wipe locked memory when interrupted.
	securemem.Init()

	app := &cliApp{cfg: cfg, out: os.Stdout}
	return app.dispatch(command, rest)
}

func parseArgs(args []string) (globalOptions, string, []string, error) {
	fs := flag.NewFlagSet("hackerai-desktop", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts globalOptions
	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to the JSON config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error, none)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options] <command> [args]\n\n", fs.Name())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  serve [-pprof-http addr]   Run the daemon with the control API")
		fmt.Fprintln(fs.Output(), "  login [-no-browser]        Start a browser login and wait for the callback")
		fmt.Fprintln(fs.Output(), "  open <url>                 Hand a hackerai:// deep link to the daemon")
		fmt.Fprintln(fs.Output(), "  status                     Show whether a session is stored")
		fmt.Fprintln(fs.Output(), "  refresh                    Refresh the stored tokens")
		fmt.Fprintln(fs.Output(), "  logout                     Delete the stored tokens")
		fmt.Fprintln(fs.Output(), "  sandbox start|stop|status  Control the local sandbox")
		fmt.Fprintln(fs.Output(), "  docker [-pull]             Check Docker and the sandbox image")
		fmt.Fprintln(fs.Output(), "  events [-n N]              Show recent events from the journal")
		fmt.Fprintln(fs.Output(), "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, "", nil, err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		fs.Usage()
		return opts, "", nil, flag.ErrHelp
	}

	command := strings.ToLower(remaining[0])
	if command == "help" {
		fs.Usage()
		return opts, "", nil, flag.ErrHelp
	}
	if !knownCommand(command) {
		fs.Usage()
		return opts, "", nil, fmt.Errorf("unknown command %q", remaining[0])
	}
	return opts, command, remaining[1:], nil
}

func knownCommand(name string) bool {
	switch name {
	case "serve", "login", "open", "callback", "status", "refresh", "logout", "sandbox", "docker", "events":
		return true
	default:
		return false
	}
}
