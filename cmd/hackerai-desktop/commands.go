package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/hackerai-desktop/internal/auth"
	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/control"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/journal"
	"github.com/codefionn/hackerai-desktop/internal/lockfile"
	"github.com/codefionn/hackerai-desktop/internal/sandbox"
)

var errNoDaemon = errors.New("no running daemon; start it with `hackerai-desktop serve`")

type cliApp struct {
	cfg *config.Config
	out io.Writer
}

func (a *cliApp) dispatch(command string, args []string) error {
	ctx := context.Background()

	switch command {
	case "login":
		return a.login(ctx, args)
	case "open", "callback":
		return a.open(ctx, args)
	case "status":
		return a.status(ctx)
	case "refresh":
		return a.refresh(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "sandbox":
		return a.sandbox(ctx, args)
	case "docker":
		return a.docker(ctx, args)
	case "events":
		return a.events(args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// remote connects to the running daemon, if any.
func (a *cliApp) remote() (*control.Remote, error) {
	owner, err := lockfile.ReadOwner(a.cfg.LockPath)
	if errors.Is(err, lockfile.ErrNotLocked) {
		return nil, errNoDaemon
	}
	if err != nil {
		return nil, err
	}

	token, err := control.ReadToken(a.cfg.Control.TokenPath)
	if err != nil {
		return nil, err
	}
	addr := owner.ControlAddr
	if addr == "" {
		addr = a.cfg.Control.Addr
	}
	return control.NewRemote(addr, token), nil
}

// localManager serves auth commands when no daemon is running.
func (a *cliApp) localManager() (*auth.Manager, error) {
	store, err := openCredentialStore(a.cfg)
	if err != nil {
		return nil, err
	}
	return auth.NewManager(auth.Options{Config: a.cfg.Auth, Store: store}), nil
}

func (a *cliApp) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	noBrowser := fs.Bool("no-browser", false, "Print the login URL instead of opening it")
	baseURL := fs.String("base-url", "", "Override the auth base URL")
	timeout := fs.Duration("timeout", 10*time.Minute, "How long to wait for the browser callback")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := a.remote()
	if err != nil {
		return err
	}

	// Subscribe before the browser opens so the result cannot be missed.
	conn, err := a.dialEvents()
	if err != nil {
		return err
	}
	defer conn.Close()

	req, err := r.StartLogin(ctx, *baseURL)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Open this URL to sign in:\n  %s\n", req.URL)
	if !*noBrowser {
		if err := openBrowser(req.URL); err != nil {
			fmt.Fprintf(a.out, "Could not open a browser: %v\n", err)
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("waiting for login: %w", err)
		}
		switch ev.Kind {
		case events.AuthSuccess:
			fmt.Fprintln(a.out, "Signed in.")
			return nil
		case events.AuthError:
			return fmt.Errorf("login failed: %s", ev.Reason)
		}
	}
}

func (a *cliApp) dialEvents() (*websocket.Conn, error) {
	owner, err := lockfile.ReadOwner(a.cfg.LockPath)
	if err != nil {
		return nil, errNoDaemon
	}
	token, err := control.ReadToken(a.cfg.Control.TokenPath)
	if err != nil {
		return nil, err
	}
	addr := owner.ControlAddr
	if addr == "" {
		addr = a.cfg.Control.Addr
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial((&url.URL{Scheme: "ws", Host: addr, Path: "/events"}).String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	return conn, nil
}

func (a *cliApp) open(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	noBrowser := fs.Bool("no-browser", false, "Do not open the redirect page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: open <hackerai://...>")
	}

	r, err := a.remote()
	if err != nil {
		return err
	}

	out, err := r.Callback(ctx, fs.Arg(0))
	if err != nil {
		var rerr *control.RemoteError
		if errors.As(err, &rerr) && rerr.Code == "unknown-link" {
			fmt.Fprintln(a.out, "Ignored: not a sign-in link.")
			return nil
		}
		return err
	}

	fmt.Fprintln(a.out, "Signed in.")
	if out.OriginSubstituted {
		fmt.Fprintln(a.out, "The requested origin was not allowed; using the default.")
	}
	if !*noBrowser {
		if err := openBrowser(out.RedirectURL); err != nil {
			fmt.Fprintf(a.out, "Continue at %s\n", out.RedirectURL)
		}
	}
	return nil
}

func (a *cliApp) status(ctx context.Context) error {
	var status auth.AuthStatus

	r, err := a.remote()
	switch {
	case err == nil:
		if status, err = r.AuthStatus(ctx); err != nil {
			return err
		}
	case errors.Is(err, errNoDaemon):
		m, err := a.localManager()
		if err != nil {
			return err
		}
		if status, err = m.Status(); err != nil {
			return err
		}
	default:
		return err
	}

	fmt.Fprintf(a.out, "authenticated: %t\n", status.Authenticated)
	if status.ExpiresAt != nil {
		fmt.Fprintf(a.out, "access token expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}

	if r == nil {
		fmt.Fprintln(a.out, "daemon: not running")
		return nil
	}
	h, err := r.SandboxStatus(ctx)
	if err != nil {
		return err
	}
	printHandle(a.out, h)
	return nil
}

func (a *cliApp) refresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	baseURL := fs.String("base-url", "", "Override the auth base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := a.remote()
	if err == nil {
		if _, err := r.Refresh(ctx, "", *baseURL); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Tokens refreshed.")
		return nil
	}
	if !errors.Is(err, errNoDaemon) {
		return err
	}

	m, err := a.localManager()
	if err != nil {
		return err
	}
	cred, ok, err := m.StoredCredential()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("not signed in")
	}
	if _, err := m.Refresh(ctx, cred.RefreshToken, *baseURL); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed.")
	return nil
}

func (a *cliApp) logout(ctx context.Context) error {
	r, err := a.remote()
	switch {
	case err == nil:
		if err := r.Logout(ctx); err != nil {
			return err
		}
	case errors.Is(err, errNoDaemon):
		m, err := a.localManager()
		if err != nil {
			return err
		}
		_ = m.Logout()
	default:
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *cliApp) sandbox(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: sandbox start|stop|status")
	}

	r, err := a.remote()
	if err != nil {
		return err
	}

	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("sandbox start", flag.ContinueOnError)
		var sc sandbox.StartConfig
		fs.StringVar(&sc.Token, "token", "", "Sandbox connection token")
		fs.StringVar(&sc.Name, "name", "", "Sandbox name")
		fs.StringVar(&sc.Image, "image", "", "Container image (default from config)")
		fs.BoolVar(&sc.Dangerous, "dangerous", false, "Run without container isolation")
		fs.BoolVar(&sc.Persist, "persist", false, "Keep the container after stopping")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if sc.Token == "" || sc.Name == "" {
			return errors.New("sandbox start needs -token and -name")
		}

		h, err := r.SandboxStart(ctx, sc)
		if err != nil {
			return err
		}
		printHandle(a.out, h)
		return nil

	case "stop":
		if err := r.SandboxStop(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "sandbox: stopped")
		return nil

	case "status":
		h, err := r.SandboxStatus(ctx)
		if err != nil {
			return err
		}
		printHandle(a.out, h)
		return nil

	default:
		return fmt.Errorf("unknown sandbox command %q", args[0])
	}
}

func (a *cliApp) docker(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docker", flag.ContinueOnError)
	image := fs.String("image", "", "Image to check (default from config)")
	pull := fs.Bool("pull", false, "Pull the image when it is missing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := sandbox.NewDocker(a.cfg.Sandbox.DockerBinary, a.cfg.Sandbox.DefaultImage)
	status := d.Check(ctx)
	if !status.Available {
		fmt.Fprintf(a.out, "docker: unavailable (%s)\n", strings.TrimSpace(status.Error))
		return nil
	}
	fmt.Fprintf(a.out, "docker: %s\n", status.Version)

	name := *image
	if name == "" {
		name = a.cfg.Sandbox.DefaultImage
	}
	exists, err := d.HasImage(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "image %s: present=%t\n", name, exists)

	if !exists && *pull {
		if err := d.PullImage(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "image %s: pulled\n", name)
	}
	return nil
}

func (a *cliApp) events(args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	limit := fs.Int("n", 20, "Number of entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	jr, err := journal.Open(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jr.Close()

	entries, err := jr.Recent(*limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-16s", e.Time.Local().Format(time.DateTime), e.Kind)
		if e.Reason != "" {
			line += "  reason=" + e.Reason
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func printHandle(w io.Writer, h sandbox.Handle) {
	if !h.Running {
		fmt.Fprintln(w, "sandbox: stopped")
		return
	}
	fmt.Fprintf(w, "sandbox: running (pid %d, name %s, image %s)\n", h.PID, h.Name, h.Image)
}
