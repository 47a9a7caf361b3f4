// Package control exposes the session manager and the sandbox supervisor to
// the presentation layer over a loopback HTTP API with an event stream.
package control

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/hackerai-desktop/internal/auth"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/journal"
	"github.com/codefionn/hackerai-desktop/internal/logger"
	"github.com/codefionn/hackerai-desktop/internal/sandbox"
)

// AuthService is the part of auth.Manager the API serves.
type AuthService interface {
	StartLogin(baseURL string) (auth.LoginRequest, error)
	CompleteCallback(raw string) (auth.CallbackOutcome, error)
	Refresh(ctx context.Context, refreshToken, baseURL string) (credstore.Credential, error)
	Logout() error
	Status() (auth.AuthStatus, error)
	StoredCredential() (credstore.Credential, bool, error)
}

// SandboxService is the part of sandbox.Supervisor the API serves.
type SandboxService interface {
	Start(ctx context.Context, sc sandbox.StartConfig) (sandbox.Handle, error)
	Stop() error
	Status() sandbox.Handle
	Output() (stdout, stderr string)
}

// DockerProbe checks the container runtime.
type DockerProbe interface {
	Check(ctx context.Context) sandbox.DockerStatus
	HasImage(ctx context.Context, image string) (bool, error)
	PullImage(ctx context.Context, image string) error
}

// Options configures a Server. Journal and Bus are optional.
type Options struct {
	Addr    string
	Token   string
	Auth    AuthService
	Sandbox SandboxService
	Docker  DockerProbe
	Journal *journal.Journal
	Bus     *events.Bus
	Logger  *logger.Logger
}

// Server serves the control API.
type Server struct {
	addr     string
	token    string
	auth     AuthService
	sandbox  SandboxService
	docker   DockerProbe
	journal  *journal.Journal
	bus      *events.Bus
	hub      *Hub
	router   *httprouter.Router
	log      *logger.Logger
	upgrader websocket.Upgrader

	httpServer  *http.Server
	listener    net.Listener
	unsubscribe func()
}

// NewServer creates a control server. Token must not be empty.
func NewServer(opts Options) (*Server, error) {
	if opts.Token == "" {
		return nil, errors.New("control token is required")
	}
	if opts.Auth == nil || opts.Sandbox == nil {
		return nil, errors.New("auth and sandbox services are required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}

	s := &Server{
		addr:    opts.Addr,
		token:   opts.Token,
		auth:    opts.Auth,
		sandbox: opts.Sandbox,
		docker:  opts.Docker,
		journal: opts.Journal,
		bus:     opts.Bus,
		hub:     NewHub(),
		router:  httprouter.New(),
		log:     log.WithPrefix("control"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameHostOrigin,
		},
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Session
	s.router.POST("/auth/login", s.authed(s.handleLogin))
	s.router.POST("/auth/callback", s.authed(s.handleCallback))
	s.router.POST("/auth/refresh", s.authed(s.handleRefresh))
	s.router.POST("/auth/logout", s.authed(s.handleLogout))
	s.router.GET("/auth/status", s.authed(s.handleAuthStatus))
	s.router.GET("/auth/tokens", s.authed(s.handleTokens))

	// Sandbox
	s.router.POST("/sandbox/start", s.authed(s.handleSandboxStart))
	s.router.POST("/sandbox/stop", s.authed(s.handleSandboxStop))
	s.router.GET("/sandbox/status", s.authed(s.handleSandboxStatus))
	s.router.GET("/sandbox/logs", s.authed(s.handleSandboxLogs))

	// Container runtime
	s.router.GET("/docker", s.authed(s.handleDocker))
	s.router.GET("/docker/image", s.authed(s.handleDockerImage))
	s.router.POST("/docker/pull", s.authed(s.handleDockerPull))

	// History and live events
	s.router.GET("/journal", s.authed(s.handleJournal))
	s.router.GET("/events", s.authed(s.handleEvents))
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.NewSlogHandler(s.log), slog.LevelError),
	}

	s.StartHub()

	go func() {
		s.log.Info("control API listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()
	return nil
}

// StartHub starts the event hub and feeds it from the bus.
func (s *Server) StartHub() {
	go s.hub.Run()
	if s.bus != nil {
		ch, cancel := s.bus.Subscribe(64)
		s.unsubscribe = cancel
		go s.hub.Forward(ch)
	}
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop stops the server and disconnects event clients.
func (s *Server) Stop() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.Stop()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// authed rejects requests without the bearer token. The event stream may
// pass it as ?token= since browsers cannot set headers on websockets.
func (s *Server) authed(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if presented == "" || presented == r.Header.Get("Authorization") {
			presented = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			s.log.Warn("rejected %s %s: invalid token", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token", "")
			return
		}
		h(w, r, ps)
	}
}

// sameHostOrigin accepts non-browser clients and pages served from loopback.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "tauri":
		return u.Hostname() == "localhost"
	case "https":
		return u.Hostname() == "tauri.localhost"
	case "http":
		switch u.Hostname() {
		case "127.0.0.1", "localhost", "::1":
			return true
		}
	}
	return false
}
