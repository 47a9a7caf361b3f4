// Package auth drives the desktop login session: it opens the browser login,
// accepts the deep-link callback, keeps the token pair in the credential
// store, refreshes it and logs out.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/deeplink"
	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// LoginRequest is what the presentation layer needs to open the browser.
type LoginRequest struct {
	State string `json:"state"`
	URL   string `json:"url"`
}

// CallbackOutcome describes an accepted callback.
type CallbackOutcome struct {
	Credential        credstore.Credential `json:"-"`
	RedirectURL       string               `json:"redirect_url"`
	OriginSubstituted bool                 `json:"origin_substituted"`
}

// AuthStatus reports whether a credential is stored.
type AuthStatus struct {
	Authenticated bool       `json:"authenticated"`
	HasTokens     bool       `json:"has_tokens"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Options holds the manager's collaborators. Store is required.
type Options struct {
	Config     config.AuthConfig
	Store      credstore.Store
	Events     events.Publisher
	HTTPClient *http.Client
	Logger     *logger.Logger
	Now        func() time.Time
}

// Manager owns the session. All methods are safe for concurrent use and may
// block on storage or network, so call them off any UI loop.
type Manager struct {
	cfg       config.AuthConfig
	store     credstore.Store
	events    events.Publisher
	client    *http.Client
	validator *deeplink.Validator
	states    *stateRegistry
	log       *logger.Logger
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// NewManager builds a manager from opts.
func NewManager(opts Options) *Manager {
	pub := opts.Events
	if pub == nil {
		pub = nopPublisher{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}

	return &Manager{
		cfg:    opts.Config,
		store:  opts.Store,
		events: pub,
		client: client,
		validator: deeplink.NewValidator(deeplink.Config{
			Scheme:        opts.Config.Scheme,
			DefaultOrigin: opts.Config.DefaultOrigin,
			AllowedHosts:  opts.Config.AllowedOriginHosts,
		}),
		states: newStateRegistry(opts.Config.LoginStateTTL(), opts.Now),
		log:    log.WithPrefix("auth"),
	}
}

// StartLogin issues a fresh state and returns the browser login URL. An
// empty baseURL selects the configured one.
func (m *Manager) StartLogin(baseURL string) (LoginRequest, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return LoginRequest{}, err
	}
	state := id.String()
	m.states.Save(state)

	m.log.Info("initiating login with state %s", logger.Redact(state))
	return LoginRequest{
		State: state,
		URL:   m.base(baseURL) + "/login?state=" + state,
	}, nil
}

// CompleteCallback handles a deep link delivered by the OS. Links that are
// not auth callbacks return ErrUnknownLink and emit nothing.
func (m *Manager) CompleteCallback(raw string) (CallbackOutcome, error) {
	res := m.validator.Validate(raw)

	switch res.Kind {
	case deeplink.KindUnknown:
		return CallbackOutcome{}, ErrUnknownLink
	case deeplink.KindAuthError:
		return CallbackOutcome{}, m.reject(res.Reason)
	}

	cb := res.Callback
	if cb.OriginSubstituted {
		m.log.Warn("rejected callback origin %q, using %s", cb.RejectedOrigin, cb.Origin)
	}

	stateOK := m.states.Consume(cb.State)
	if m.cfg.RequireState && !stateOK {
		return CallbackOutcome{}, m.reject(ReasonStateMismatch)
	}
	if cb.RefreshToken == "" {
		return CallbackOutcome{}, m.reject(ReasonMissingTokens)
	}

	cred := credstore.Credential{AccessToken: cb.Token, RefreshToken: cb.RefreshToken}
	if err := m.store.Set(cred); err != nil {
		m.log.Error("failed to store tokens: %v", err)
		m.events.Publish(events.Event{Kind: events.AuthError, Reason: ReasonStorage})
		return CallbackOutcome{}, err
	}

	m.log.Info("login completed, access token %s", logger.Redact(cred.AccessToken))
	m.events.Publish(events.Event{
		Kind:       events.AuthSuccess,
		Credential: &events.Credential{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken},
	})

	return CallbackOutcome{
		Credential:        cred,
		RedirectURL:       deeplink.RedirectURL(cb.Origin, cb.Token),
		OriginSubstituted: cb.OriginSubstituted,
	}, nil
}

// Logout deletes the stored credential and forgets pending login states. It
// always succeeds; storage failures are only logged.
func (m *Manager) Logout() error {
	m.states.Clear()
	if err := m.store.Delete(); err != nil {
		m.log.Warn("failed to delete tokens: %v", err)
		return nil
	}
	m.log.Info("logged out, tokens cleared")
	return nil
}

// StoredCredential returns the stored credential, if any.
func (m *Manager) StoredCredential() (credstore.Credential, bool, error) {
	return m.store.Get()
}

// Status reports whether a credential is stored. ExpiresAt is filled when the
// access token carries an expiry, but does not affect Authenticated.
func (m *Manager) Status() (AuthStatus, error) {
	cred, ok, err := m.store.Get()
	if err != nil {
		return AuthStatus{}, err
	}
	status := AuthStatus{Authenticated: ok, HasTokens: ok}
	if ok {
		status.ExpiresAt = tokenExpiry(cred.AccessToken)
	}
	return status, nil
}

// PendingLogins returns the number of issued, unconsumed login states.
func (m *Manager) PendingLogins() int {
	return m.states.Len()
}

func (m *Manager) reject(reason string) error {
	m.log.Warn("auth callback rejected: %s", reason)
	m.events.Publish(events.Event{Kind: events.AuthError, Reason: reason})
	return &ValidationError{Reason: reason}
}

func (m *Manager) base(override string) string {
	base := strings.TrimSpace(override)
	if base == "" {
		base = m.cfg.BaseURL
	}
	if base == "" {
		base = config.DefaultConfig().Auth.BaseURL
	}
	return strings.TrimRight(base, "/")
}

// IsValidation reports whether err is a rejected callback and returns its reason.
func IsValidation(err error) (string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}
