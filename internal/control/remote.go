package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/auth"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/sandbox"
)

// RemoteError is a non-2xx answer from the daemon.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Reason  string
}

func (e *RemoteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Reason)
	}
	return e.Message
}

// Remote talks to a running daemon's control API.
type Remote struct {
	base   string
	token  string
	client *http.Client
}

// NewRemote returns a client for the daemon listening on addr.
func NewRemote(addr, token string) *Remote {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Remote{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Do sends a request and decodes the JSON answer into out, if given.
func (r *Remote) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &RemoteError{Status: resp.StatusCode, Code: e.Code, Message: e.Error, Reason: e.Reason}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartLogin asks the daemon for a login URL.
func (r *Remote) StartLogin(ctx context.Context, baseURL string) (auth.LoginRequest, error) {
	var out auth.LoginRequest
	err := r.Do(ctx, http.MethodPost, "/auth/login", map[string]string{"base_url": baseURL}, &out)
	return out, err
}

// Callback forwards a deep link to the daemon.
func (r *Remote) Callback(ctx context.Context, link string) (auth.CallbackOutcome, error) {
	var out auth.CallbackOutcome
	err := r.Do(ctx, http.MethodPost, "/auth/callback", map[string]string{"url": link}, &out)
	return out, err
}

// Refresh refreshes the stored credential, or refreshToken when given.
func (r *Remote) Refresh(ctx context.Context, refreshToken, baseURL string) (credstore.Credential, error) {
	var out credstore.Credential
	err := r.Do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken, "base_url": baseURL}, &out)
	return out, err
}

// Logout clears the session.
func (r *Remote) Logout(ctx context.Context) error {
	return r.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// AuthStatus returns the session status.
func (r *Remote) AuthStatus(ctx context.Context) (auth.AuthStatus, error) {
	var out auth.AuthStatus
	err := r.Do(ctx, http.MethodGet, "/auth/status", nil, &out)
	return out, err
}

// SandboxStart starts the sandbox.
func (r *Remote) SandboxStart(ctx context.Context, sc sandbox.StartConfig) (sandbox.Handle, error) {
	var out sandbox.Handle
	err := r.Do(ctx, http.MethodPost, "/sandbox/start", sc, &out)
	return out, err
}

// SandboxStop stops the sandbox.
func (r *Remote) SandboxStop(ctx context.Context) error {
	return r.Do(ctx, http.MethodPost, "/sandbox/stop", nil, nil)
}

// SandboxStatus returns the sandbox handle.
func (r *Remote) SandboxStatus(ctx context.Context) (sandbox.Handle, error) {
	var out sandbox.Handle
	err := r.Do(ctx, http.MethodGet, "/sandbox/status", nil, &out)
	return out, err
}

// Docker returns the container runtime status.
func (r *Remote) Docker(ctx context.Context) (sandbox.DockerStatus, error) {
	var out sandbox.DockerStatus
	err := r.Do(ctx, http.MethodGet, "/docker", nil, &out)
	return out, err
}

// HasImage reports whether image is present on the daemon's host.
func (r *Remote) HasImage(ctx context.Context, image string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := r.Do(ctx, http.MethodGet, "/docker/image?image="+url.QueryEscape(image), nil, &out)
	return out.Exists, err
}
