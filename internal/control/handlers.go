package control

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/hackerai-desktop/internal/auth"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/sandbox"
)

const maxBodySize = 64 * 1024

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg, reason string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Reason: reason})
}

// writeFailure maps core errors to status codes.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var (
		verr *auth.ValidationError
		herr *auth.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "callback-rejected", err.Error(), verr.Reason)
	case errors.Is(err, auth.ErrUnknownLink):
		writeError(w, http.StatusBadRequest, "unknown-link", err.Error(), "")
	case errors.As(err, &herr):
		writeError(w, http.StatusBadGateway, "upstream-status", err.Error(), strconv.Itoa(herr.Status))
	case errors.Is(err, auth.ErrNetwork):
		writeError(w, http.StatusBadGateway, "network", err.Error(), "")
	case errors.Is(err, auth.ErrParse):
		writeError(w, http.StatusBadGateway, "upstream-parse", err.Error(), "")
	case errors.Is(err, credstore.ErrStorage):
		writeError(w, http.StatusServiceUnavailable, "storage", err.Error(), "")
	case errors.Is(err, credstore.ErrParse):
		writeError(w, http.StatusInternalServerError, "storage-parse", err.Error(), "")
	case errors.Is(err, sandbox.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already-running", err.Error(), "")
	case errors.Is(err, sandbox.ErrProcess):
		writeError(w, http.StatusInternalServerError, "process", err.Error(), "")
	default:
		s.log.Error("unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), "")
	}
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "bad-request", "invalid JSON body: "+err.Error(), "")
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		BaseURL string `json:"base_url"`
	}
	if !decode(w, r, &req) {
		return
	}

	login, err := s.auth.StartLogin(req.BaseURL)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, login)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "bad-request", "url is required", "")
		return
	}

	out, err := s.auth.CompleteCallback(req.URL)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
		BaseURL      string `json:"base_url"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		cred, ok, err := s.auth.StoredCredential()
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusConflict, "not-authenticated", "no stored refresh token", "")
			return
		}
		req.RefreshToken = cred.RefreshToken
	}

	cred, err := s.auth.Refresh(r.Context(), req.RefreshToken, req.BaseURL)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_ = s.auth.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status, err := s.auth.Status()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cred, ok, err := s.auth.StoredCredential()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (s *Server) handleSandboxStart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req sandbox.StartConfig
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "bad-request", "token and name are required", "")
		return
	}

	h, err := s.sandbox.Start(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleSandboxStop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_ = s.sandbox.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSandboxStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.sandbox.Status())
}

func (s *Server) handleSandboxLogs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stdout, stderr := s.sandbox.Output()
	writeJSON(w, http.StatusOK, map[string]string{"stdout": stdout, "stderr": stderr})
}

func (s *Server) handleDocker(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.docker == nil {
		writeError(w, http.StatusNotFound, "unavailable", "docker probing is disabled", "")
		return
	}
	writeJSON(w, http.StatusOK, s.docker.Check(r.Context()))
}

func (s *Server) handleDockerImage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.docker == nil {
		writeError(w, http.StatusNotFound, "unavailable", "docker probing is disabled", "")
		return
	}
	image := r.URL.Query().Get("image")
	exists, err := s.docker.HasImage(r.Context(), image)
	if err != nil {
		writeError(w, http.StatusBadGateway, "docker", err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"image": image, "exists": exists})
}

func (s *Server) handleDockerPull(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.docker == nil {
		writeError(w, http.StatusNotFound, "unavailable", "docker probing is disabled", "")
		return
	}
	var req struct {
		Image string `json:"image"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.docker.PullImage(r.Context(), req.Image); err != nil {
		writeError(w, http.StatusBadGateway, "docker", err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "unavailable", "journal is disabled", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.journal.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal", err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade event stream: %v", err)
		return
	}

	client := NewClient(s.hub, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
