package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codefionn/hackerai-desktop/internal/credstore"
)

const maxErrorBody = 4096

// Refresh exchanges refreshToken for a new credential and stores it. There is
// no retry; concurrent calls each hit the server.
func (m *Manager) Refresh(ctx context.Context, refreshToken, baseURL string) (credstore.Credential, error) {
	url := m.base(baseURL) + "/refresh"
	m.log.Info("refreshing access token")

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Error("token refresh request failed: %v", err)
		return credstore.Credential{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		m.log.Error("token refresh failed with status %d", resp.StatusCode)
		return credstore.Credential{}, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var cred credstore.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		m.log.Error("failed to parse refresh response: %v", err)
		return credstore.Credential{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !cred.Complete() {
		return credstore.Credential{}, fmt.Errorf("%w: response is missing tokens", ErrParse)
	}

	if err := m.store.Set(cred); err != nil {
		m.log.Error("failed to store refreshed tokens: %v", err)
		return credstore.Credential{}, err
	}

	m.log.Info("tokens refreshed and stored")
	return cred, nil
}
