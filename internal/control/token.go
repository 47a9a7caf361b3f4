package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const authTokenLength = 32

// LoadOrCreateToken returns the bearer token stored at path, creating one
// readable only by the current user when missing.
func LoadOrCreateToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read control token: %w", err)
	}

	token, err := generateID(authTokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate control token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write control token: %w", err)
	}
	return token, nil
}

// ReadToken returns the bearer token stored at path.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read control token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("control token at %s is empty", path)
	}
	return token, nil
}
