// Package credstore persists the single access/refresh token pair of the
// desktop session. At most one credential exists at a time; writes replace
// whatever was stored before.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codefionn/hackerai-desktop/internal/config"
)

var (
	// ErrStorage is returned when the underlying secret facility fails.
	ErrStorage = errors.New("credential storage error")
	// ErrParse is returned when a stored value cannot be decoded.
	ErrParse = errors.New("credential parse error")
)

// Credential is the token pair of an authenticated session.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both tokens are set.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Store is a single-slot credential store. Every method is a blocking round
// trip to the backing facility.
type Store interface {
	// Get returns the stored credential. ok is false when nothing is stored.
	Get() (cred Credential, ok bool, err error)
	// Set replaces the stored credential.
	Set(cred Credential) error
	// Delete removes the credential. Deleting an absent credential succeeds.
	Delete() error
}

// New builds the store selected by cfg. passphrase is only used by the file
// backend.
func New(cfg config.CredentialsConfig, passphrase string) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendKeyring:
		return NewKeyringStore(cfg.Service, cfg.Key), nil
	case config.BackendFile:
		return NewFileStore(cfg.FilePath, passphrase)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrStorage, cfg.Backend)
	}
}

func encode(cred Credential) (string, error) {
	data, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	return string(data), nil
}

func decode(raw []byte) (Credential, error) {
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return cred, nil
}
