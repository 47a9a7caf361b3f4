package credstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// KeyringStore keeps the credential as a JSON string in the OS secret
// facility (Keychain, Secret Service, Windows Credential Manager).
type KeyringStore struct {
	service string
	key     string
}

// NewKeyringStore returns a store addressing service/key in the OS keyring.
func NewKeyringStore(service, key string) *KeyringStore {
	return &KeyringStore{service: service, key: key}
}

// Get implements Store.
func (s *KeyringStore) Get() (Credential, bool, error) {
	raw, err := keyring.Get(s.service, s.key)
	if errors.Is(err, keyring.ErrNotFound) {
		logger.Debug("credstore: no stored tokens")
		return Credential{}, false, nil
	}
	if err != nil {
		logger.Error("credstore: keyring read failed: %v", err)
		return Credential{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	cred, err := decode([]byte(raw))
	if err != nil {
		logger.Error("credstore: stored tokens are corrupt: %v", err)
		return Credential{}, false, err
	}
	return cred, true, nil
}

// Set implements Store.
func (s *KeyringStore) Set(cred Credential) error {
	value, err := encode(cred)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, s.key, value); err != nil {
		logger.Error("credstore: keyring write failed: %v", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	logger.Info("credstore: tokens stored")
	return nil
}

// Delete implements Store.
func (s *KeyringStore) Delete() error {
	err := keyring.Delete(s.service, s.key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	logger.Error("credstore: keyring delete failed: %v", err)
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
