package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codefionn/hackerai-desktop/internal/logger"
	"github.com/codefionn/hackerai-desktop/internal/secrets"
)

// FileStore keeps the credential in a passphrase-sealed file, for hosts that
// have no usable secret service.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

// NewFileStore returns a store sealing the credential at path.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file backend needs a path", ErrStorage)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: file backend needs a passphrase", ErrStorage)
	}
	return &FileStore{path: path, passphrase: passphrase}, nil
}

// Get implements Store.
func (s *FileStore) Get() (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	env, err := secrets.Unmarshal(data)
	if err != nil {
		return Credential{}, false, fmt.Errorf("%w: %w", ErrParse, err)
	}
	plain, err := secrets.Open(env, s.passphrase)
	switch {
	case errors.Is(err, secrets.ErrInvalidPassphrase):
		return Credential{}, false, fmt.Errorf("%w: %w", ErrStorage, err)
	case err != nil:
		return Credential{}, false, fmt.Errorf("%w: %w", ErrParse, err)
	}

	cred, err := decode(plain)
	if err != nil {
		return Credential{}, false, err
	}
	return cred, true, nil
}

// Set implements Store. The file is replaced atomically.
func (s *FileStore) Set(cred Credential) error {
	value, err := encode(cred)
	if err != nil {
		return err
	}

	env, err := secrets.Seal([]byte(value), s.passphrase)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	data, err := secrets.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		logger.Error("credstore: writing %s failed: %v", s.path, err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	logger.Info("credstore: tokens stored in %s", s.path)
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
