package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/codefionn/hackerai-desktop/internal/config"
	"github.com/codefionn/hackerai-desktop/internal/credstore"
	"github.com/codefionn/hackerai-desktop/internal/secrets"
)

const (
	maxPasswordAttempts = 3
	passphraseEnv       = config.EnvPrefix + "PASSPHRASE"
)

// openCredentialStore opens the configured backend, asking for the file
// passphrase when needed.
func openCredentialStore(cfg *config.Config) (credstore.Store, error) {
	if cfg.Credentials.Backend != config.BackendFile {
		return credstore.New(cfg.Credentials, "")
	}

	if pw := os.Getenv(passphraseEnv); pw != "" {
		return checkedFileStore(cfg, pw)
	}

	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		pw, err := promptForPassword("Enter credentials passphrase: ")
		if err != nil {
			return nil, err
		}
		store, err := checkedFileStore(cfg, pw)
		if errors.Is(err, secrets.ErrInvalidPassphrase) {
			fmt.Fprintln(os.Stderr, "Invalid passphrase, try again.")
			continue
		}
		return store, err
	}
	return nil, errors.New("too many invalid passphrase attempts")
}

// checkedFileStore opens the file store and proves the passphrase against an
// existing file.
func checkedFileStore(cfg *config.Config, passphrase string) (credstore.Store, error) {
	store, err := credstore.New(cfg.Credentials, passphrase)
	if err != nil {
		return nil, err
	}
	if _, _, err := store.Get(); err != nil {
		return nil, err
	}
	return store, nil
}

func promptForPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
