// Package secrets seals small payloads with a passphrase so they can be
// written to disk when no platform secret facility is available.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	envelopeVersion = 1

	saltSize = 16
	keySize  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrInvalidPassphrase is returned when the passphrase cannot open the envelope.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	// ErrMalformedEnvelope indicates the sealed data is structurally broken.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Envelope is the on-disk form of a sealed payload: AES-256-GCM with a key
// derived from the passphrase by scrypt.
type Envelope struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Seal encrypts plaintext under passphrase.
func Seal(plaintext []byte, passphrase string) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return &Envelope{
		Version:    envelopeVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, nil)),
	}, nil
}

// Open decrypts an envelope produced by Seal.
func Open(env *Envelope, passphrase string) ([]byte, error) {
	if env == nil {
		return nil, ErrMalformedEnvelope
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEnvelope, env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedEnvelope, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrMalformedEnvelope, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce size %d", ErrMalformedEnvelope, len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassphrase, err)
	}
	return plaintext, nil
}

// Marshal encodes an envelope as JSON.
func Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrMalformedEnvelope
	}
	return json.MarshalIndent(env, "", "  ")
}

// Unmarshal parses JSON into an envelope and checks that every field is set.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Version == 0 || env.Salt == "" || env.Nonce == "" || env.Ciphertext == "" {
		return nil, ErrMalformedEnvelope
	}
	return &env, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return aead, nil
}
