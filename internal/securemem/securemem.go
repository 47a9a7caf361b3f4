// Package securemem keeps short-lived secrets, such as login state values, in
// memguard-protected memory so they stay out of swap and core dumps.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// String is a secret held in a locked buffer.
type String struct {
	buf *memguard.LockedBuffer
}

// NewString copies plaintext into locked memory.
func NewString(plaintext string) *String {
	return &String{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// String returns a copy of the plaintext in ordinary memory.
func (s *String) String() string {
	if !s.alive() {
		return ""
	}
	return string(s.buf.Bytes())
}

// Len returns the secret's length in bytes.
func (s *String) Len() int {
	if !s.alive() {
		return 0
	}
	return s.buf.Size()
}

// Equal compares the secret against other in constant time.
func (s *String) Equal(other string) bool {
	if !s.alive() {
		return false
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// Destroy wipes the secret. Further calls are no-ops.
func (s *String) Destroy() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Destroy()
	s.buf = nil
}

func (s *String) alive() bool {
	return s != nil && s.buf != nil && s.buf.IsAlive()
}

// Init installs memguard's interrupt handler, which wipes locked memory on
// SIGINT before exiting.
func Init() {
	memguard.CatchInterrupt()
}

// Purge destroys every locked buffer. Call it on shutdown.
func Purge() {
	memguard.Purge()
}
