package secmem

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("secmem")

// SecureString holds sensitive data with best-effort memory zeroing.
// Go's GC may copy the backing array, so this is defense-in-depth, not a
// guarantee. Call Zero() in shutdown paths to overwrite the token in place.
// Every formatting/marshaling path redacts the value; Reveal is the only
// way to get the plaintext back out.
type SecureString struct {
	mu         sync.Mutex
	data       []byte
	warnedOnce atomic.Bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// Reveal returns the plaintext value, or "" once Zero has been called.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		if !s.warnedOnce.Swap(true) {
			log.Warn("reveal requested after credential was zeroed")
		}
		return ""
	}
	return string(s.data)
}

// IsZeroed reports whether Zero has already run.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// String implements fmt.Stringer with a redacted value.
func (s *SecureString) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer with a redacted value.
func (s *SecureString) GoString() string { return "[REDACTED]" }

// Format implements fmt.Formatter so every verb (%s, %v, %+v, %#v, %q)
// redacts, not just the ones %v would otherwise dispatch to GoString/String.
func (s *SecureString) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

// MarshalJSON redacts the value rather than serializing the secret.
func (s *SecureString) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText redacts the value rather than serializing the secret.
func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// UnmarshalJSON always fails: a SecureString is never populated from
// untrusted config/wire input, only constructed via NewSecureString.
func (s *SecureString) UnmarshalJSON(data []byte) error {
	return fmt.Errorf("secmem: SecureString cannot be unmarshaled")
}

// Zero overwrites the backing byte slice with zeros.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}
