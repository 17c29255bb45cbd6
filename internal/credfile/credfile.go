// Package credfile writes the SAM credential scratch file spec.md §6
// describes: a mkstemp-style path created empty, populated with the
// session's username/password, and unlinked again once the peer
// library no longer needs it.
package credfile

import (
	"fmt"
	"os"
	"sync"
)

// Writer creates and removes one session's credential scratch file.
type Writer struct {
	mu   sync.Mutex
	path string
}

func New() *Writer {
	return &Writer{}
}

// Write creates the scratch file and writes the user+username+password
// triplet, returning its path so the caller can hand it to the peer
// library's settings key.
func (w *Writer) Write(username, password string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.CreateTemp("", "grd-rdp-sam-*")
	if err != nil {
		return "", fmt.Errorf("create SAM credential scratch file: %w", err)
	}
	defer f.Close()

	if err := f.Chmod(0600); err != nil {
		return "", fmt.Errorf("chmod SAM credential scratch file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "user\n%s\n%s\n", username, password); err != nil {
		return "", fmt.Errorf("write SAM credential scratch file: %w", err)
	}

	w.path = f.Name()
	return w.path, nil
}

// Remove unlinks the scratch file, per spec.md §6's "unlinked on
// post_connect". Safe to call even if Write was never called, and
// idempotent.
func (w *Writer) Remove() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return nil
	}
	err := os.Remove(w.path)
	w.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink SAM credential scratch file: %w", err)
	}
	return nil
}
