package credfile

import (
	"os"
	"testing"
)

func TestWriteCreatesFileWithCredentials(t *testing.T) {
	w := New()
	path, err := w.Write("alice", "hunter2")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "user\nalice\nhunter2\n"
	if string(data) != want {
		t.Fatalf("file contents = %q, want %q", data, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestRemoveUnlinksFile(t *testing.T) {
	w := New()
	path, err := w.Write("bob", "secret")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := w.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still exists after Remove: err=%v", err)
	}
}

func TestRemoveWithoutWriteIsNoop(t *testing.T) {
	w := New()
	if err := w.Remove(); err != nil {
		t.Fatalf("Remove without Write: %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	w := New()
	if _, err := w.Write("carol", "pw"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Remove(); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := w.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
