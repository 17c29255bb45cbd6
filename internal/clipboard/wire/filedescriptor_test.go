package wire

import (
	"testing"
	"time"
)

func TestEncodeProducesFixedSize(t *testing.T) {
	data, err := Encode(FileDescriptor{
		Flags:         FlagFileSize | FlagLastWriteTime,
		Attributes:    AttributeNormal,
		LastWriteTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Size:          4096,
		Name:          "report.txt",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != RecordSize {
		t.Fatalf("len(data) = %d, want %d", len(data), RecordSize)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := FileDescriptor{
		Flags:         FlagFileSize,
		Attributes:    AttributeNormal,
		LastWriteTime: time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC),
		Size:          123456,
		Name:          "photo.jpg",
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Name != original.Name {
		t.Fatalf("Name = %q, want %q", decoded.Name, original.Name)
	}
	if decoded.Size != original.Size {
		t.Fatalf("Size = %d, want %d", decoded.Size, original.Size)
	}
	if !decoded.LastWriteTime.Equal(original.LastWriteTime) {
		t.Fatalf("LastWriteTime = %v, want %v", decoded.LastWriteTime, original.LastWriteTime)
	}
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	name := make([]byte, 300)
	for i := range name {
		name[i] = 'a'
	}
	_, err := Encode(FileDescriptor{Name: string(name)})
	if err == nil {
		t.Fatal("expected error for oversized name")
	}
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	_, err := Decode(make([]byte, 100))
	if err == nil {
		t.Fatal("expected error for wrong-sized record")
	}
}

func TestValidateNameRejectsSlashAndNUL(t *testing.T) {
	if err := ValidateName("a/b"); err == nil {
		t.Fatal("expected error for name containing '/'")
	}
	if err := ValidateName("a\x00b"); err == nil {
		t.Fatal("expected error for name containing NUL")
	}
	if err := ValidateName("valid.txt"); err != nil {
		t.Fatalf("unexpected error for valid name: %v", err)
	}
}

func TestUnicodeNameRoundTrip(t *testing.T) {
	original := FileDescriptor{Name: "éèê.txt"}
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Name != original.Name {
		t.Fatalf("Name = %q, want %q", decoded.Name, original.Name)
	}
}
