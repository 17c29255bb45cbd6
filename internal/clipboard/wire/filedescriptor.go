// Package wire implements the fixed-layout CLIPRDR wire records (spec.md
// §4.8): the 592-byte FILEDESCRIPTORW record used to serialize host file
// selections into a client file-group descriptor.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lunixbochs/struc"
)

var wireOrder = &struc.Options{Order: binary.LittleEndian}

// RecordSize is the fixed on-wire size of a single FILEDESCRIPTORW entry.
const RecordSize = 592

const nameCodeUnits = 260

// windowsEpochOffsetSeconds is the number of seconds between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch.
const windowsEpochOffsetSeconds = 11644473600

// Flags bits selecting which optional FILEDESCRIPTORW fields are valid.
const (
	FlagAttributes    uint32 = 0x00000004
	FlagLastWriteTime uint32 = 0x00000020
	FlagFileSize      uint32 = 0x00000040
)

// FileAttribute bits, a subset relevant to clipboard file transfer.
const (
	AttributeDirectory uint32 = 0x00000010
	AttributeNormal    uint32 = 0x00000080
)

// FileDescriptor is the decoded form of one FILEDESCRIPTORW record.
type FileDescriptor struct {
	Flags         uint32
	Attributes    uint32
	LastWriteTime time.Time
	Size          uint64
	Name          string
}

// wireRecord is the exact 592-byte on-wire layout, struc-tagged field by
// field per spec.md §4.8: flags(4), reserved1(32), attributes(4),
// reserved2(16), last-write-time FILETIME u64(8), size-high(4),
// size-low(4), name as 260 UTF-16 code units.
type wireRecord struct {
	Flags        uint32
	Reserved1    [32]byte
	Attributes   uint32
	Reserved2    [16]byte
	LastWriteLo  uint32
	LastWriteHi  uint32
	SizeHigh     uint32
	SizeLow      uint32
	Name         [nameCodeUnits]uint16
}

// Encode packs one FileDescriptor into its fixed 592-byte wire form.
// Name must not contain '/' or NUL, per spec.md §4.8; such names are
// rejected by the caller before reaching here (selection rejection).
func Encode(fd FileDescriptor) ([]byte, error) {
	units := utf16Encode(fd.Name)
	if len(units) > nameCodeUnits-1 {
		return nil, fmt.Errorf("file descriptor name exceeds %d UTF-16 code units", nameCodeUnits-1)
	}

	rec := wireRecord{
		Flags:      fd.Flags,
		Attributes: fd.Attributes,
	}

	filetime := toFiletime(fd.LastWriteTime)
	rec.LastWriteLo = uint32(filetime & 0xFFFFFFFF)
	rec.LastWriteHi = uint32(filetime >> 32)
	rec.SizeHigh = uint32(fd.Size >> 32)
	rec.SizeLow = uint32(fd.Size & 0xFFFFFFFF)

	copy(rec.Name[:], units)

	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &rec, wireOrder); err != nil {
		return nil, fmt.Errorf("pack file descriptor: %w", err)
	}
	if buf.Len() != RecordSize {
		return nil, fmt.Errorf("packed file descriptor is %d bytes, want %d", buf.Len(), RecordSize)
	}
	return buf.Bytes(), nil
}

// Decode unpacks a 592-byte FILEDESCRIPTORW record.
func Decode(data []byte) (FileDescriptor, error) {
	if len(data) != RecordSize {
		return FileDescriptor{}, fmt.Errorf("file descriptor record is %d bytes, want %d", len(data), RecordSize)
	}

	var rec wireRecord
	if err := struc.UnpackWithOptions(bytes.NewReader(data), &rec, wireOrder); err != nil {
		return FileDescriptor{}, fmt.Errorf("unpack file descriptor: %w", err)
	}

	filetime := uint64(rec.LastWriteHi)<<32 | uint64(rec.LastWriteLo)
	size := uint64(rec.SizeHigh)<<32 | uint64(rec.SizeLow)
	name := utf16Decode(rec.Name[:])

	return FileDescriptor{
		Flags:         rec.Flags,
		Attributes:    rec.Attributes,
		LastWriteTime: fromFiletime(filetime),
		Size:          size,
		Name:          name,
	}, nil
}

func toFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	unixSeconds := t.Unix()
	filetimeSeconds := unixSeconds + windowsEpochOffsetSeconds
	hundredNanos := uint64(filetimeSeconds)*10_000_000 + uint64(t.Nanosecond())/100
	return hundredNanos
}

func fromFiletime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	seconds := int64(ft/10_000_000) - windowsEpochOffsetSeconds
	nanos := int64(ft%10_000_000) * 100
	return time.Unix(seconds, nanos).UTC()
}

func utf16Encode(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

func utf16Decode(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u == 0 {
			break
		}
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			u2 := units[i+1]
			if u2 >= 0xDC00 && u2 <= 0xDFFF {
				r := (rune(u-0xD800) << 10) + rune(u2-0xDC00) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}

// ValidateName rejects names containing '/' or NUL, per spec.md §4.8.
func ValidateName(name string) error {
	for _, r := range name {
		if r == '/' || r == 0 {
			return fmt.Errorf("file descriptor name %q contains an illegal character", name)
		}
	}
	return nil
}
