// Package clipboard implements the CLIPRDR format-negotiation FSM (spec.md
// §4.8): server->client format publishing, client->server format
// consumption, and clip-data locking for file selections. The FUSE
// filesystem lives in the sibling vfs package; the wire record for file
// descriptors lives in the sibling wire package.
package clipboard

import "github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"

var log = logging.L("clipboard")

// FormatID is an RDP clipboard format id (CF_* / CB_FORMAT_*).
type FormatID uint32

const (
	FormatText         FormatID = 1
	FormatUnicodeText  FormatID = 13
	FormatDIB          FormatID = 8
	FormatTIFF         FormatID = 6
	FormatGIF          FormatID = 0xC003
	FormatJPEG         FormatID = 0xC004
	FormatPNG          FormatID = 0xC005
	FormatHTML         FormatID = 0xC006
	FormatTextURIList  FormatID = 0xC007
)

// FormatEntry is one mime<->RDP format id mapping advertised in a
// FormatList PDU.
type FormatEntry struct {
	Mime string
	ID   FormatID
}

const (
	mimeGnomeCopiedFiles = "x-special/gnome-copied-files"
	mimeTextURIList      = "text/uri-list"
	mimePlainUTF8        = "text/plain;charset=utf-8"
	mimeUTF8String       = "UTF8_STRING"
)

var mimeToFormat = map[string]FormatID{
	"text/plain":         FormatText,
	mimePlainUTF8:        FormatUnicodeText,
	mimeUTF8String:       FormatUnicodeText,
	"image/bmp":          FormatDIB,
	"image/tiff":         FormatTIFF,
	"image/gif":          FormatGIF,
	"image/jpeg":         FormatJPEG,
	"image/png":          FormatPNG,
	"text/html":          FormatHTML,
	mimeTextURIList:      FormatTextURIList,
	mimeGnomeCopiedFiles: FormatTextURIList,
}

// BuildFormatList deduplicates host mime types per spec.md §4.8 and maps
// each surviving mime to its RDP format id.
func BuildFormatList(mimes []string) []FormatEntry {
	set := make(map[string]bool, len(mimes))
	for _, m := range mimes {
		set[m] = true
	}

	if set[mimeTextURIList] {
		delete(set, mimeGnomeCopiedFiles)
	}
	if set[mimeUTF8String] {
		delete(set, mimePlainUTF8)
	}

	entries := make([]FormatEntry, 0, len(set))
	for m := range set {
		id, ok := mimeToFormat[m]
		if !ok {
			continue
		}
		entries = append(entries, FormatEntry{Mime: m, ID: id})
	}
	return entries
}
