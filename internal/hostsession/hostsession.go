// Package hostsession defines the host session contract (spec.md §6): the
// boundary between a peer session and the embedding desktop process that
// actually owns the compositor, input device, and clipboard. It also
// ships one concrete adapter, DBusAdapter, that drives a GNOME-style
// RemoteDesktop/ScreenCast portal over D-Bus.
package hostsession

import (
	"fmt"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
)

// CursorMode selects how the host reports pointer motion for a capture
// stream, per the portal's ScreenCast cursor_mode option.
type CursorMode int

const (
	CursorModeHidden CursorMode = iota
	CursorModeEmbedded
	CursorModeMetadata
)

// Session is the host session contract exposed to the embedding process
// (spec.md §6). A session runtime holds exactly one of these and never
// talks to the compositor, PipeWire, or the clipboard backend directly.
type Session interface {
	Start() error
	Stop() error

	SubmitMonitorConfig(cfg *layout.MonitorConfig) error
	RecordVirtual(streamID uint32, mode CursorMode) error
	RecordMonitor(streamID uint32, connector string, mode CursorMode) error

	SubmitKeyByKeycode(keycode uint32, pressed bool) error
	SubmitKeyByKeysym(keysym uint32, pressed bool) error
	SubmitPointerAbsolute(x, y int) error
	SubmitPointerButton(button int, pressed bool) error
	SubmitPointerAxis(x, y, steps int, horizontal bool) error
	SubmitTouchDown(contactID int, x, y int) error
	SubmitTouchMotion(contactID int, x, y int) error
	SubmitTouchUp(contactID int) error
	SubmitTouchCancel(contactID int) error
	SubmitTouchDeviceFrame() error
	SynchronizeCapsNumLock(caps, num bool) error

	UpdateClientMimeTypeList(mimes []string) error
	RequestClientContentForMimeType(mime string) error
	SubmitRequestedServerContent(data []byte) error
	UpdateServerMimeTypeList(mimes []string) error
	SubmitClientContentForMimeType(mime string, data []byte) error
}

// layout.Host adapter: a Session additionally satisfies layout.Host by
// mapping CreateStream/UpdateStreamParams/DestroyStream onto
// RecordVirtual/RecordMonitor plus a stream allocator. StreamHost wraps a
// Session to provide that mapping.
type StreamHost struct {
	session   Session
	mode      CursorMode
	nextID    uint32
	liveCount int
}

func NewStreamHost(session Session, mode CursorMode) *StreamHost {
	return &StreamHost{session: session, mode: mode}
}

func (h *StreamHost) CreateStream(m layout.Monitor) (uint32, error) {
	h.nextID++
	id := h.nextID
	var err error
	if m.Connector == "" {
		err = h.session.RecordVirtual(id, h.mode)
	} else {
		err = h.session.RecordMonitor(id, m.Connector, h.mode)
	}
	if err != nil {
		return 0, fmt.Errorf("create capture stream: %w", err)
	}
	h.liveCount++
	return id, nil
}

func (h *StreamHost) UpdateStreamParams(streamID uint32, m layout.Monitor) error {
	if m.Connector == "" {
		return h.session.RecordVirtual(streamID, h.mode)
	}
	return h.session.RecordMonitor(streamID, m.Connector, h.mode)
}

func (h *StreamHost) DestroyStream(streamID uint32) error {
	if h.liveCount > 0 {
		h.liveCount--
	}
	return nil
}
