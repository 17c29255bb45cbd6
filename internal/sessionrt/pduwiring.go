package sessionrt

import (
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/dispctl"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/input"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
)

// This file completes peer.Callbacks: every per-channel PDU ingress slot
// forwards to the FSM that owns it, per spec.md §2's data-flow diagram.

// OnClipboardClientFormatList implements peer.Callbacks (spec.md §4.8).
func (m *Manager) OnClipboardClientFormatList(formats []peer.ClipboardFormatEntry) {
	if m.clipCon == nil {
		return
	}
	entries := make([]clipboard.FormatEntry, len(formats))
	for i, f := range formats {
		entries[i] = clipboard.FormatEntry{Mime: f.Mime, ID: clipboard.FormatID(f.ID)}
	}
	if err := m.clipCon.OnClientFormatList(entries); err != nil {
		log.Warn("clipboard client format list handling failed", "error", err)
	}
}

// OnClipboardFormatListResponse implements peer.Callbacks.
func (m *Manager) OnClipboardFormatListResponse(ok bool, acceptedMimes []string) {
	if m.clipPub == nil {
		return
	}
	status := clipboard.FormatListResponseOK
	if !ok {
		status = clipboard.FormatListResponseFail
	}
	m.clipPub.OnFormatListResponse(status, acceptedMimes)
}

// OnClipboardFormatDataResponse implements peer.Callbacks.
func (m *Manager) OnClipboardFormatDataResponse(data []byte, err error) {
	if m.clipCon == nil {
		return
	}
	m.clipCon.OnFormatDataResponse(data, err)
}

// OnClipboardLock implements peer.Callbacks.
func (m *Manager) OnClipboardLock(clipDataID uint32) {
	if m.clipData == nil {
		return
	}
	m.clipData.Lock(clipDataID, nil)
}

// OnClipboardUnlock implements peer.Callbacks.
func (m *Manager) OnClipboardUnlock(clipDataID uint32) {
	if m.clipData == nil {
		return
	}
	m.clipData.Unlock(clipDataID)
}

// OnClipboardFileContentsSizeResponse implements peer.Callbacks.
func (m *Manager) OnClipboardFileContentsSizeResponse(streamID uint32, size int64, err error) {
	if m.clipVFS == nil {
		return
	}
	m.clipVFS.OnSizeResult(streamID, size, err)
}

// OnClipboardFileContentsRangeResponse implements peer.Callbacks.
func (m *Manager) OnClipboardFileContentsRangeResponse(streamID uint32, data []byte, err error) {
	if m.clipVFS == nil {
		return
	}
	m.clipVFS.OnRangeResult(streamID, data, err)
}

// OnDisplayMonitorLayout implements peer.Callbacks (spec.md §4.11).
func (m *Manager) OnDisplayMonitorLayout(isVirtual bool, monitors []peer.DisplayMonitor) {
	if m.dispCtl == nil {
		return
	}
	converted := make([]layout.Monitor, len(monitors))
	for i, mon := range monitors {
		converted[i] = layout.Monitor{
			Connector:   mon.Connector,
			PosX:        mon.PosX,
			PosY:        mon.PosY,
			Width:       mon.Width,
			Height:      mon.Height,
			IsPrimary:   mon.IsPrimary,
			PhysicalW:   mon.PhysicalW,
			PhysicalH:   mon.PhysicalH,
			Orientation: layout.Orientation(mon.OrientationDegrees),
			Scale:       mon.ScalePercent,
		}
	}
	m.dispCtl.OnMonitorLayout(dispctl.MonitorLayoutPDU{IsVirtual: isVirtual, Monitors: converted})
}

func toFormatSet(ids []peer.AudioFormatID) map[codec.FormatID]bool {
	set := make(map[codec.FormatID]bool, len(ids))
	for _, id := range ids {
		set[codec.FormatID(id)] = true
	}
	return set
}

// OnAudioPlaybackClientVersion implements peer.Callbacks (RDPSND,
// spec.md §4.9).
func (m *Manager) OnAudioPlaybackClientVersion() {
	if m.playback == nil || !m.audioEnabled {
		return
	}
	if err := m.playback.OnClientVersion(); err != nil {
		log.Warn("rdpsnd client version handling failed", "error", err)
	}
}

// OnAudioPlaybackIncomingData implements peer.Callbacks.
func (m *Manager) OnAudioPlaybackIncomingData() {
	if m.playback == nil || !m.audioEnabled {
		return
	}
	if err := m.playback.OnClientIncomingData(); err != nil {
		log.Warn("rdpsnd incoming-data handling failed", "error", err)
	}
}

// OnAudioPlaybackClientFormats implements peer.Callbacks.
func (m *Manager) OnAudioPlaybackClientFormats(supported []peer.AudioFormatID) {
	if m.playback == nil || !m.audioEnabled {
		return
	}
	if m.audioBackendFor == nil {
		log.Warn("rdpsnd format negotiation skipped: no audio backend resolver wired")
		return
	}
	if err := m.playback.OnClientFormats(toFormatSet(supported), m.audioBackendFor); err != nil {
		log.Warn("rdpsnd format negotiation failed", "error", err)
	}
}

// OnAudioPlaybackFormatChangeAck implements peer.Callbacks.
func (m *Manager) OnAudioPlaybackFormatChangeAck() {
	if m.playback == nil || !m.audioEnabled {
		return
	}
	if err := m.playback.OnFormatChangeAck(); err != nil {
		log.Warn("rdpsnd format-change ack handling failed", "error", err)
	}
}

// OnAudioPlaybackOpenReply implements peer.Callbacks.
func (m *Manager) OnAudioPlaybackOpenReply() {
	if m.playback == nil || !m.audioEnabled {
		return
	}
	if err := m.playback.OnOpenReply(); err != nil {
		log.Warn("rdpsnd open reply handling failed", "error", err)
	}
}

// OnAudioCaptureClientVersion implements peer.Callbacks (AUDIN,
// spec.md §4.10).
func (m *Manager) OnAudioCaptureClientVersion() {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if err := m.capture.OnClientVersion(); err != nil {
		log.Warn("audin client version handling failed", "error", err)
	}
}

// OnAudioCaptureIncomingData implements peer.Callbacks.
func (m *Manager) OnAudioCaptureIncomingData() {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if err := m.capture.OnClientIncomingData(); err != nil {
		log.Warn("audin incoming-data handling failed", "error", err)
	}
}

// OnAudioCaptureClientFormats implements peer.Callbacks.
func (m *Manager) OnAudioCaptureClientFormats(supported []peer.AudioFormatID) {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if m.audioBackendFor == nil {
		log.Warn("audin format negotiation skipped: no audio backend resolver wired")
		return
	}
	if err := m.capture.OnClientFormats(toFormatSet(supported), m.audioBackendFor); err != nil {
		log.Warn("audin format negotiation failed", "error", err)
	}
}

// OnAudioCaptureFormatChangeAck implements peer.Callbacks.
func (m *Manager) OnAudioCaptureFormatChangeAck() {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if err := m.capture.OnFormatChangeAck(); err != nil {
		log.Warn("audin format-change ack handling failed", "error", err)
	}
}

// OnAudioCaptureOpenReply implements peer.Callbacks.
func (m *Manager) OnAudioCaptureOpenReply() {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if err := m.capture.OnOpenReply(); err != nil {
		log.Warn("audin open reply handling failed", "error", err)
	}
}

// OnAudioCaptureDataFrame implements peer.Callbacks.
func (m *Manager) OnAudioCaptureDataFrame(frame []byte, capturedAt time.Time) {
	if m.capture == nil || !m.audioEnabled {
		return
	}
	if err := m.capture.OnDataFrame(frame, capturedAt, time.Now()); err != nil {
		log.Warn("audin data frame handling failed", "error", err)
	}
}

// OnKeyScancode implements peer.Callbacks (RDPEI/fastpath scancode
// input, spec.md §4.7).
func (m *Manager) OnKeyScancode(code uint8, extended, pressed bool) {
	if m.keyboard == nil {
		return
	}
	m.keyboard.HandleScancode(code, extended, pressed)
}

// OnKeyUnicode implements peer.Callbacks.
func (m *Manager) OnKeyUnicode(unit uint16, pressed bool) {
	if m.unicodeKbd == nil {
		return
	}
	m.unicodeKbd.HandleUnicode(unit, pressed)
}

// OnPointerMove implements peer.Callbacks.
func (m *Manager) OnPointerMove(x, y int) {
	if m.pointer == nil {
		return
	}
	m.pointer.Move(x, y)
}

// OnPointerButton implements peer.Callbacks.
func (m *Manager) OnPointerButton(x, y int, btn peer.PointerButton, pressed bool) {
	if m.pointer == nil {
		return
	}
	m.pointer.Button(x, y, input.Button(btn), pressed)
}

// OnPointerWheel implements peer.Callbacks.
func (m *Manager) OnPointerWheel(x, y, rotation int, horizontal bool) {
	if m.pointer == nil {
		return
	}
	m.pointer.Wheel(x, y, rotation, horizontal)
}

// OnTouchFrame implements peer.Callbacks, applying the layout manager's
// position transform to every contact before handing the batch to the
// touch state machine.
func (m *Manager) OnTouchFrame(contacts []peer.TouchContact) {
	if m.touch == nil {
		return
	}
	frames := make([]input.ContactFrame, len(contacts))
	for i, c := range contacts {
		x, y := c.X, c.Y
		outOfSurfaces := false
		if m.layoutMgr != nil {
			if lx, ly, ok := m.layoutMgr.SimplePositionTransform(c.X, c.Y); ok {
				x, y = lx, ly
			} else {
				outOfSurfaces = true
			}
		}
		frames[i] = input.ContactFrame{
			ContactID:                c.ContactID,
			Action:                   input.Action(c.Action),
			InRange:                  c.InRange,
			InContact:                c.InContact,
			Canceled:                 c.Canceled,
			X:                        x,
			Y:                        y,
			TransformedOutOfSurfaces: outOfSurfaces,
		}
	}
	if err := m.touch.ProcessFrame(frames); err != nil {
		log.Warn("touch frame handling failed", "error", err)
	}
}
