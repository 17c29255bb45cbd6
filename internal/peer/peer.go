// Package peer declares the narrow contract the session runtime expects
// from the RDP wire peer library: a connection that dispatches protocol
// callbacks and accepts structured PDUs to send back. The actual PDU
// encoding/decoding is an external collaborator (spec Non-goals) — this
// package only describes the shape rdp-sessiond drives it through, plus
// an in-memory fake used by tests.
package peer

import (
	"context"
	"time"
)

// Capabilities is the subset of the client's negotiated capability set the
// session runtime inspects during the capability gate.
type Capabilities struct {
	SupportsGraphicsPipeline bool
	ColorDepth               int
	DesktopResize            bool
	PointerCacheSize         int
	MultifragMaxRequestSize  uint32
	SupportsRFX              bool
	SupportsNSC              bool
	IsIOSOrAndroid           bool
	SupportsAutodetect       bool

	// MonitorData, when non-nil, came from a TS_UD_CS_MONITOR block.
	MonitorData *ClientMonitorData

	DesktopWidth  int
	DesktopHeight int
}

// ClientMonitorData mirrors the raw TS_UD_CS_MONITOR block before it is
// validated into a layout.MonitorConfig.
type ClientMonitorData struct {
	Monitors []ClientMonitorEntry
}

type ClientMonitorEntry struct {
	Left, Top, Right, Bottom int
	IsPrimary                bool
}

// ErrorInfoCode is the wire-level error-info code reported to the client
// at disconnect, per spec.md §7.
type ErrorInfoCode int

const (
	ErrorInfoNone ErrorInfoCode = iota
	ErrorInfoBadCaps
	ErrorInfoBadMonitorData
	ErrorInfoCloseStackOnDriverFailure
	ErrorInfoGraphicsSubsystemFailed
)

func (c ErrorInfoCode) String() string {
	switch c {
	case ErrorInfoBadCaps:
		return "BadCaps"
	case ErrorInfoBadMonitorData:
		return "BadMonitorData"
	case ErrorInfoCloseStackOnDriverFailure:
		return "CloseStackOnDriverFailure"
	case ErrorInfoGraphicsSubsystemFailed:
		return "GraphicsSubsystemFailed"
	default:
		return "None"
	}
}

// ClipboardFormatEntry mirrors one mime<->format-id pairing advertised in
// a CLIPRDR ClientFormatList PDU.
type ClipboardFormatEntry struct {
	Mime string
	ID   uint32
}

// DisplayMonitor mirrors one monitor entry in a DISP MonitorLayoutPDU,
// prior to translation into a layout.Monitor.
type DisplayMonitor struct {
	Connector             string
	PosX, PosY            int
	Width, Height         int
	IsPrimary             bool
	PhysicalW, PhysicalH  int
	OrientationDegrees    int
	ScalePercent          int
}

// AudioFormatID mirrors one RDPSND/AUDIN negotiable format id without
// importing the audio codec package into peer.
type AudioFormatID int

// PointerButton identifies a pointer button on an RDPEI/fastpath input
// PDU, per spec.md §4.7's LEFT/RIGHT/MIDDLE/SIDE/EXTRA mapping.
type PointerButton int

const (
	PointerButtonLeft PointerButton = iota
	PointerButtonRight
	PointerButtonMiddle
	PointerButtonSide
	PointerButtonExtra
)

// TouchAction is the RDPEI touch-frame action for one contact.
type TouchAction int

const (
	TouchActionDown TouchAction = iota
	TouchActionUpdate
	TouchActionUp
)

// TouchContact mirrors one RDPEI touch-frame contact sample.
type TouchContact struct {
	ContactID int
	Action    TouchAction
	InRange   bool
	InContact bool
	Canceled  bool
	X, Y      int
}

// Connection is the per-client handle the session runtime drives. The peer
// library implementation owns the socket and wire codec; rdp-sessiond only
// calls these methods and registers callbacks through Callbacks.
type Connection interface {
	// Initialize starts the peer state machine for this connection.
	Initialize(ctx context.Context) error
	// CheckFileDescriptor pumps one iteration of the peer's internal event
	// processing. Returns false once the transport is gone.
	CheckFileDescriptor(ctx context.Context) (bool, error)
	// Close releases peer-owned resources without notifying the client.
	Close() error
	// Disconnect sends a disconnect PDU carrying the given error-info code,
	// then closes the transport.
	Disconnect(code ErrorInfoCode) error

	// IsChannelJoined reports whether a DVC by name has been joined by the
	// client on DRDYNVC.
	IsChannelJoined(channelName string) bool
	// DrdynvcReady reports whether the DRDYNVC multiplexer has reached the
	// ready state (required before any maybe_init call fires).
	DrdynvcReady() bool

	// SendPDU hands a fully encoded PDU to the peer library for
	// transmission on the named channel ("" for the main I/O channel).
	SendPDU(channelName string, pdu any) error
}

// Callbacks is the set of event slots the peer library invokes. A session
// runtime instance implements this and registers itself with the peer
// library adapter at connection-accept time.
type Callbacks interface {
	OnCapabilities(caps Capabilities)
	OnPostConnect()
	OnActivate()
	OnSuppressOutput(suppress bool)
	OnClientGone()

	// CLIPRDR ingress (spec.md §4.8).
	OnClipboardClientFormatList(formats []ClipboardFormatEntry)
	OnClipboardFormatListResponse(ok bool, acceptedMimes []string)
	OnClipboardFormatDataResponse(data []byte, err error)
	OnClipboardLock(clipDataID uint32)
	OnClipboardUnlock(clipDataID uint32)
	OnClipboardFileContentsSizeResponse(streamID uint32, size int64, err error)
	OnClipboardFileContentsRangeResponse(streamID uint32, data []byte, err error)

	// DISP ingress (spec.md §4.11).
	OnDisplayMonitorLayout(isVirtual bool, monitors []DisplayMonitor)

	// RDPSND ingress (spec.md §4.9).
	OnAudioPlaybackClientVersion()
	OnAudioPlaybackIncomingData()
	OnAudioPlaybackClientFormats(supported []AudioFormatID)
	OnAudioPlaybackFormatChangeAck()
	OnAudioPlaybackOpenReply()

	// AUDIN ingress (spec.md §4.10).
	OnAudioCaptureClientVersion()
	OnAudioCaptureIncomingData()
	OnAudioCaptureClientFormats(supported []AudioFormatID)
	OnAudioCaptureFormatChangeAck()
	OnAudioCaptureOpenReply()
	OnAudioCaptureDataFrame(frame []byte, capturedAt time.Time)

	// RDPEI ingress (spec.md §4.7).
	OnKeyScancode(code uint8, extended, pressed bool)
	OnKeyUnicode(unit uint16, pressed bool)
	OnPointerMove(x, y int)
	OnPointerButton(x, y int, btn PointerButton, pressed bool)
	OnPointerWheel(x, y, rotation int, horizontal bool)
	OnTouchFrame(contacts []TouchContact)
}

// Listener accepts connections from the peer library adapter. The CLI
// entrypoint wires a concrete implementation (outside this module's core
// scope) into sessionrt.Manager through this interface.
type Listener interface {
	Accept(ctx context.Context) (Connection, error)
	Close() error
}
