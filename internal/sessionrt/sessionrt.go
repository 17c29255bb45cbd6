// Package sessionrt implements the Session Runtime (spec.md §4.1): the
// top-level orchestrator that drives one peer connection end to end,
// owns the session-global flags, and wires together the DVC registry,
// layout manager, graphics pipeline, cursor renderer, input translation,
// clipboard, audio, and display-control subcomponents.
package sessionrt

import (
	"sync"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/capture"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/playback"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard/vfs"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/config"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/cursor"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/dispctl"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/dvc"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/gfxbridge"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/graphics"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/hostsession"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/input"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/secmem"
)

var log = logging.L("sessionrt")

// BandwidthProbe is the network-autodetection collaborator: it measures
// round-trip time and feeds samples back to the GFX bridge so it can
// size its frame-rate admission window (spec.md §4.1, §4.5).
type BandwidthProbe interface {
	Start(onRTT func(rtt time.Duration)) error
	Stop()
}

// CredentialFileWriter creates the SAM credential scratch file spec.md
// §6 describes and removes it again. internal/secmem holds the actual
// username/password pair in memory; the Manager only ever touches the
// writer and the zeroing secret, never a raw password.
type CredentialFileWriter interface {
	Write(username, password string) (path string, err error)
	Remove() error
}

// Deps are the per-session collaborators a Manager orchestrates. All of
// them are constructed by the caller (cmd/rdp-sessiond) so sessionrt
// never has to know about concrete encoders, PipeWire, or D-Bus.
type Deps struct {
	Config      *config.Config
	Conn        peer.Connection
	DVC         *dvc.Registry
	LayoutMgr   *layout.Manager
	Pipeline    *graphics.Pipeline
	Bridge      *gfxbridge.Bridge
	CursorR     *cursor.Renderer
	DispCtl     *dispctl.Controller
	Keyboard    *input.Keyboard
	UnicodeKbd  *input.UnicodeKeyboard
	Pointer     *input.Pointer
	Touch       *input.TouchDevice
	ClipPub     *clipboard.Publisher
	ClipCon     *clipboard.Consumer
	ClipData    *clipboard.ClipDataRegistry
	ClipVFS     *vfs.FileSystem
	Playback    *playback.FSM
	Capture     *capture.FSM
	HostSession hostsession.Session
	Bandwidth   BandwidthProbe // nil disables autodetection

	// AudioBackendFor resolves a negotiated codec.Format to the Backend
	// that encodes/decodes its frames, consulted by the RDPSND/AUDIN
	// format-negotiation ingress.
	AudioBackendFor func(codec.Format) codec.Backend

	// CredFile writes and unlinks the SAM credential scratch file
	// (spec.md §6); nil disables the feature entirely (e.g. in tests).
	CredFile      CredentialFileWriter
	CredUsername  string
	CredPassword  *secmem.SecureString
}

// Manager is one live session: it implements peer.Callbacks and is
// registered with the peer library adapter at connection-accept time.
type Manager struct {
	mu sync.Mutex

	cfg   *config.Config
	conn  peer.Connection
	flags flags
	errs  *errorReporter

	dvcRegistry *dvc.Registry
	layoutMgr   *layout.Manager
	pipeline    *graphics.Pipeline
	bridge      *gfxbridge.Bridge
	cursorR     *cursor.Renderer
	dispCtl     *dispctl.Controller
	keyboard    *input.Keyboard
	unicodeKbd  *input.UnicodeKeyboard
	pointer     *input.Pointer
	touch       *input.TouchDevice
	clipPub     *clipboard.Publisher
	clipCon     *clipboard.Consumer
	clipData    *clipboard.ClipDataRegistry
	clipVFS     *vfs.FileSystem
	playback    *playback.FSM
	capture     *capture.FSM
	hostSession hostsession.Session
	bandwidth   BandwidthProbe

	audioBackendFor func(codec.Format) codec.Backend

	credFile     CredentialFileWriter
	credUsername string
	credPassword *secmem.SecureString

	caps         peer.Capabilities
	effectiveDepth int
	audioEnabled bool

	stopOnce sync.Once
	stopped  bool
}

var _ peer.Callbacks = (*Manager)(nil)

// NewManager wires one session's subcomponents together and returns a
// Manager ready to be registered as the peer connection's Callbacks.
func NewManager(deps Deps) *Manager {
	m := &Manager{
		cfg:         deps.Config,
		conn:        deps.Conn,
		dvcRegistry: deps.DVC,
		layoutMgr:   deps.LayoutMgr,
		pipeline:    deps.Pipeline,
		bridge:      deps.Bridge,
		cursorR:     deps.CursorR,
		dispCtl:     deps.DispCtl,
		keyboard:    deps.Keyboard,
		unicodeKbd:  deps.UnicodeKbd,
		pointer:     deps.Pointer,
		touch:       deps.Touch,
		clipPub:     deps.ClipPub,
		clipCon:     deps.ClipCon,
		clipData:    deps.ClipData,
		clipVFS:     deps.ClipVFS,
		playback:    deps.Playback,
		capture:     deps.Capture,
		hostSession: deps.HostSession,
		bandwidth:   deps.Bandwidth,

		audioBackendFor: deps.AudioBackendFor,

		credFile:     deps.CredFile,
		credUsername: deps.CredUsername,
		credPassword: deps.CredPassword,
	}
	m.errs = newErrorReporter(deps.Conn, &m.flags, m.closeWithCode)
	if m.layoutMgr != nil {
		m.layoutMgr.OnFatalError(m.onLayoutFatal)
	}
	if m.bridge != nil {
		m.bridge.OnError(func(err error) { m.errs.NotifyGraphicsSubsystemFailed(err) })
	}
	if m.credFile != nil {
		password := ""
		if m.credPassword != nil {
			password = m.credPassword.Reveal()
		}
		if _, err := m.credFile.Write(m.credUsername, password); err != nil {
			log.Warn("failed to write SAM credential scratch file", "error", err)
		}
	}
	return m
}

// onLayoutFatal maps a layout-manager failure onto the error-info code
// spec.md §4.1/§4.3 assign it: BadMonitorData while the session is still
// coming up through the capability gate, CloseStackOnDriverFailure for a
// capture-stream loss afterwards.
func (m *Manager) onLayoutFatal(err error) {
	if m.flags.has(flagActivated) {
		m.errs.NotifyCloseStackOnDriverFailure(err)
		return
	}
	m.errs.NotifyBadMonitorData(err)
}

// OnCapabilities implements peer.Callbacks: the capability gate (spec.md
// §4.1).
func (m *Manager) OnCapabilities(caps peer.Capabilities) {
	depth, initial, err := gateCapabilities(m.cfg, caps)
	if err != nil {
		log.Warn("capability gate rejected client", "error", err)
		m.errs.NotifyBadCaps()
		return
	}

	m.mu.Lock()
	m.caps = caps
	m.effectiveDepth = depth
	m.mu.Unlock()

	if m.layoutMgr != nil {
		if err := m.layoutMgr.SubmitConfig(initial); err != nil {
			// layoutMgr.OnFatalError already notified BadMonitorData via
			// onLayoutFatal; nothing further to do here.
			return
		}
	}
}

// OnPostConnect implements peer.Callbacks (spec.md §4.1).
func (m *Manager) OnPostConnect() {
	m.mu.Lock()
	caps := m.caps
	m.mu.Unlock()

	m.audioEnabled = audioAllowed(caps)
	if !m.audioEnabled {
		log.Info("audio disabled for this client", "iosOrAndroid", caps.IsIOSOrAndroid, "autodetect", caps.SupportsAutodetect)
	}

	if caps.SupportsGraphicsPipeline {
		m.flags.set(flagPendingGfxInit)
	}

	if m.bandwidth != nil && caps.SupportsAutodetect {
		onRTT := func(time.Duration) {}
		if m.bridge != nil {
			onRTT = m.bridge.OnRoundTripTime
		}
		if err := m.bandwidth.Start(onRTT); err != nil {
			log.Warn("failed to start bandwidth probe", "error", err)
		}
	}

	if m.hostSession != nil {
		if err := m.hostSession.Start(); err != nil {
			log.Error("host session failed to start", "error", err)
			m.errs.NotifyCloseStackOnDriverFailure(err)
			return
		}
	}

	if m.credFile != nil {
		if err := m.credFile.Remove(); err != nil {
			log.Warn("failed to free SAM credential file", "error", err)
		}
	}
	if m.credPassword != nil {
		m.credPassword.Zero()
	}

	m.flags.set(flagOutputEnabled)
	m.flags.set(flagActivated)
}

// OnActivate implements peer.Callbacks.
func (m *Manager) OnActivate() {
	log.Debug("session activated")
}

// OnSuppressOutput implements peer.Callbacks (flags table in spec.md
// §4.1: OutputEnabled is cleared by SuppressOutput(deny), reset by a
// subsequent SuppressOutput(allow)).
func (m *Manager) OnSuppressOutput(suppress bool) {
	if suppress {
		m.flags.clear(flagOutputEnabled)
	} else {
		m.flags.set(flagOutputEnabled)
	}
}

// OnClientGone implements peer.Callbacks: handle_client_gone, invoked
// when CheckFileDescriptor reports the transport is dead.
func (m *Manager) OnClientGone() {
	m.Shutdown()
}

// GraphicsCapabilities returns the graphics.Capabilities view derived
// from the last negotiated peer capabilities, for SubmitFrame callers.
func (m *Manager) GraphicsCapabilities() graphics.Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return graphicsCapabilities(m.caps)
}

// ColorDepth returns the (possibly downgraded) effective color depth.
func (m *Manager) ColorDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effectiveDepth
}

// OnGfxChannelReady clears PendingGfxInit once the GFX pipeline reports
// ready, per the flags table in spec.md §4.1.
func (m *Manager) OnGfxChannelReady() {
	m.flags.clear(flagPendingGfxInit)
}

// RequestGfxReset marks PendingGfxReset (desktop resize or GFX ready);
// the caller clears it again after sending the graphics-reset PDU.
func (m *Manager) RequestGfxReset() {
	m.flags.set(flagPendingGfxReset)
}

func (m *Manager) ClearGfxReset() {
	m.flags.clear(flagPendingGfxReset)
}

func (m *Manager) IsActivated() bool      { return m.flags.has(flagActivated) }
func (m *Manager) IsOutputEnabled() bool  { return m.flags.has(flagOutputEnabled) }
func (m *Manager) IsPendingGfxInit() bool { return m.flags.has(flagPendingGfxInit) }
func (m *Manager) AudioEnabled() bool     { return m.audioEnabled }

func (m *Manager) closeWithCode(code peer.ErrorInfoCode) {
	if m.conn != nil {
		if err := m.conn.Disconnect(code); err != nil {
			log.Warn("disconnect failed", "error", err)
		}
	}
	m.Shutdown()
}

// Shutdown implements spec.md §4.1's shutdown sequence: it is safe to
// call more than once (teardown is idempotent) and safe to call
// concurrently with OnClientGone / closeWithCode racing a fatal error.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		if m.bandwidth != nil {
			m.bandwidth.Stop()
		}
		if m.credFile != nil {
			if err := m.credFile.Remove(); err != nil {
				log.Warn("failed to free SAM credential file during shutdown", "error", err)
			}
		}
		if m.clipVFS != nil {
			m.clipVFS.Shutdown()
		}
		if m.hostSession != nil {
			if err := m.hostSession.Stop(); err != nil {
				log.Warn("host session stop failed", "error", err)
			}
		}
		if m.conn != nil {
			if err := m.conn.Close(); err != nil {
				log.Warn("peer close failed", "error", err)
			}
		}
		log.Info("session shut down")
	})
}

// ErrorReporter exposes the session's notify_error sink as a
// dispctl.ErrorReporter, letting the caller construct a dispctl.Controller
// after the Manager (the Controller needs an error sink; the sink lives
// inside the Manager it will later be attached to via SetDispCtl).
func (m *Manager) ErrorReporter() dispctl.ErrorReporter {
	return m.errs
}

// SetDispCtl attaches the Display Control DVC handler once constructed.
// Exists because dispctl.NewController needs this Manager's ErrorReporter,
// creating an unavoidable two-phase wiring order.
func (m *Manager) SetDispCtl(d *dispctl.Controller) {
	m.dispCtl = d
}

func (m *Manager) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
