package main

import (
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/capture"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/playback"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard/vfs"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/config"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/credfile"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/cursor"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/dispctl"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/dvc"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/gfxbridge"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/graphics"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/hostsession"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/input"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/secmem"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/sessionrt"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/workerpool"
)

// positionTransformer adapts layout.Manager's four-return PositionTransform
// to the narrower three-return shape input.Pointer depends on.
type positionTransformer struct{ mgr *layout.Manager }

func (p positionTransformer) PositionTransform(x, y int) (int, int, bool) {
	return p.mgr.SimplePositionTransform(x, y)
}

// keySubmitter adapts hostsession.Session into the Emitter/PointerEmitter/
// TouchEmitter interfaces the input package drives.
type keySubmitter struct{ host hostsession.Session }

func (s keySubmitter) EmitKey(ev input.KeyEvent) {
	if err := s.host.SubmitKeyByKeycode(ev.Keycode, ev.Pressed); err != nil {
		log.Warn("submit key failed", "error", err)
	}
}

func (s keySubmitter) EmitPointer(ev input.PointerEvent) {
	var err error
	switch {
	case ev.IsMotion:
		err = s.host.SubmitPointerAbsolute(ev.X, ev.Y)
	case ev.IsWheel:
		err = s.host.SubmitPointerAxis(ev.X, ev.Y, ev.Steps, ev.Horizontal)
	default:
		err = s.host.SubmitPointerButton(int(ev.Button), ev.Pressed)
	}
	if err != nil {
		log.Warn("submit pointer event failed", "error", err)
	}
}

func (s keySubmitter) EmitTouch(ev input.TouchEvent) {
	if ev.Ignore {
		return
	}
	var err error
	switch ev.Kind {
	case input.TouchDown:
		err = s.host.SubmitTouchDown(ev.ContactID, ev.X, ev.Y)
	case input.TouchMotion:
		err = s.host.SubmitTouchMotion(ev.ContactID, ev.X, ev.Y)
	case input.TouchUp:
		err = s.host.SubmitTouchUp(ev.ContactID)
	case input.TouchCancel:
		err = s.host.SubmitTouchCancel(ev.ContactID)
	}
	if err != nil {
		log.Warn("submit touch event failed", "error", err)
	}
}

func (s keySubmitter) EmitDeviceFrame() {
	if err := s.host.SubmitTouchDeviceFrame(); err != nil {
		log.Warn("submit touch device frame failed", "error", err)
	}
}

// clipboardHostDispatcher runs the client's format list update; a real
// deployment routes this onto the compositor's clipboard actor via the
// same MimeHost the D-Bus adapter uses for content.
type clipboardHostDispatcher struct{}

func (clipboardHostDispatcher) DispatchFormatList(formats []clipboard.FormatEntry) {
	log.Debug("client clipboard formats advertised", "count", len(formats))
}

// buildSession wires one connection's full collaborator graph and returns
// a sessionrt.Manager ready to be registered as the peer.Connection's
// Callbacks implementation.
func buildSession(cfg *config.Config, conn peer.Connection, pool *workerpool.Pool) *sessionrt.Manager {
	dvcRegistry := dvc.NewRegistry()

	mimeHost := noopMimeHost{}
	dbusAdapter := hostsession.NewDBusAdapter(mimeHost)
	cursorMode := hostsession.CursorModeMetadata
	streamHost := hostsession.NewStreamHost(dbusAdapter, cursorMode)

	layoutMgr := layout.NewManager(streamHost, cfg.MaxMonitorCount, cfg.RecreationTimer())
	cursorR := cursor.NewRenderer(cfg.PointerCacheSize)

	pipeline := graphics.NewPipeline(conn, unimplementedRFX{}, unimplementedNSC{}, unimplementedTiles{}, pool)
	bridge := gfxbridge.NewBridge(conn, gfxEncoderFactory)

	submitter := keySubmitter{host: dbusAdapter}
	keyboard := input.NewKeyboard(pcScancodeToEvdev, submitter)
	unicodeKbd := input.NewUnicodeKeyboard(submitter)
	pointerXform := positionTransformer{mgr: layoutMgr}
	pointer := input.NewPointer(pointerXform, submitter)
	touch := input.NewTouchDevice(submitter)

	clipPub := clipboard.NewPublisher(conn)
	clipCon := clipboard.NewConsumer(conn, clipboardHostDispatcher{}, true)
	clipData := clipboard.NewClipDataRegistry()
	clipVFS := vfs.NewFileSystem(clipboardRequester{conn: conn})

	audioPlayback := playback.NewFSM(conn, unimplementedAudioSink{})
	audioCapture := capture.NewFSM(conn, unimplementedAudioSource{})

	m := sessionrt.NewManager(sessionrt.Deps{
		Config:      cfg,
		Conn:        conn,
		DVC:         dvcRegistry,
		LayoutMgr:   layoutMgr,
		Pipeline:    pipeline,
		Bridge:      bridge,
		CursorR:     cursorR,
		Keyboard:    keyboard,
		UnicodeKbd:  unicodeKbd,
		Pointer:     pointer,
		Touch:       touch,
		ClipPub:     clipPub,
		ClipCon:     clipCon,
		ClipData:    clipData,
		ClipVFS:     clipVFS,
		Playback:    audioPlayback,
		Capture:     audioCapture,
		HostSession: dbusAdapter,

		AudioBackendFor: audioBackendFor,

		CredFile:     credfile.New(),
		CredUsername: cfg.RDPCredentialUsername,
		CredPassword: secmem.NewSecureString(cfg.RDPCredentialPassword),
	})

	dispCtl := dispctl.NewController(conn, layoutMgr, cfg.MaxMonitorCount, m.ErrorReporter())
	m.SetDispCtl(dispCtl)
	m.WireChannels()

	return m
}

// fileContentsRequestPDU mirrors CLIPRDR's FileContentsRequest, requesting
// either a file's size or a byte range of its contents.
type fileContentsRequestPDU struct {
	StreamID  uint32
	ListIndex uint32
	Size      bool
	Offset    int64
	Length    int
}

// clipboardRequester adapts the peer connection's PDU channel into the
// vfs.Requester the FUSE filesystem uses for FileContentsRequest round
// trips.
type clipboardRequester struct{ conn peer.Connection }

func (r clipboardRequester) RequestSize(streamID, listIndex uint32) error {
	return r.conn.SendPDU("CLIPRDR", fileContentsRequestPDU{StreamID: streamID, ListIndex: listIndex, Size: true})
}

func (r clipboardRequester) RequestRange(streamID, listIndex uint32, offset int64, length int) error {
	return r.conn.SendPDU("CLIPRDR", fileContentsRequestPDU{StreamID: streamID, ListIndex: listIndex, Offset: offset, Length: length})
}
