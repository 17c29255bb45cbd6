package sessionrt

import (
	"testing"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/config"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/input"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
)

type identityTransform struct{}

func (identityTransform) PositionTransform(x, y int) (int, int, bool) { return x, y, true }

type recordingEmitter struct {
	keys     []input.KeyEvent
	pointers []input.PointerEvent
	touches  []input.TouchEvent
	frames   int
}

func (e *recordingEmitter) EmitKey(ev input.KeyEvent)         { e.keys = append(e.keys, ev) }
func (e *recordingEmitter) EmitPointer(ev input.PointerEvent) { e.pointers = append(e.pointers, ev) }
func (e *recordingEmitter) EmitTouch(ev input.TouchEvent)     { e.touches = append(e.touches, ev) }
func (e *recordingEmitter) EmitDeviceFrame()                  { e.frames++ }

func TestOnKeyScancodeDelegatesToKeyboard(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	kbd := input.NewKeyboard(map[input.ScancodeKey]uint32{{Code: 0x1E}: 30}, emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, Keyboard: kbd})

	m.OnKeyScancode(0x1E, false, true)

	if !kbd.Pressed(30) {
		t.Fatal("expected keycode 30 tracked as pressed")
	}
	if len(emit.keys) != 1 || emit.keys[0].Keycode != 30 {
		t.Fatalf("emitted keys = %+v", emit.keys)
	}
}

func TestOnKeyUnicodeDelegatesToUnicodeKeyboard(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	ukbd := input.NewUnicodeKeyboard(emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, UnicodeKbd: ukbd})

	m.OnKeyUnicode('a', true)

	if len(emit.keys) != 1 || emit.keys[0].Keycode != uint32('a') {
		t.Fatalf("emitted keys = %+v", emit.keys)
	}
}

func TestOnPointerMoveDelegatesToPointer(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	ptr := input.NewPointer(identityTransform{}, emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, Pointer: ptr})

	m.OnPointerMove(10, 20)

	if len(emit.pointers) != 1 || !emit.pointers[0].IsMotion {
		t.Fatalf("emitted pointer events = %+v", emit.pointers)
	}
}

func TestOnPointerButtonDelegatesToPointer(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	ptr := input.NewPointer(identityTransform{}, emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, Pointer: ptr})

	m.OnPointerButton(5, 5, peer.PointerButtonRight, true)

	if len(emit.pointers) != 1 || emit.pointers[0].Button != input.ButtonRight {
		t.Fatalf("emitted pointer events = %+v", emit.pointers)
	}
}

func TestOnPointerWheelDelegatesToPointer(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	ptr := input.NewPointer(identityTransform{}, emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, Pointer: ptr})

	m.OnPointerWheel(1, 1, 120, false)

	if len(emit.pointers) != 1 || !emit.pointers[0].IsWheel {
		t.Fatalf("emitted pointer events = %+v", emit.pointers)
	}
}

func TestOnTouchFrameDelegatesToTouchDevice(t *testing.T) {
	conn := peer.NewFakeConnection()
	emit := &recordingEmitter{}
	touch := input.NewTouchDevice(emit)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, Touch: touch})

	m.OnTouchFrame([]peer.TouchContact{
		{ContactID: 1, Action: peer.TouchActionDown, InRange: true, InContact: true, X: 1, Y: 1},
	})

	if len(emit.touches) != 1 || emit.touches[0].Kind != input.TouchDown {
		t.Fatalf("emitted touch events = %+v", emit.touches)
	}
	if emit.frames != 1 {
		t.Fatalf("expected one device frame emitted, got %d", emit.frames)
	}
}

func TestOnClipboardLockAndUnlock(t *testing.T) {
	conn := peer.NewFakeConnection()
	reg := clipboard.NewClipDataRegistry()
	m := NewManager(Deps{Config: config.Default(), Conn: conn, ClipData: reg})

	m.OnClipboardLock(7)
	if reg.Count() != 1 {
		t.Fatalf("expected one locked entry, got %d", reg.Count())
	}
	m.OnClipboardUnlock(7)
	if reg.Count() != 0 {
		t.Fatalf("expected entry freed after unlock, got %d", reg.Count())
	}
}

type fakeHostDispatcher struct {
	formats []clipboard.FormatEntry
}

func (f *fakeHostDispatcher) DispatchFormatList(formats []clipboard.FormatEntry) {
	f.formats = formats
}

func TestOnClipboardClientFormatListDelegatesToConsumer(t *testing.T) {
	conn := peer.NewFakeConnection()
	host := &fakeHostDispatcher{}
	con := clipboard.NewConsumer(conn, host, true)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, ClipCon: con})

	m.OnClipboardClientFormatList([]peer.ClipboardFormatEntry{{Mime: "text/plain", ID: 1}})

	if len(host.formats) != 1 || host.formats[0].Mime != "text/plain" {
		t.Fatalf("host formats = %+v", host.formats)
	}
}

func TestOnClipboardFormatListResponseUpdatesAllowedSet(t *testing.T) {
	conn := peer.NewFakeConnection()
	pub := clipboard.NewPublisher(conn)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, ClipPub: pub})

	m.OnClipboardFormatListResponse(true, []string{"text/plain"})

	if !pub.IsAllowed("text/plain") {
		t.Fatal("expected text/plain marked allowed")
	}
}

func TestOnClipboardFormatDataResponseCompletesRequest(t *testing.T) {
	conn := peer.NewFakeConnection()
	host := &fakeHostDispatcher{}
	con := clipboard.NewConsumer(conn, host, true)
	m := NewManager(Deps{Config: config.Default(), Conn: conn, ClipCon: con})

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := con.RequestData(clipboard.FormatText)
		done <- result{data, err}
	}()

	time.Sleep(10 * time.Millisecond)
	m.OnClipboardFormatDataResponse([]byte("hello"), nil)

	res := <-done
	if res.err != nil || string(res.data) != "hello" {
		t.Fatalf("RequestData result = %+v", res)
	}
}

func TestOnClipboardCallbacksNoopWithoutWiring(t *testing.T) {
	conn := peer.NewFakeConnection()
	m := NewManager(Deps{Config: config.Default(), Conn: conn})

	// None of these must panic when the corresponding FSM was never wired.
	m.OnClipboardClientFormatList(nil)
	m.OnClipboardFormatListResponse(true, nil)
	m.OnClipboardFormatDataResponse(nil, nil)
	m.OnClipboardLock(1)
	m.OnClipboardUnlock(1)
	m.OnClipboardFileContentsSizeResponse(1, 0, nil)
	m.OnClipboardFileContentsRangeResponse(1, nil, nil)
	m.OnDisplayMonitorLayout(true, nil)
	m.OnAudioPlaybackClientVersion()
	m.OnAudioPlaybackIncomingData()
	m.OnAudioPlaybackClientFormats(nil)
	m.OnAudioPlaybackFormatChangeAck()
	m.OnAudioPlaybackOpenReply()
	m.OnAudioCaptureClientVersion()
	m.OnAudioCaptureIncomingData()
	m.OnAudioCaptureClientFormats(nil)
	m.OnAudioCaptureFormatChangeAck()
	m.OnAudioCaptureOpenReply()
	m.OnAudioCaptureDataFrame(nil, time.Now())
	m.OnKeyScancode(0, false, true)
	m.OnKeyUnicode(0, true)
	m.OnPointerMove(0, 0)
	m.OnPointerButton(0, 0, peer.PointerButtonLeft, true)
	m.OnPointerWheel(0, 0, 0, false)
	m.OnTouchFrame(nil)
}
