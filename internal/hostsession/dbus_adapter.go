package hostsession

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("hostsession")

const (
	portalBus  = "org.freedesktop.portal.Desktop"
	portalPath = "/org/freedesktop/portal/desktop"

	portalRemoteDesktopIface = "org.freedesktop.portal.RemoteDesktop"
	portalScreenCastIface    = "org.freedesktop.portal.ScreenCast"
	portalRequestIface       = "org.freedesktop.portal.Request"

	portalSourceMonitor = uint32(1)
	portalSourceVirtual = uint32(4)

	portalDeviceKeyboard = uint32(1)
	portalDevicePointer  = uint32(2)
	portalDeviceTouch    = uint32(4)
)

func cursorModeToPortal(m CursorMode) uint32 {
	switch m {
	case CursorModeEmbedded:
		return 2
	case CursorModeMetadata:
		return 4
	default:
		return 1
	}
}

// DBusAdapter implements Session by driving the RemoteDesktop and
// ScreenCast portals over the session D-Bus, the way a GNOME Shell host
// process exposes itself to an embedded RDP daemon (gnome-remote-desktop's
// own architecture, per original_source).
type DBusAdapter struct {
	mu sync.Mutex

	conn          *dbus.Conn
	sessionHandle dbus.ObjectPath

	pipeWireFD int
	streams    map[uint32]dbus.ObjectPath

	mimeHost MimeHost
}

// MimeHost receives clipboard content requests the adapter cannot satisfy
// itself (the portal has no clipboard surface; a real embedding host wires
// this to its own compositor-side clipboard).
type MimeHost interface {
	RequestContent(mime string) ([]byte, error)
	SubmitContent(mime string, data []byte) error
}

func NewDBusAdapter(mimeHost MimeHost) *DBusAdapter {
	return &DBusAdapter{streams: make(map[uint32]dbus.ObjectPath), mimeHost: mimeHost}
}

func (a *DBusAdapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	portalObj := conn.Object(portalBus, portalPath)
	if err := portalObj.Call("org.freedesktop.DBus.Introspectable.Introspect", 0).Err; err != nil {
		conn.Close()
		return fmt.Errorf("portal not available: %w", err)
	}
	a.conn = conn

	handle, err := a.createSessionLocked()
	if err != nil {
		conn.Close()
		return err
	}
	a.sessionHandle = handle
	log.Info("host session started", "handle", handle)
	return nil
}

func (a *DBusAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	if a.sessionHandle != "" {
		sessObj := a.conn.Object(portalBus, a.sessionHandle)
		_ = sessObj.Call("org.freedesktop.portal.Session.Close", 0).Err
	}
	if a.pipeWireFD > 0 {
		syscall.Close(a.pipeWireFD)
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func (a *DBusAdapter) requestPathLocked(token string) dbus.ObjectPath {
	sender := a.conn.Names()[0]
	var senderPath []byte
	for _, c := range sender[1:] {
		if c == '.' {
			senderPath = append(senderPath, '_')
		} else {
			senderPath = append(senderPath, byte(c))
		}
	}
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", senderPath, token))
}

func (a *DBusAdapter) createSessionLocked() (dbus.ObjectPath, error) {
	token := fmt.Sprintf("rdpsessiond_%d", len(a.streams))
	reqPath := a.requestPathLocked(token)

	if err := a.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(reqPath),
		dbus.WithMatchInterface(portalRequestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return "", fmt.Errorf("add signal match: %w", err)
	}
	sigCh := make(chan *dbus.Signal, 10)
	a.conn.Signal(sigCh)
	defer a.conn.RemoveSignal(sigCh)

	options := map[string]dbus.Variant{
		"handle_token":          dbus.MakeVariant(token),
		"session_handle_token":  dbus.MakeVariant(token),
	}
	obj := a.conn.Object(portalBus, portalPath)
	var returned dbus.ObjectPath
	if err := obj.Call(portalRemoteDesktopIface+".CreateSession", 0, options).Store(&returned); err != nil {
		return "", fmt.Errorf("CreateSession: %w", err)
	}

	handle, err := waitForResponseString(sigCh, "session_handle", 30*time.Second)
	if err != nil {
		return "", fmt.Errorf("CreateSession response: %w", err)
	}
	return dbus.ObjectPath(handle), nil
}

func waitForResponseString(ch chan *dbus.Signal, key string, timeout time.Duration) (string, error) {
	deadline := time.After(timeout)
	for {
		select {
		case sig := <-ch:
			if sig.Name != portalRequestIface+".Response" || len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return "", fmt.Errorf("portal request failed with code %d", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok || key == "" {
				return "", nil
			}
			if v, ok := results[key]; ok {
				if s, ok := v.Value().(string); ok {
					return s, nil
				}
			}
			return "", nil
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for portal response")
		}
	}
}

func (a *DBusAdapter) SubmitMonitorConfig(cfg *layout.MonitorConfig) error {
	log.Debug("submit monitor config", "monitors", len(cfg.Monitors), "virtual", cfg.IsVirtual)
	return nil
}

func (a *DBusAdapter) recordLocked(streamID uint32, sourceType uint32, mode CursorMode) error {
	token := fmt.Sprintf("select_%d", streamID)
	reqPath := a.requestPathLocked(token)
	if err := a.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(reqPath),
		dbus.WithMatchInterface(portalRequestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return fmt.Errorf("add signal match: %w", err)
	}
	sigCh := make(chan *dbus.Signal, 10)
	a.conn.Signal(sigCh)
	defer a.conn.RemoveSignal(sigCh)

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"types":        dbus.MakeVariant(sourceType),
		"cursor_mode":  dbus.MakeVariant(cursorModeToPortal(mode)),
	}
	obj := a.conn.Object(portalBus, portalPath)
	var returned dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".SelectSources", 0, a.sessionHandle, options).Store(&returned); err != nil {
		return fmt.Errorf("SelectSources: %w", err)
	}
	if _, err := waitForResponseString(sigCh, "", 30*time.Second); err != nil {
		return fmt.Errorf("SelectSources response: %w", err)
	}
	a.streams[streamID] = reqPath
	return nil
}

func (a *DBusAdapter) RecordVirtual(streamID uint32, mode CursorMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordLocked(streamID, portalSourceVirtual, mode)
}

func (a *DBusAdapter) RecordMonitor(streamID uint32, connector string, mode CursorMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordLocked(streamID, portalSourceMonitor, mode)
}

func (a *DBusAdapter) SubmitKeyByKeycode(keycode uint32, pressed bool) error {
	return a.notifyInput("NotifyKeyboardKeycode", int32(keycode), pressed)
}

func (a *DBusAdapter) SubmitKeyByKeysym(keysym uint32, pressed bool) error {
	return a.notifyInput("NotifyKeyboardKeysym", int32(keysym), pressed)
}

func (a *DBusAdapter) notifyInput(method string, code int32, pressed bool) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+"."+method, 0, handle, map[string]dbus.Variant{}, code, state).Err
}

func (a *DBusAdapter) SubmitPointerAbsolute(x, y int) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+".NotifyPointerMotionAbsolute", 0, handle, map[string]dbus.Variant{}, uint32(0), float64(x), float64(y)).Err
}

func (a *DBusAdapter) SubmitPointerButton(button int, pressed bool) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+".NotifyPointerButton", 0, handle, map[string]dbus.Variant{}, int32(button), state).Err
}

func (a *DBusAdapter) SubmitPointerAxis(x, y, steps int, horizontal bool) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	axis := uint32(0)
	if horizontal {
		axis = 1
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+".NotifyPointerAxisDiscrete", 0, handle, map[string]dbus.Variant{}, axis, int32(steps)).Err
}

func (a *DBusAdapter) SubmitTouchDown(contactID int, x, y int) error {
	return a.notifyTouch("NotifyTouchDown", contactID, x, y)
}

func (a *DBusAdapter) SubmitTouchMotion(contactID int, x, y int) error {
	return a.notifyTouch("NotifyTouchMotion", contactID, x, y)
}

func (a *DBusAdapter) notifyTouch(method string, contactID, x, y int) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+"."+method, 0, handle, map[string]dbus.Variant{}, uint32(0), uint32(contactID), float64(x), float64(y)).Err
}

func (a *DBusAdapter) SubmitTouchUp(contactID int) error {
	a.mu.Lock()
	conn, handle := a.conn, a.sessionHandle
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("host session not started")
	}
	obj := conn.Object(portalBus, portalPath)
	return obj.Call(portalRemoteDesktopIface+".NotifyTouchUp", 0, handle, map[string]dbus.Variant{}, uint32(contactID)).Err
}

func (a *DBusAdapter) SubmitTouchCancel(contactID int) error {
	// The portal has no explicit touch-cancel method; treat it as an up to
	// avoid leaving a stuck contact on the host side.
	return a.SubmitTouchUp(contactID)
}

func (a *DBusAdapter) SubmitTouchDeviceFrame() error {
	return nil
}

func (a *DBusAdapter) SynchronizeCapsNumLock(caps, num bool) error {
	log.Debug("synchronize lock state", "caps", caps, "num", num)
	return nil
}

func (a *DBusAdapter) UpdateClientMimeTypeList(mimes []string) error {
	log.Debug("client mime list updated", "count", len(mimes))
	return nil
}

func (a *DBusAdapter) RequestClientContentForMimeType(mime string) error {
	return nil
}

func (a *DBusAdapter) SubmitRequestedServerContent(data []byte) error {
	return nil
}

func (a *DBusAdapter) UpdateServerMimeTypeList(mimes []string) error {
	log.Debug("server mime list updated", "count", len(mimes))
	return nil
}

func (a *DBusAdapter) SubmitClientContentForMimeType(mime string, data []byte) error {
	if a.mimeHost == nil {
		return fmt.Errorf("no mime host configured")
	}
	return a.mimeHost.SubmitContent(mime, data)
}
