package hostsession

import (
	"testing"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
)

type fakeSession struct {
	virtualCalls []uint32
	monitorCalls map[uint32]string
}

func newFakeSession() *fakeSession {
	return &fakeSession{monitorCalls: make(map[uint32]string)}
}

func (s *fakeSession) Start() error { return nil }
func (s *fakeSession) Stop() error  { return nil }

func (s *fakeSession) SubmitMonitorConfig(cfg *layout.MonitorConfig) error { return nil }

func (s *fakeSession) RecordVirtual(streamID uint32, mode CursorMode) error {
	s.virtualCalls = append(s.virtualCalls, streamID)
	return nil
}

func (s *fakeSession) RecordMonitor(streamID uint32, connector string, mode CursorMode) error {
	s.monitorCalls[streamID] = connector
	return nil
}

func (s *fakeSession) SubmitKeyByKeycode(uint32, bool) error       { return nil }
func (s *fakeSession) SubmitKeyByKeysym(uint32, bool) error        { return nil }
func (s *fakeSession) SubmitPointerAbsolute(int, int) error        { return nil }
func (s *fakeSession) SubmitPointerButton(int, bool) error         { return nil }
func (s *fakeSession) SubmitPointerAxis(int, int, int, bool) error { return nil }
func (s *fakeSession) SubmitTouchDown(int, int, int) error         { return nil }
func (s *fakeSession) SubmitTouchMotion(int, int, int) error       { return nil }
func (s *fakeSession) SubmitTouchUp(int) error                     { return nil }
func (s *fakeSession) SubmitTouchCancel(int) error                 { return nil }
func (s *fakeSession) SubmitTouchDeviceFrame() error                { return nil }
func (s *fakeSession) SynchronizeCapsNumLock(bool, bool) error     { return nil }

func (s *fakeSession) UpdateClientMimeTypeList([]string) error         { return nil }
func (s *fakeSession) RequestClientContentForMimeType(string) error    { return nil }
func (s *fakeSession) SubmitRequestedServerContent([]byte) error       { return nil }
func (s *fakeSession) UpdateServerMimeTypeList([]string) error         { return nil }
func (s *fakeSession) SubmitClientContentForMimeType(string, []byte) error {
	return nil
}

func TestStreamHostCreateVirtualStream(t *testing.T) {
	session := newFakeSession()
	host := NewStreamHost(session, CursorModeEmbedded)

	id, err := host.CreateStream(layout.Monitor{Width: 1920, Height: 1080})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if len(session.virtualCalls) != 1 || session.virtualCalls[0] != id {
		t.Fatalf("expected RecordVirtual called with id %d, got %v", id, session.virtualCalls)
	}
}

func TestStreamHostCreateMonitorStream(t *testing.T) {
	session := newFakeSession()
	host := NewStreamHost(session, CursorModeMetadata)

	id, err := host.CreateStream(layout.Monitor{Connector: "DP-1", Width: 1920, Height: 1080})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if session.monitorCalls[id] != "DP-1" {
		t.Fatalf("expected RecordMonitor called with connector DP-1, got %q", session.monitorCalls[id])
	}
}

func TestStreamHostAssignsIncreasingIDs(t *testing.T) {
	session := newFakeSession()
	host := NewStreamHost(session, CursorModeHidden)

	id1, _ := host.CreateStream(layout.Monitor{Width: 800, Height: 600})
	id2, _ := host.CreateStream(layout.Monitor{Width: 800, Height: 600})
	if id1 == id2 {
		t.Fatalf("expected distinct stream ids, got %d and %d", id1, id2)
	}
}

func TestStreamHostDestroyDecrementsLiveCount(t *testing.T) {
	session := newFakeSession()
	host := NewStreamHost(session, CursorModeHidden)

	id, _ := host.CreateStream(layout.Monitor{Width: 800, Height: 600})
	if host.liveCount != 1 {
		t.Fatalf("liveCount = %d, want 1", host.liveCount)
	}
	if err := host.DestroyStream(id); err != nil {
		t.Fatalf("DestroyStream: %v", err)
	}
	if host.liveCount != 0 {
		t.Fatalf("liveCount = %d, want 0", host.liveCount)
	}
}

func TestCursorModeToPortalMapping(t *testing.T) {
	cases := map[CursorMode]uint32{
		CursorModeHidden:   1,
		CursorModeEmbedded: 2,
		CursorModeMetadata: 4,
	}
	for mode, want := range cases {
		if got := cursorModeToPortal(mode); got != want {
			t.Fatalf("cursorModeToPortal(%v) = %d, want %d", mode, got, want)
		}
	}
}
