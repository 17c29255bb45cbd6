package layout

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHost struct {
	nextStreamID uint32
	created      []Monitor
	destroyed    []uint32
	updated      []uint32
	failCreate   bool
}

func (h *fakeHost) CreateStream(m Monitor) (uint32, error) {
	if h.failCreate {
		return 0, fmt.Errorf("injected failure")
	}
	h.nextStreamID++
	h.created = append(h.created, m)
	return h.nextStreamID, nil
}

func (h *fakeHost) UpdateStreamParams(streamID uint32, m Monitor) error {
	h.updated = append(h.updated, streamID)
	return nil
}

func (h *fakeHost) DestroyStream(streamID uint32) error {
	h.destroyed = append(h.destroyed, streamID)
	return nil
}

func singleMonitorConfig(w, h int) *MonitorConfig {
	return &MonitorConfig{
		IsVirtual: true,
		Monitors: []Monitor{
			{PosX: 0, PosY: 0, Width: w, Height: h, IsPrimary: true, Scale: 100},
		},
	}
}

func TestSubmitConfigSingleMonitorTilesBoundingBox(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 50*time.Millisecond)

	cfg := singleMonitorConfig(1920, 1080)
	if err := mgr.SubmitConfig(cfg); err != nil {
		t.Fatalf("SubmitConfig: %v", err)
	}

	surfaces := mgr.Surfaces()
	if len(surfaces) != 1 {
		t.Fatalf("got %d surfaces, want 1", len(surfaces))
	}
	left, top, right, bottom := surfaces[0].Rect()
	if left != 0 || top != 0 || right != 1920 || bottom != 1080 {
		t.Fatalf("unexpected rect: (%d,%d)-(%d,%d)", left, top, right, bottom)
	}
	if !surfaces[0].Monitor.IsPrimary {
		t.Fatal("expected primary monitor")
	}
}

func TestSubmitConfigAwaitsStreamReadyBeforeRendering(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 50*time.Millisecond)

	if err := mgr.SubmitConfig(singleMonitorConfig(1920, 1080)); err != nil {
		t.Fatalf("SubmitConfig: %v", err)
	}
	if mgr.State() != StateAwaitStreams {
		t.Fatalf("state = %v, want AWAIT_STREAMS", mgr.State())
	}

	mgr.NotifyStreamReady(1)
	if mgr.State() != StateStartRendering {
		t.Fatalf("state = %v, want START_RENDERING", mgr.State())
	}
}

func TestExtendedLayoutThreeMonitorsOffsetsAndOrigins(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 50*time.Millisecond)

	cfg := &MonitorConfig{
		IsVirtual: true,
		Monitors: []Monitor{
			{PosX: 0, PosY: 0, Width: 1920, Height: 1080, IsPrimary: true, Scale: 100},
			{PosX: 1920, PosY: 0, Width: 1280, Height: 1024, Scale: 100},
			{PosX: -1280, PosY: 0, Width: 1280, Height: 1024, Scale: 100},
		},
	}
	if err := mgr.SubmitConfig(cfg); err != nil {
		t.Fatalf("SubmitConfig: %v", err)
	}

	if cfg.DesktopWidth != 4480 {
		t.Fatalf("DesktopWidth = %d, want 4480", cfg.DesktopWidth)
	}
	if cfg.LayoutOffsetX != -1280 {
		t.Fatalf("LayoutOffsetX = %d, want -1280", cfg.LayoutOffsetX)
	}

	surfaces := mgr.Surfaces()
	wantOrigins := [][2]int{{1280, 0}, {3200, 0}, {0, 0}}
	for i, s := range surfaces {
		if s.OriginX != wantOrigins[i][0] || s.OriginY != wantOrigins[i][1] {
			t.Fatalf("surface %d origin = (%d,%d), want (%d,%d)", i, s.OriginX, s.OriginY, wantOrigins[i][0], wantOrigins[i][1])
		}
	}
}

func TestSubmitConfigOverlappingMonitorsIsFatal(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 50*time.Millisecond)

	var fatalErr error
	mgr.OnFatalError(func(err error) { fatalErr = err })

	cfg := &MonitorConfig{
		Monitors: []Monitor{
			{PosX: 0, PosY: 0, Width: 800, Height: 600, IsPrimary: true, Scale: 100},
			{PosX: 400, PosY: 0, Width: 800, Height: 600, Scale: 100},
		},
	}
	if err := mgr.SubmitConfig(cfg); err == nil {
		t.Fatal("expected overlap validation error")
	}
	if mgr.State() != StateFatalError {
		t.Fatalf("state = %v, want FATAL_ERROR", mgr.State())
	}
	if fatalErr == nil {
		t.Fatal("expected OnFatalError callback to fire")
	}
}

func TestSubmitConfigTooManyMonitorsIsFatal(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 1, 50*time.Millisecond)

	cfg := &MonitorConfig{
		Monitors: []Monitor{
			{PosX: 0, PosY: 0, Width: 800, Height: 600, IsPrimary: true, Scale: 100},
			{PosX: 800, PosY: 0, Width: 800, Height: 600, Scale: 100},
		},
	}
	if err := mgr.SubmitConfig(cfg); err == nil {
		t.Fatal("expected max-monitor-count validation error")
	}
}

func TestSurfaceCreationFailureEntersFatalError(t *testing.T) {
	host := &fakeHost{failCreate: true}
	mgr := NewManager(host, 16, 50*time.Millisecond)

	if err := mgr.SubmitConfig(singleMonitorConfig(800, 600)); err == nil {
		t.Fatal("expected error from failed stream creation")
	}
	if mgr.State() != StateFatalError {
		t.Fatalf("state = %v, want FATAL_ERROR", mgr.State())
	}
}

func TestPositionTransformFindsOwningSurface(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 50*time.Millisecond)
	_ = mgr.SubmitConfig(singleMonitorConfig(1920, 1080))

	surf, lx, ly, ok := mgr.PositionTransform(100, 50)
	if !ok || surf == nil {
		t.Fatal("expected point to be owned by a surface")
	}
	if lx != 100 || ly != 50 {
		t.Fatalf("local coords = (%d,%d), want (100,50)", lx, ly)
	}

	_, _, _, ok = mgr.PositionTransform(5000, 5000)
	if ok {
		t.Fatal("expected out-of-bounds point to be unowned")
	}
}

func TestRecreationTimerResubmitsLastConfigAfterTransientLoss(t *testing.T) {
	host := &fakeHost{}
	mgr := NewManager(host, 16, 20*time.Millisecond)
	cfg := singleMonitorConfig(800, 600)
	if err := mgr.SubmitConfig(cfg); err != nil {
		t.Fatalf("SubmitConfig: %v", err)
	}
	mgr.NotifyStreamReady(1)

	var resubmitted atomic.Bool
	mon := cfg.Monitors[0]
	mon.Connector = "HDMI-1" // non-virtual
	mgr.OnStreamClosedExternally(mon)

	// Recreation re-runs SubmitConfig, which moves the manager back out of
	// START_RENDERING while streams are reconfirmed.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if mgr.State() != StateStartRendering {
			resubmitted.Store(true)
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !resubmitted.Load() {
		t.Fatal("expected recreation timer to resubmit last config")
	}
}
