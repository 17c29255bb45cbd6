package dispctl

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
)

type fakeSink struct {
	mu   sync.Mutex
	pdus []any
}

func (s *fakeSink) SendPDU(channelName string, pdu any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pdus = append(s.pdus, pdu)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pdus)
}

type fakeHost struct{ next uint32 }

func (h *fakeHost) CreateStream(m layout.Monitor) (uint32, error) {
	h.next++
	return h.next, nil
}
func (h *fakeHost) UpdateStreamParams(streamID uint32, m layout.Monitor) error { return nil }
func (h *fakeHost) DestroyStream(streamID uint32) error                       { return nil }

type fakeErrorReporter struct {
	mu   sync.Mutex
	errs []error
}

func (f *fakeErrorReporter) NotifyBadMonitorData(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeErrorReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}

func TestOnChannelReadyEmitsCaps(t *testing.T) {
	sink := &fakeSink{}
	mgr := layout.NewManager(&fakeHost{}, 16, 50*time.Millisecond)
	c := NewController(sink, mgr, 16, &fakeErrorReporter{})

	if err := c.OnChannelReady(); err != nil {
		t.Fatalf("OnChannelReady: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("sink.count() = %d, want 1", sink.count())
	}
	caps := sink.pdus[0].(DisplayControlCapsPDU)
	if caps.MaxNumMonitors != 16 || caps.MaxMonitorAreaFactorA != monitorAreaFactor {
		t.Fatalf("unexpected caps: %+v", caps)
	}
}

func TestOnMonitorLayoutSubmitsValidConfig(t *testing.T) {
	sink := &fakeSink{}
	mgr := layout.NewManager(&fakeHost{}, 16, 50*time.Millisecond)
	errs := &fakeErrorReporter{}
	c := NewController(sink, mgr, 16, errs)

	c.OnMonitorLayout(MonitorLayoutPDU{
		IsVirtual: true,
		Monitors: []layout.Monitor{
			{Connector: "virt-0", Width: 1920, Height: 1080, IsPrimary: true, Scale: 100},
		},
	})

	if errs.count() != 0 {
		t.Fatalf("expected no errors, got %d", errs.count())
	}
	if mgr.State() == layout.StateFatalError {
		t.Fatal("expected manager to accept the config")
	}
}

func TestOnMonitorLayoutExceedingCapReportsBadMonitorData(t *testing.T) {
	sink := &fakeSink{}
	mgr := layout.NewManager(&fakeHost{}, 1, 50*time.Millisecond)
	errs := &fakeErrorReporter{}
	c := NewController(sink, mgr, 1, errs)

	monitors := make([]layout.Monitor, 2)
	for i := range monitors {
		monitors[i] = layout.Monitor{Connector: fmt.Sprintf("virt-%d", i), Width: 800, Height: 600, Scale: 100}
	}
	monitors[0].IsPrimary = true

	c.OnMonitorLayout(MonitorLayoutPDU{IsVirtual: true, Monitors: monitors})

	if errs.count() != 1 {
		t.Fatalf("expected 1 bad-monitor-data report, got %d", errs.count())
	}
}

func TestOnMonitorLayoutOverlappingReportsBadMonitorData(t *testing.T) {
	sink := &fakeSink{}
	mgr := layout.NewManager(&fakeHost{}, 16, 50*time.Millisecond)
	errs := &fakeErrorReporter{}
	c := NewController(sink, mgr, 16, errs)

	c.OnMonitorLayout(MonitorLayoutPDU{
		IsVirtual: true,
		Monitors: []layout.Monitor{
			{Connector: "a", Width: 800, Height: 600, IsPrimary: true, Scale: 100},
			{Connector: "b", PosX: 100, PosY: 100, Width: 800, Height: 600, Scale: 100},
		},
	})

	if errs.count() != 1 {
		t.Fatalf("expected 1 bad-monitor-data report for overlap, got %d", errs.count())
	}
}
