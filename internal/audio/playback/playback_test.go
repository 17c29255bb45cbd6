package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
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

type fakeOut struct {
	mu     sync.Mutex
	writes [][]int16
}

func (o *fakeOut) Write(pcm []int16) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = append(o.writes, pcm)
	return nil
}
func (o *fakeOut) SetMute(bool)          {}
func (o *fakeOut) SetVolume(int, float64) {}

func driveToComplete(t *testing.T, f *FSM) {
	t.Helper()
	if err := f.OnClientVersion(); err != nil {
		t.Fatalf("OnClientVersion: %v", err)
	}
	if err := f.OnClientIncomingData(); err != nil {
		t.Fatalf("OnClientIncomingData: %v", err)
	}
	if err := f.OnClientFormats(map[codec.FormatID]bool{codec.FormatPCM: true}, func(fmt codec.Format) codec.Backend {
		return codec.ALawBackend{}
	}); err != nil {
		t.Fatalf("OnClientFormats: %v", err)
	}
	if err := f.OnFormatChangeAck(); err != nil {
		t.Fatalf("OnFormatChangeAck: %v", err)
	}
	if err := f.OnOpenReply(); err != nil {
		t.Fatalf("OnOpenReply: %v", err)
	}
}

func TestHappyPathReachesComplete(t *testing.T) {
	sink := &fakeSink{}
	f := NewFSM(sink, &fakeOut{})
	driveToComplete(t, f)
	if f.State() != StateComplete {
		t.Fatalf("State() = %v, want COMPLETE", f.State())
	}
}

func TestUnexpectedPDUTriggersTeardown(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	if err := f.OnOpenReply(); err == nil {
		t.Fatal("expected protocol violation error")
	}
	if f.State() != StateTornDown {
		t.Fatalf("State() = %v, want TORN_DOWN", f.State())
	}
}

func TestNoMutuallySupportedFormatTearsDown(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	_ = f.OnClientVersion()
	_ = f.OnClientIncomingData()

	err := f.OnClientFormats(map[codec.FormatID]bool{}, func(codec.Format) codec.Backend { return nil })
	if err == nil {
		t.Fatal("expected error for no supported formats")
	}
	if f.State() != StateTornDown {
		t.Fatalf("State() = %v, want TORN_DOWN", f.State())
	}
}

func TestQueueFrameOutsideCompleteFails(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	if err := f.QueueFrame([]int16{1, 2, 3}, time.Now()); err == nil {
		t.Fatal("expected error queuing outside COMPLETE")
	}
}

func TestQueueFramePrunesStaleEntries(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	driveToComplete(t, f)

	base := time.Now()
	_ = f.QueueFrame([]int16{1}, base)
	_ = f.QueueFrame([]int16{2}, base.Add(100*time.Millisecond))

	f.mu.Lock()
	n := len(f.queue)
	f.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected stale frame pruned, queue len = %d", n)
	}
}

func TestBackpressureDropsQueueWhenLatencyHigh(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	driveToComplete(t, f)

	now := time.Now()
	for i := 0; i < 5; i++ {
		f.RecordLatency(400*time.Millisecond, now)
	}
	_ = f.QueueFrame([]int16{1}, now)
	_ = f.QueueFrame([]int16{2}, now)

	f.mu.Lock()
	n := len(f.queue)
	f.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected queue dropped and refilled with only the latest frame, got %d", n)
	}
}

func TestSilenceReleaseTimeoutLongerForOpus(t *testing.T) {
	f := NewFSM(&fakeSink{}, &fakeOut{})
	_ = f.OnClientVersion()
	_ = f.OnClientIncomingData()
	_ = f.OnClientFormats(map[codec.FormatID]bool{codec.FormatOpus: true}, func(codec.Format) codec.Backend { return nil })

	if got := f.SilenceReleaseTimeout(); got != silenceReleaseOpus {
		t.Fatalf("SilenceReleaseTimeout() = %v, want %v", got, silenceReleaseOpus)
	}
}
