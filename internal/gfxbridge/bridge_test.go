package gfxbridge

import (
	"errors"
	"sync"
	"testing"
	"time"
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

type fakeEncoder struct{ closed bool }

func (e *fakeEncoder) EncodeFrame(pixels []byte, width, height int) ([]byte, error) {
	return []byte("frame"), nil
}
func (e *fakeEncoder) Close() { e.closed = true }

func TestResetGraphicsEmitsPDU(t *testing.T) {
	sink := &fakeSink{}
	b := NewBridge(sink, func() (Encoder, error) { return &fakeEncoder{}, nil })

	err := b.ResetGraphics(1920, 1080, []MonitorDef{{Right: 1919, Bottom: 1079, Primary: true}})
	if err != nil {
		t.Fatalf("ResetGraphics: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("sink.count() = %d, want 1", sink.count())
	}
}

func TestCreateAndDeleteSurface(t *testing.T) {
	sink := &fakeSink{}
	var enc *fakeEncoder
	b := NewBridge(sink, func() (Encoder, error) {
		enc = &fakeEncoder{}
		return enc, nil
	})

	if err := b.CreateSurface(1, 800, 600); err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if err := b.DeleteSurface(1); err != nil {
		t.Fatalf("DeleteSurface: %v", err)
	}
	if !enc.closed {
		t.Fatal("expected encoder to be closed on DeleteSurface")
	}
}

func TestCreateSurfaceEncoderFailureReportsError(t *testing.T) {
	sink := &fakeSink{}
	b := NewBridge(sink, func() (Encoder, error) { return nil, errors.New("no hardware encoder") })

	var reported error
	b.OnError(func(err error) { reported = err })

	if err := b.CreateSurface(1, 800, 600); err == nil {
		t.Fatal("expected CreateSurface to fail")
	}
	if reported == nil {
		t.Fatal("expected OnError callback to fire")
	}
}

func TestRefreshFrameUnknownSurfaceErrors(t *testing.T) {
	sink := &fakeSink{}
	b := NewBridge(sink, func() (Encoder, error) { return &fakeEncoder{}, nil })

	if err := b.RefreshFrame(99, 0, nil); err == nil {
		t.Fatal("expected error for unknown surface")
	}
}

func TestRoundTripTimeReducesAdmissionRate(t *testing.T) {
	sink := &fakeSink{}
	b := NewBridge(sink, func() (Encoder, error) { return &fakeEncoder{}, nil })
	_ = b.CreateSurface(1, 800, 600)

	b.OnRoundTripTime(50 * time.Millisecond)
	for i := uint64(0); i < 10; i++ {
		_ = b.RefreshFrame(1, i, nil)
	}
	fullRateCount := sink.count()

	b.OnRoundTripTime(600 * time.Millisecond)
	sink.mu.Lock()
	sink.pdus = nil
	sink.mu.Unlock()
	for i := uint64(0); i < 10; i++ {
		_ = b.RefreshFrame(1, i, nil)
	}
	droppedRateCount := sink.count()

	if droppedRateCount >= fullRateCount {
		t.Fatalf("expected fewer frames admitted under high RTT: full=%d dropped=%d", fullRateCount, droppedRateCount)
	}
}
