package clipboard

import (
	"sync"
	"testing"
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

func (s *fakeSink) last() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pdus) == 0 {
		return nil
	}
	return s.pdus[len(s.pdus)-1]
}

func TestPublishMimesSendsFormatList(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink)

	if err := p.PublishMimes([]string{"text/plain"}); err != nil {
		t.Fatalf("PublishMimes: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("sink.count() = %d, want 1", sink.count())
	}
}

func TestPublishMimesQueuesWhileInFlight(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink)

	_ = p.PublishMimes([]string{"text/plain"})
	_ = p.PublishMimes([]string{"image/png"})

	if sink.count() != 1 {
		t.Fatalf("expected second publish to queue, sink.count() = %d", sink.count())
	}

	p.OnFormatListResponse(FormatListResponseOK, nil)
	if sink.count() != 2 {
		t.Fatalf("expected queued update dispatched, sink.count() = %d", sink.count())
	}
}

func TestOnFormatListResponseOKMarksAllowed(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink)
	_ = p.PublishMimes([]string{"text/plain"})

	p.OnFormatListResponse(FormatListResponseOK, []string{"text/plain"})
	if !p.IsAllowed("text/plain") {
		t.Fatal("expected text/plain to be allowed after OK response")
	}
}

func TestOnFormatListResponseFailClearsAllowed(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink)
	_ = p.PublishMimes([]string{"text/plain"})
	p.OnFormatListResponse(FormatListResponseOK, []string{"text/plain"})

	_ = p.PublishMimes([]string{"image/png"})
	p.OnFormatListResponse(FormatListResponseFail, nil)

	if p.IsAllowed("text/plain") {
		t.Fatal("expected allowed set cleared on failure response")
	}
}
