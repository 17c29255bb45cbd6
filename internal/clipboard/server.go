package clipboard

import (
	"sync"
	"time"
)

// PDUSink emits CLIPRDR DVC PDUs.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

// FormatListPDU advertises the host's currently available formats.
type FormatListPDU struct {
	Formats []FormatEntry
}

// FormatListResponseStatus mirrors CB_RESPONSE_OK / CB_RESPONSE_FAIL.
type FormatListResponseStatus int

const (
	FormatListResponseOK FormatListResponseStatus = iota
	FormatListResponseFail
)

const formatListResponseTimeout = 4 * time.Second

// FormatListResponsePDU acknowledges a ClientFormatList.
type FormatListResponsePDU struct {
	Status FormatListResponseStatus
}

// Publisher drives the server->client direction: advertising host mime
// types, queuing the next update while one is in flight, and tracking
// which formats the client has accepted for server->client requests.
type Publisher struct {
	mu sync.Mutex

	sink PDUSink

	inFlight bool
	queued   *[]string
	timer    *time.Timer

	allowed map[string]bool
}

func NewPublisher(sink PDUSink) *Publisher {
	return &Publisher{sink: sink, allowed: make(map[string]bool)}
}

// PublishMimes advertises a new host format set. If a FormatList is
// already in flight, the update is queued, replacing any earlier queued
// value (spec.md §4.8).
func (p *Publisher) PublishMimes(mimes []string) error {
	p.mu.Lock()
	if p.inFlight {
		cp := append([]string(nil), mimes...)
		p.queued = &cp
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	p.mu.Unlock()

	return p.send(mimes)
}

func (p *Publisher) send(mimes []string) error {
	entries := BuildFormatList(mimes)
	if err := p.sink.SendPDU("CLIPRDR", FormatListPDU{Formats: entries}); err != nil {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.timer = time.AfterFunc(formatListResponseTimeout, func() {
		log.Warn("format list response timed out")
		p.OnFormatListResponse(FormatListResponseFail, nil)
	})
	p.mu.Unlock()
	return nil
}

// OnFormatListResponse processes the client's FormatListResponse. A
// CB_RESPONSE_OK marks accepted mimes allowed for server->client
// requests; otherwise (or on timeout) the allowed set is cleared. Any
// queued update is then dispatched.
func (p *Publisher) OnFormatListResponse(status FormatListResponseStatus, acceptedMimes []string) {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	if status == FormatListResponseOK {
		p.allowed = make(map[string]bool, len(acceptedMimes))
		for _, m := range acceptedMimes {
			p.allowed[m] = true
		}
	} else {
		p.allowed = make(map[string]bool)
	}

	queued := p.queued
	p.queued = nil
	if queued == nil {
		p.inFlight = false
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	_ = p.send(*queued)
}

// IsAllowed reports whether the client has accepted the given mime type
// for server->client data requests.
func (p *Publisher) IsAllowed(mime string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowed[mime]
}
