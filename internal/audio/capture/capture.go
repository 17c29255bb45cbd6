// Package capture implements AUDIN audio input over a DVC (spec.md
// §4.10): version/format negotiation, decoding client frames into PCM,
// and forwarding them to a PipeWire source stream.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("audio-capture")

type State int

const (
	StateAwaitVersion State = iota
	StateAwaitIncomingData
	StateAwaitFormats
	StateAwaitFormatChange
	StateAwaitOpenReply
	StateComplete
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateAwaitVersion:
		return "AWAIT_VERSION"
	case StateAwaitIncomingData:
		return "AWAIT_INCOMING_DATA"
	case StateAwaitFormats:
		return "AWAIT_FORMATS"
	case StateAwaitFormatChange:
		return "AWAIT_FORMAT_CHANGE"
	case StateAwaitOpenReply:
		return "AWAIT_OPEN_REPLY"
	case StateComplete:
		return "COMPLETE"
	case StateTornDown:
		return "TORN_DOWN"
	default:
		return "UNKNOWN"
	}
}

const (
	openReplyTimeout  = 10 * time.Second
	staleFrameDiscard = 200 * time.Millisecond
)

// PDUSink emits AUDIN DVC PDUs.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

type ServerFormatsPDU struct {
	Formats []codec.Format
}

// Source is the PipeWire source stream (44.1 kHz stereo) decoded PCM is
// pushed to.
type Source interface {
	Push(pcm []int16) error
}

// FSM drives one AUDIN session end to end.
type FSM struct {
	mu sync.Mutex

	sink PDUSink
	src  Source

	state      State
	negotiated codec.Format
	backend    codec.Backend

	openReplyTimer *time.Timer
}

func NewFSM(sink PDUSink, src Source) *FSM {
	return &FSM{sink: sink, src: src, state: StateAwaitVersion}
}

func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FSM) OnClientVersion() error {
	f.mu.Lock()
	if f.state != StateAwaitVersion {
		f.mu.Unlock()
		return f.violation("unexpected client version PDU")
	}
	f.state = StateAwaitIncomingData
	f.mu.Unlock()
	return nil
}

func (f *FSM) OnClientIncomingData() error {
	f.mu.Lock()
	if f.state != StateAwaitIncomingData {
		f.mu.Unlock()
		return f.violation("unexpected incoming-data PDU")
	}
	f.state = StateAwaitFormats
	f.mu.Unlock()
	return f.sink.SendPDU("AUDIN", ServerFormatsPDU{Formats: codec.CaptureOffers})
}

func (f *FSM) OnClientFormats(clientSupported map[codec.FormatID]bool, backendFor func(codec.Format) codec.Backend) error {
	f.mu.Lock()
	if f.state != StateAwaitFormats {
		f.mu.Unlock()
		return f.violation("unexpected client formats PDU")
	}

	chosen, ok := codec.SelectFirstSupported(codec.CaptureOffers, clientSupported)
	if !ok {
		f.state = StateTornDown
		f.mu.Unlock()
		return fmt.Errorf("no mutually supported capture format")
	}
	f.negotiated = chosen
	f.backend = backendFor(chosen)
	f.state = StateAwaitFormatChange

	f.armOpenReplyTimeoutLocked()
	f.mu.Unlock()
	return nil
}

func (f *FSM) armOpenReplyTimeoutLocked() {
	f.openReplyTimer = time.AfterFunc(openReplyTimeout, func() {
		f.mu.Lock()
		if f.state == StateAwaitOpenReply || f.state == StateAwaitFormatChange {
			f.state = StateTornDown
			f.mu.Unlock()
			log.Warn("audin open reply timed out, tearing down")
			return
		}
		f.mu.Unlock()
	})
}

func (f *FSM) OnFormatChangeAck() error {
	f.mu.Lock()
	if f.state != StateAwaitFormatChange {
		f.mu.Unlock()
		return f.violation("unexpected format-change ack")
	}
	f.state = StateAwaitOpenReply
	f.mu.Unlock()
	return nil
}

func (f *FSM) OnOpenReply() error {
	f.mu.Lock()
	if f.state != StateAwaitOpenReply {
		f.mu.Unlock()
		return f.violation("unexpected open reply")
	}
	if f.openReplyTimer != nil {
		f.openReplyTimer.Stop()
		f.openReplyTimer = nil
	}
	f.state = StateComplete
	f.mu.Unlock()
	return nil
}

func (f *FSM) violation(msg string) error {
	f.mu.Lock()
	f.state = StateTornDown
	f.mu.Unlock()
	log.Error("audin protocol violation", "reason", msg)
	return fmt.Errorf("audin protocol violation: %s", msg)
}

// OnDataFrame decodes one client Data PDU and pushes the result to the
// source stream, discarding it first if it arrived stale
// (spec.md §4.10: frames older than 200ms are discarded before
// emission).
func (f *FSM) OnDataFrame(frame []byte, capturedAt, now time.Time) error {
	f.mu.Lock()
	if f.state != StateComplete {
		f.mu.Unlock()
		return fmt.Errorf("audin: data frame outside COMPLETE state")
	}
	backend := f.backend
	f.mu.Unlock()

	if now.Sub(capturedAt) > staleFrameDiscard {
		return nil
	}

	pcm, err := backend.Decode(frame)
	if err != nil {
		return fmt.Errorf("decode audin frame: %w", err)
	}
	return f.src.Push(pcm)
}
