// Package playback implements RDPSND audio playback over a DVC (spec.md
// §4.9): the version/format negotiation FSM, sample pacing, and a
// PipeWire sink-per-node adapter interface.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("audio-playback")

// State is the RDPSND negotiation FSM (spec.md §4.9).
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

// DataSubstate tracks the AWAIT_INCOMING_DATA <-> AWAIT_DATA runtime
// substates active only while State == StateComplete.
type DataSubstate int

const (
	SubstateAwaitIncomingData DataSubstate = iota
	SubstateAwaitData
)

// PDUSink emits RDPSND DVC PDUs.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

type ServerFormatsPDU struct {
	Formats []codec.Format
}

type TrainingPDU struct{}

// Sink is the PipeWire sink-per-node adapter: the playback FSM writes
// decoded PCM to it. Per-block latency reaches the FSM separately, through
// RecordLatency.
type Sink interface {
	Write(pcm []int16) error
	SetMute(muted bool)
	SetVolume(channel int, volume float64)
}

const (
	frameMaxLifetime    = 50 * time.Millisecond
	backpressureWindow  = 1 * time.Second
	backpressureLatency = 300 * time.Millisecond
	silenceReleaseDefault = 5 * time.Second
	silenceReleaseOpus    = 10 * time.Second
)

// FSM drives one RDPSND session end to end.
type FSM struct {
	mu sync.Mutex

	sink PDUSink
	out  Sink

	state    State
	substate DataSubstate

	negotiated codec.Format
	backend    codec.Backend

	queue     [][]int16
	queuedAt  []time.Time
	latencies []time.Duration

	lastSoundAt time.Time
}

func NewFSM(sink PDUSink, out Sink) *FSM {
	return &FSM{sink: sink, out: out, state: StateAwaitVersion, lastSoundAt: time.Time{}}
}

func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnClientVersion advances AWAIT_VERSION -> AWAIT_INCOMING_DATA. The
// server format list is offered later, by OnClientIncomingData.
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
	return f.sink.SendPDU("RDPSND", ServerFormatsPDU{Formats: codec.PlaybackOffers})
}

// OnClientFormats selects the first mutually supported format
// (spec.md §4.9's "first match wins"); no match tears down the session.
func (f *FSM) OnClientFormats(clientSupported map[codec.FormatID]bool, backendFor func(codec.Format) codec.Backend) error {
	f.mu.Lock()
	if f.state != StateAwaitFormats {
		f.mu.Unlock()
		return f.violation("unexpected client formats PDU")
	}

	chosen, ok := codec.SelectFirstSupported(codec.PlaybackOffers, clientSupported)
	if !ok {
		f.state = StateTornDown
		f.mu.Unlock()
		return fmt.Errorf("no mutually supported playback format")
	}
	f.negotiated = chosen
	f.backend = backendFor(chosen)
	f.state = StateAwaitFormatChange
	f.mu.Unlock()
	return nil
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
	f.state = StateComplete
	f.substate = SubstateAwaitIncomingData
	f.mu.Unlock()
	return nil
}

func (f *FSM) violation(msg string) error {
	f.mu.Lock()
	f.state = StateTornDown
	f.mu.Unlock()
	log.Error("rdpsnd protocol violation", "reason", msg)
	return fmt.Errorf("rdpsnd protocol violation: %s", msg)
}

// QueueFrame enqueues a decoded PCM frame during StateComplete, subject
// to pacing: entries older than frameMaxLifetime are dropped, and the
// queue is dropped entirely under sustained backpressure.
func (f *FSM) QueueFrame(pcm []int16, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateComplete {
		return fmt.Errorf("rdpsnd: cannot queue audio outside COMPLETE state")
	}

	f.pruneLocked(now)

	if f.averageLatencyLocked() > backpressureLatency {
		f.queue = nil
		f.queuedAt = nil
		log.Warn("rdpsnd backpressure: dropping playback queue")
	}

	f.queue = append(f.queue, pcm)
	f.queuedAt = append(f.queuedAt, now)
	return nil
}

func (f *FSM) pruneLocked(now time.Time) {
	i := 0
	for i < len(f.queuedAt) && now.Sub(f.queuedAt[i]) > frameMaxLifetime {
		i++
	}
	f.queue = f.queue[i:]
	f.queuedAt = f.queuedAt[i:]
}

// RecordLatency appends a per-block render-latency sample. The window
// keeps the most recent 64 samples whatever their age; now is not used.
func (f *FSM) RecordLatency(d time.Duration, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencies = append(f.latencies, d)
	if len(f.latencies) > 64 {
		f.latencies = f.latencies[len(f.latencies)-64:]
	}
}

func (f *FSM) averageLatencyLocked() time.Duration {
	if len(f.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range f.latencies {
		total += d
	}
	return total / time.Duration(len(f.latencies))
}

// FlushReady concatenates the queued frames and writes them to the sink
// in chunks of frameSize samples; samples short of a full chunk stay
// queued for the next call. Chunks are written as PCM: the negotiated
// backend is only checked for presence and does not encode them.
func (f *FSM) FlushReady(frameSize int) error {
	f.mu.Lock()
	if f.backend == nil || frameSize <= 0 {
		f.mu.Unlock()
		return nil
	}
	var combined []int16
	for _, frame := range f.queue {
		combined = append(combined, frame...)
	}
	var lastAt time.Time
	if n := len(f.queuedAt); n > 0 {
		lastAt = f.queuedAt[n-1]
	}
	f.queue = nil
	f.queuedAt = nil
	if rem := len(combined) % frameSize; rem > 0 {
		f.queue = [][]int16{combined[len(combined)-rem:]}
		f.queuedAt = []time.Time{lastAt}
		combined = combined[:len(combined)-rem]
	}
	f.mu.Unlock()

	for len(combined) >= frameSize {
		chunk := combined[:frameSize]
		combined = combined[frameSize:]
		if err := f.out.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// SilenceReleaseTimeout returns how long a node may produce only
// silence before it is released, per spec.md §4.9 (longer for Opus).
func (f *FSM) SilenceReleaseTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.negotiated.ID == codec.FormatOpus {
		return silenceReleaseOpus
	}
	return silenceReleaseDefault
}
