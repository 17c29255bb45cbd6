// Package gfxbridge implements the GFX Pipeline Bridge (spec.md §4.5): it
// owns the GFX DVC handle, an optional hardware encoder, and a per-surface
// progressive RFX software encoder, emits ResetGraphics/CreateSurface/
// DeleteSurface, and adjusts its admission rate from round-trip-time
// updates reported by the network-autodetection collaborator.
package gfxbridge

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("gfxbridge")

// MonitorDef is the per-monitor rectangle+flags carried in ResetGraphics,
// matching spec.md S1's expected PDU shape.
type MonitorDef struct {
	Left, Top, Right, Bottom int
	Primary                  bool
}

// PDUSink emits GFX DVC PDUs.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

// Encoder is a per-surface frame encoder (hardware or the progressive RFX
// software fallback). The actual codec implementation is an external
// collaborator; the bridge only allocates and drives it.
type Encoder interface {
	EncodeFrame(pixels []byte, width, height int) ([]byte, error)
	Close()
}

// EncoderFactory allocates an Encoder for a surface. Returning an error
// models a hardware-encoder allocation failure (spec.md §4.5).
type EncoderFactory func() (Encoder, error)

// ResetGraphicsPDU mirrors the ResetGraphics PDU referenced in spec.md S1.
type ResetGraphicsPDU struct {
	Width, Height int
	Monitors      []MonitorDef
}

type CreateSurfacePDU struct {
	SurfaceID     uint32
	Width, Height int
}

type DeleteSurfacePDU struct {
	SurfaceID uint32
}

type SurfaceFrameUpdatePDU struct {
	SurfaceID uint32
	Payload   []byte
}

type trackedSurface struct {
	encoder Encoder
	width   int
	height  int
}

// Bridge is the per-session GFX Pipeline Bridge.
type Bridge struct {
	sink    PDUSink
	factory EncoderFactory

	mu       sync.Mutex
	surfaces map[uint32]*trackedSurface

	admissionRate float64 // fraction of frames admitted, [0,1]

	onError func(err error)
}

func NewBridge(sink PDUSink, factory EncoderFactory) *Bridge {
	return &Bridge{
		sink:          sink,
		factory:       factory,
		surfaces:      make(map[uint32]*trackedSurface),
		admissionRate: 1.0,
	}
}

// OnError registers the callback invoked when encoder allocation fails;
// the session runtime maps this to notify_error(GraphicsSubsystemFailed).
func (b *Bridge) OnError(fn func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// ResetGraphics is emitted once per PendingGfxReset (spec.md §4.5).
func (b *Bridge) ResetGraphics(width, height int, monitors []MonitorDef) error {
	return b.sink.SendPDU("RDPGFX", ResetGraphicsPDU{Width: width, Height: height, Monitors: monitors})
}

// CreateSurface tracks a render surface and allocates its encoder.
func (b *Bridge) CreateSurface(surfaceID uint32, width, height int) error {
	encoder, err := b.factory()
	if err != nil {
		b.fail(fmt.Errorf("allocate gfx encoder for surface %d: %w", surfaceID, err))
		return err
	}

	b.mu.Lock()
	b.surfaces[surfaceID] = &trackedSurface{encoder: encoder, width: width, height: height}
	b.mu.Unlock()

	return b.sink.SendPDU("RDPGFX", CreateSurfacePDU{SurfaceID: surfaceID, Width: width, Height: height})
}

// DeleteSurface tears down a tracked surface and releases its encoder.
func (b *Bridge) DeleteSurface(surfaceID uint32) error {
	b.mu.Lock()
	surf, ok := b.surfaces[surfaceID]
	delete(b.surfaces, surfaceID)
	b.mu.Unlock()

	if ok && surf.encoder != nil {
		surf.encoder.Close()
	}
	return b.sink.SendPDU("RDPGFX", DeleteSurfacePDU{SurfaceID: surfaceID})
}

// RefreshFrame encodes and submits one frame for a tracked surface, subject
// to the current admission rate (frames dropped when the rate is below 1).
func (b *Bridge) RefreshFrame(surfaceID uint32, frameIndex uint64, pixels []byte) error {
	b.mu.Lock()
	surf, ok := b.surfaces[surfaceID]
	rate := b.admissionRate
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("refresh frame: unknown surface %d", surfaceID)
	}

	if !admit(frameIndex, rate) {
		return nil
	}

	payload, err := surf.encoder.EncodeFrame(pixels, surf.width, surf.height)
	if err != nil {
		b.fail(fmt.Errorf("encode frame for surface %d: %w", surfaceID, err))
		return err
	}
	return b.sink.SendPDU("RDPGFX", SurfaceFrameUpdatePDU{SurfaceID: surfaceID, Payload: payload})
}

// admit decides whether frameIndex is sent under a fractional admission
// rate, spreading drops evenly rather than bursting.
func admit(frameIndex uint64, rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}
	step := 1.0 / rate
	return math.Mod(float64(frameIndex), step) < 1.0
}

// OnRoundTripTime adjusts the admission rate from network-autodetect RTT
// samples: above 150ms the bridge starts shedding frames, scaling down to
// a floor of 10% by 600ms.
func (b *Bridge) OnRoundTripTime(rtt time.Duration) {
	const (
		floorRTT = 150 * time.Millisecond
		ceilRTT  = 600 * time.Millisecond
		minRate  = 0.1
	)

	var rate float64
	switch {
	case rtt <= floorRTT:
		rate = 1.0
	case rtt >= ceilRTT:
		rate = minRate
	default:
		frac := float64(rtt-floorRTT) / float64(ceilRTT-floorRTT)
		rate = 1.0 - frac*(1.0-minRate)
	}

	b.mu.Lock()
	b.admissionRate = rate
	b.mu.Unlock()
	log.Debug("gfx admission rate adjusted", "rtt", rtt, "rate", rate)
}

func (b *Bridge) fail(err error) {
	b.mu.Lock()
	cb := b.onError
	b.mu.Unlock()
	log.Error("gfx pipeline bridge failure", "error", err)
	if cb != nil {
		cb(err)
	}
}
