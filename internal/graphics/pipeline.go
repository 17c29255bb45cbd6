package graphics

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/workerpool"
)

var log = logging.L("graphics")

// RFXEncoder produces one or more bounded-size RemoteFX messages covering
// the given damage. The actual codec (RFX/Progressive) is an external
// collaborator (spec.md Non-goals: "we orchestrate an encoder, not
// implement its DCT").
type RFXEncoder interface {
	EncodeMessages(damage []Rect, buf *Buffer, maxMessageSize uint32) ([][]byte, error)
}

// NSCEncoder compresses one damaged rect. A fresh context must be used per
// invocation since the NSC codec is not reentrant across a reset
// (spec.md §4.4).
type NSCEncoder interface {
	EncodeRect(rect Rect, buf *Buffer) ([]byte, error)
}

// TileCompressor compresses a single raw tile, planar for 32-bit color
// depth, interleaved otherwise.
type TileCompressor interface {
	CompressPlanar(buf *Buffer, rect Rect) ([]byte, error)
	CompressInterleaved(buf *Buffer, rect Rect, colorDepth int) ([]byte, error)
}

// PDUSink emits the encoded PDUs. Implemented by the peer.Connection
// adapter; narrowed here so the pipeline doesn't depend on the whole
// peer.Connection surface.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

// FrameMarkerBegin / FrameMarkerEnd bracket a frame submission, per
// spec.md §4.4, when the client opted into frame acknowledgement.
type FrameMarkerBegin struct{ FrameID uint32 }
type FrameMarkerEnd struct{ FrameID uint32 }

// StreamSurfaceBitsPDU / SurfaceFrameBitsPDU carry one RFX message.
type StreamSurfaceBitsPDU struct {
	StreamID uint32
	Message  []byte
}
type SurfaceFrameBitsPDU struct {
	StreamID uint32
	FrameID  uint32
	Message  []byte
}

// SetSurfaceBitsPDU carries one NSC-compressed rect.
type SetSurfaceBitsPDU struct {
	StreamID   uint32
	Rect       Rect
	Compressed []byte
}

// BitmapUpdatePDU carries a batch of raw compressed tiles.
type BitmapUpdatePDU struct {
	StreamID int
	Tiles    []Tile
}

// Pipeline is the per-session Graphics Submission Pipeline (spec.md §4.4).
type Pipeline struct {
	sink     PDUSink
	rfx      RFXEncoder
	nsc      NSCEncoder
	tiles    TileCompressor
	pool     *workerpool.Pool
	frameSeq atomic.Uint32

	detectorsMu sync.Mutex
	detectors   map[uint32]*Detector // keyed by stream id
}

func NewPipeline(sink PDUSink, rfx RFXEncoder, nsc NSCEncoder, tiles TileCompressor, pool *workerpool.Pool) *Pipeline {
	return &Pipeline{
		sink:      sink,
		rfx:       rfx,
		nsc:       nsc,
		tiles:     tiles,
		pool:      pool,
		detectors: make(map[uint32]*Detector),
	}
}

// DetectorFor returns (creating if needed) the damage detector for a stream.
func (p *Pipeline) DetectorFor(streamID uint32) *Detector {
	p.detectorsMu.Lock()
	defer p.detectorsMu.Unlock()
	d, ok := p.detectors[streamID]
	if !ok {
		d = NewDetector()
		p.detectors[streamID] = d
	}
	return d
}

// SubmitFrame runs the codec selection and dispatch described in
// spec.md §4.4. wantsAck gates frame marker emission. Returns nil without
// emitting any PDU if the damage region is empty (spec property 8).
func (p *Pipeline) SubmitFrame(streamID uint32, buf *Buffer, caps Capabilities, maxFragSize uint32, colorDepth int, wantsAck bool) error {
	detector := p.DetectorFor(streamID)
	damage := detector.Diff(buf)
	if len(damage) == 0 {
		return nil
	}

	codec := SelectCodec(caps)
	if codec == CodecGFX {
		// GFX-path submission is owned by the GFX Pipeline Bridge; the
		// damage computed above is not passed on to it, and this path
		// emits no PDU.
		return nil
	}

	frameID := p.frameSeq.Add(1)
	if wantsAck {
		if err := p.sink.SendPDU("", FrameMarkerBegin{FrameID: frameID}); err != nil {
			return fmt.Errorf("send frame marker begin: %w", err)
		}
	}

	var err error
	switch codec {
	case CodecRFX:
		err = p.submitRFX(streamID, buf, damage, maxFragSize, frameID)
	case CodecNSC:
		err = p.submitNSC(streamID, buf, damage)
	default:
		err = p.submitRaw(streamID, buf, damage, maxFragSize, colorDepth)
	}
	if err != nil {
		return err
	}

	if wantsAck {
		if err := p.sink.SendPDU("", FrameMarkerEnd{FrameID: frameID}); err != nil {
			return fmt.Errorf("send frame marker end: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) submitRFX(streamID uint32, buf *Buffer, damage []Rect, maxFragSize uint32, frameID uint32) error {
	messages, err := p.rfx.EncodeMessages(damage, buf, maxFragSize)
	if err != nil {
		return fmt.Errorf("rfx encode: %w", err)
	}
	for i, msg := range messages {
		var pdu any
		if i == len(messages)-1 {
			pdu = SurfaceFrameBitsPDU{StreamID: streamID, FrameID: frameID, Message: msg}
		} else {
			pdu = StreamSurfaceBitsPDU{StreamID: streamID, Message: msg}
		}
		if err := p.sink.SendPDU("", pdu); err != nil {
			return fmt.Errorf("send rfx pdu: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) submitNSC(streamID uint32, buf *Buffer, damage []Rect) error {
	var wg sync.WaitGroup
	results := make([]SetSurfaceBitsPDU, len(damage))
	errs := make([]error, len(damage))

	for i, rect := range damage {
		i, rect := i, rect
		wg.Add(1)
		submitted := p.pool.Submit(func() {
			defer wg.Done()
			compressed, err := p.nsc.EncodeRect(rect, buf)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = SetSurfaceBitsPDU{StreamID: streamID, Rect: rect, Compressed: compressed}
		})
		if !submitted {
			wg.Done()
			compressed, err := p.nsc.EncodeRect(rect, buf)
			if err != nil {
				errs[i] = err
				continue
			}
			results[i] = SetSurfaceBitsPDU{StreamID: streamID, Rect: rect, Compressed: compressed}
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("nsc encode rect %d: %w", i, err)
		}
	}
	for _, pdu := range results {
		if err := p.sink.SendPDU("", pdu); err != nil {
			return fmt.Errorf("send nsc pdu: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) submitRaw(streamID uint32, buf *Buffer, damage []Rect, maxFragSize uint32, colorDepth int) error {
	var allTiles []Tile
	for _, rect := range damage {
		for _, aligned := range AlignTileRect(rect, buf.Width, buf.Height) {
			var compressed []byte
			var err error
			if IsPlanar(colorDepth) {
				compressed, err = p.tiles.CompressPlanar(buf, aligned)
			} else {
				compressed, err = p.tiles.CompressInterleaved(buf, aligned, colorDepth)
			}
			if err != nil {
				return fmt.Errorf("compress tile: %w", err)
			}
			allTiles = append(allTiles, Tile{Rect: aligned, Compressed: compressed, BitsPerPel: colorDepth})
		}
	}

	for _, batch := range PackBudget(allTiles, maxFragSize) {
		if err := p.sink.SendPDU("", BitmapUpdatePDU{StreamID: int(streamID), Tiles: batch}); err != nil {
			return fmt.Errorf("send bitmap update: %w", err)
		}
	}
	return nil
}
