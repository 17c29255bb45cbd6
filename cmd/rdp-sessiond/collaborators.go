package main

import (
	"fmt"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/audio/codec"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/gfxbridge"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/graphics"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/hostsession"
)

// The codecs below and the PipeWire sink/source are the collaborators
// spec.md draws outside this daemon's scope: "we orchestrate an encoder,
// not implement its DCT" (graphics.RFXEncoder/NSCEncoder/TileCompressor,
// gfxbridge.Encoder) and the PipeWire playback/capture streams
// (audio/playback.Sink, audio/capture.Source). A real deployment links a
// cgo binding for libfreerdp's codecs and a PipeWire client library here;
// until one is wired in, these stand in so the rest of the session graph
// can be built and tested, and fail loudly rather than silently drop
// frames or audio.

type unimplementedRFX struct{}

func (unimplementedRFX) EncodeMessages(damage []graphics.Rect, buf *graphics.Buffer, maxMessageSize uint32) ([][]byte, error) {
	return nil, fmt.Errorf("RFX encoder not wired: supply a graphics.RFXEncoder binding")
}

type unimplementedNSC struct{}

func (unimplementedNSC) EncodeRect(rect graphics.Rect, buf *graphics.Buffer) ([]byte, error) {
	return nil, fmt.Errorf("NSC encoder not wired: supply a graphics.NSCEncoder binding")
}

type unimplementedTiles struct{}

func (unimplementedTiles) CompressPlanar(buf *graphics.Buffer, rect graphics.Rect) ([]byte, error) {
	return nil, fmt.Errorf("tile compressor not wired: supply a graphics.TileCompressor binding")
}

func (unimplementedTiles) CompressInterleaved(buf *graphics.Buffer, rect graphics.Rect, colorDepth int) ([]byte, error) {
	return nil, fmt.Errorf("tile compressor not wired: supply a graphics.TileCompressor binding")
}

// gfxEncoderFactory always fails; a real build supplies one backed by a
// hardware or software GFX codec.
func gfxEncoderFactory() (gfxbridge.Encoder, error) {
	return nil, fmt.Errorf("GFX encoder not wired: supply a gfxbridge.EncoderFactory binding")
}

type unimplementedAudioSink struct{}

func (unimplementedAudioSink) Write(pcm []int16) error { return fmt.Errorf("playback sink not wired: supply a PipeWire audio/playback.Sink") }
func (unimplementedAudioSink) SetMute(muted bool)      {}
func (unimplementedAudioSink) SetVolume(channel int, volume float64) {}

type unimplementedAudioSource struct{}

func (unimplementedAudioSource) Push(pcm []int16) error {
	return fmt.Errorf("capture source not wired: supply a PipeWire audio/capture.Source")
}

// noopMimeHost answers clipboard content requests the portal's own
// RemoteDesktop session cannot serve (arbitrary MIME payloads flow
// through a side channel the portal doesn't expose). A real deployment
// backs this with the compositor's clipboard actor.
type noopMimeHost struct{}

func (noopMimeHost) RequestContent(mime string) ([]byte, error) {
	return nil, fmt.Errorf("clipboard content request not wired: supply a hostsession.MimeHost")
}

func (noopMimeHost) SubmitContent(mime string, data []byte) error {
	log.Warn("dropping submitted clipboard content: no MimeHost wired", "mime", mime, "bytes", len(data))
	return nil
}

var _ hostsession.MimeHost = noopMimeHost{}

// unimplementedAudioCodec stands in for the AAC/Opus transcoders: real
// DSP work for those formats is an external collaborator (libfdk-aac,
// the opus C library's encoder/decoder, not just its capability
// constants). codec.ALawBackend and raw PCM passthrough need no such
// binding and are wired directly.
type unimplementedAudioCodec struct{ format codec.FormatID }

func (c unimplementedAudioCodec) Encode(pcm []int16) ([]byte, error) {
	return nil, fmt.Errorf("audio codec %v not wired: supply a codec.Backend binding", c.format)
}

func (c unimplementedAudioCodec) Decode(frame []byte) ([]int16, error) {
	return nil, fmt.Errorf("audio codec %v not wired: supply a codec.Backend binding", c.format)
}

// pcmBackend passes 16-bit signed PCM through unchanged; RDPSND/AUDIN's
// raw PCM format needs no transcoding step at all.
type pcmBackend struct{}

func (pcmBackend) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}

func (pcmBackend) Decode(frame []byte) ([]int16, error) {
	out := make([]int16, len(frame)/2)
	for i := range out {
		out[i] = int16(frame[2*i]) | int16(frame[2*i+1])<<8
	}
	return out, nil
}

// audioBackendFor resolves a negotiated codec.Format to the Backend that
// transcodes it, consulted by sessionrt's RDPSND/AUDIN format
// negotiation once the client and server have agreed on a format.
func audioBackendFor(f codec.Format) codec.Backend {
	switch f.ID {
	case codec.FormatALaw:
		return codec.ALawBackend{}
	case codec.FormatPCM:
		return pcmBackend{}
	default:
		return unimplementedAudioCodec{format: f.ID}
	}
}
