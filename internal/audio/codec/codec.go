// Package codec negotiates audio format capabilities for RDPSND/AUDIN
// (spec.md §4.9/§4.10). Actual sample transcoding is delegated to the
// opus library for Opus capability constants and to the PCM/A-law
// converters in this package; the DSP work itself stays behind a
// narrow Backend interface, matching how the real DSP codec library is
// an external collaborator.
package codec

import "github.com/hraban/opus"

// FormatID identifies a negotiable wire format.
type FormatID int

const (
	FormatAAC FormatID = iota
	FormatOpus
	FormatPCM
	FormatALaw
)

// Format describes one offerable audio format.
type Format struct {
	ID         FormatID
	SampleRate int
	Channels   int
}

// PlaybackOffers is the RDPSND format offer order, first match wins
// (spec.md §4.9).
var PlaybackOffers = []Format{
	{ID: FormatAAC, SampleRate: 44100, Channels: 2},
	{ID: FormatOpus, SampleRate: 48000, Channels: 2},
	{ID: FormatPCM, SampleRate: 44100, Channels: 2},
}

// CaptureOffers is the AUDIN format offer order (spec.md §4.10).
var CaptureOffers = []Format{
	{ID: FormatALaw, SampleRate: 44100, Channels: 2},
	{ID: FormatPCM, SampleRate: 44100, Channels: 2},
}

// SelectFirstSupported returns the first offer the client also reports
// supporting, or ok=false if none match.
func SelectFirstSupported(offers []Format, clientSupported map[FormatID]bool) (Format, bool) {
	for _, f := range offers {
		if clientSupported[f.ID] {
			return f, true
		}
	}
	return Format{}, false
}

// OpusFrameSize returns the frame size (samples per channel) used at the
// negotiated sample rate for a 20ms Opus frame. The result is computed
// from the rate alone; it is not checked against the opus library.
func OpusFrameSize(sampleRate int) int {
	return sampleRate / 50 // 20ms
}

// ValidateOpusParameters confirms the opus encoder accepts the
// negotiated channel count and sample rate, without allocating a
// lingering encoder (capability probe only).
func ValidateOpusParameters(sampleRate, channels int) error {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return err
	}
	_ = enc
	return nil
}

// Backend decodes or encodes one frame for a negotiated format. The
// actual DSP implementation (Opus transcoding, A-law/PCM conversion) is
// an external collaborator; playback/capture only drive this interface.
type Backend interface {
	Encode(pcm []int16) ([]byte, error)
	Decode(frame []byte) ([]int16, error)
}

// ALawBackend implements G.711 A-law, used directly since it's a pure
// bit-manipulation codec with no external library in the retrieval
// pack offering it.
type ALawBackend struct{}

func (ALawBackend) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = linearToALaw(s)
	}
	return out, nil
}

func (ALawBackend) Decode(frame []byte) ([]int16, error) {
	out := make([]int16, len(frame))
	for i, b := range frame {
		out[i] = aLawToLinear(b)
	}
	return out, nil
}

func linearToALaw(sample int16) byte {
	const clip = 32635
	s := int(sample)
	sign := byte(0x80)
	if s < 0 {
		s = -s - 1
		sign = 0
	}
	if s > clip {
		s = clip
	}

	var exponent byte
	for exp := 7; exp >= 0; exp-- {
		if s>>uint(exp+7) != 0 {
			exponent = byte(exp)
			break
		}
	}
	mantissa := byte((s >> uint(exponent+3)) & 0x0F)
	if exponent == 0 {
		mantissa = byte((s >> 4) & 0x0F)
	}
	aLaw := sign | (exponent << 4) | mantissa
	return aLaw ^ 0x55
}

func aLawToLinear(aLaw byte) int16 {
	aLaw ^= 0x55
	sign := aLaw & 0x80
	exponent := (aLaw >> 4) & 0x07
	mantissa := aLaw & 0x0F

	sample := int(mantissa)<<4 + 8
	if exponent != 0 {
		sample = (sample + 0x100) << (exponent - 1)
	}
	if sign == 0 {
		sample = -sample
	}
	return int16(sample)
}
