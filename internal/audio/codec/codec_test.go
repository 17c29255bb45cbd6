package codec

import "testing"

func TestSelectFirstSupportedPicksEarliestOffer(t *testing.T) {
	supported := map[FormatID]bool{FormatOpus: true, FormatPCM: true}
	f, ok := SelectFirstSupported(PlaybackOffers, supported)
	if !ok {
		t.Fatal("expected a match")
	}
	if f.ID != FormatOpus {
		t.Fatalf("ID = %v, want FormatOpus (AAC not supported, Opus is first match)", f.ID)
	}
}

func TestSelectFirstSupportedNoMatch(t *testing.T) {
	_, ok := SelectFirstSupported(PlaybackOffers, map[FormatID]bool{})
	if ok {
		t.Fatal("expected no match")
	}
}

func TestSelectFirstSupportedPrefersAACWhenOffered(t *testing.T) {
	supported := map[FormatID]bool{FormatAAC: true, FormatOpus: true, FormatPCM: true}
	f, _ := SelectFirstSupported(PlaybackOffers, supported)
	if f.ID != FormatAAC {
		t.Fatalf("ID = %v, want FormatAAC", f.ID)
	}
}

func TestCaptureOffersPrefersALaw(t *testing.T) {
	supported := map[FormatID]bool{FormatALaw: true, FormatPCM: true}
	f, _ := SelectFirstSupported(CaptureOffers, supported)
	if f.ID != FormatALaw {
		t.Fatalf("ID = %v, want FormatALaw", f.ID)
	}
}

func TestALawRoundTripApproximatesOriginal(t *testing.T) {
	var backend ALawBackend
	original := []int16{0, 1000, -1000, 16000, -16000, 32000, -32000}

	encoded, err := backend.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := backend.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("len(decoded) = %d, want %d", len(decoded), len(original))
	}
	for i, want := range original {
		got := decoded[i]
		diff := int(got) - int(want)
		if diff < 0 {
			diff = -diff
		}
		if diff > 2000 {
			t.Fatalf("sample %d: decoded %d too far from original %d", i, got, want)
		}
	}
}

func TestOpusFrameSizeIs20ms(t *testing.T) {
	if got := OpusFrameSize(48000); got != 960 {
		t.Fatalf("OpusFrameSize(48000) = %d, want 960", got)
	}
}
