package sessionrt

import (
	"fmt"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/config"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/graphics"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
)

// multifragThreshold is the MultifragMaxRequestSize floor below which NSC
// fragmentation is unavailable (spec.md §4.1, §4.4).
const multifragThreshold = 0x3F0000

var validColorDepths = map[int]bool{15: true, 16: true, 24: true, 32: true}

// gateCapabilities implements spec.md §4.1's capability gate: it rejects
// unsupported clients, downgrades 24-bit color to 16-bit, and builds the
// initial monitor config. It does not submit that config; the caller
// decides how submission failure is reported.
func gateCapabilities(cfg *config.Config, caps peer.Capabilities) (effectiveDepth int, initial *layout.MonitorConfig, err error) {
	if cfg.RDPScreenShareMode == config.ScreenShareModeExtend && !caps.SupportsGraphicsPipeline {
		return 0, nil, capabilityViolation("extended monitor mode requires graphics pipeline support")
	}
	if !validColorDepths[caps.ColorDepth] {
		return 0, nil, capabilityViolation(fmt.Sprintf("unsupported color depth %d", caps.ColorDepth))
	}
	if !caps.DesktopResize {
		return 0, nil, capabilityViolation("client does not support desktop resize")
	}
	if caps.PointerCacheSize <= 0 {
		return 0, nil, capabilityViolation("client reported zero pointer cache size")
	}

	effectiveDepth = caps.ColorDepth
	if effectiveDepth == 24 {
		// Interleaved-codec artifacts at 24-bit; downgrade to 16.
		effectiveDepth = 16
	}

	initial = buildInitialMonitorConfig(cfg, caps)
	return effectiveDepth, initial, nil
}

func buildInitialMonitorConfig(cfg *config.Config, caps peer.Capabilities) *layout.MonitorConfig {
	if caps.MonitorData != nil && len(caps.MonitorData.Monitors) > 0 && len(caps.MonitorData.Monitors) <= cfg.MaxMonitorCount {
		monitors := make([]layout.Monitor, 0, len(caps.MonitorData.Monitors))
		for _, m := range caps.MonitorData.Monitors {
			width := m.Right - m.Left
			height := m.Bottom - m.Top
			if width%2 != 0 {
				width++
			}
			monitors = append(monitors, layout.Monitor{
				PosX:      m.Left,
				PosY:      m.Top,
				Width:     width,
				Height:    height,
				IsPrimary: m.IsPrimary,
				Scale:     100,
			})
		}
		return &layout.MonitorConfig{IsVirtual: false, Monitors: monitors}
	}

	width := caps.DesktopWidth
	if width%2 != 0 {
		width++
	}
	return &layout.MonitorConfig{
		IsVirtual: true,
		Monitors: []layout.Monitor{{
			Width:     width,
			Height:    caps.DesktopHeight,
			IsPrimary: true,
			Scale:     100,
		}},
	}
}

// graphicsCapabilities translates the negotiated peer capabilities into
// the narrower view graphics.Pipeline.SubmitFrame needs for codec
// selection (spec.md §4.4; Open Question decision 1 in DESIGN.md: the NSC
// fragmentation gate does not extend to the raw fallback).
func graphicsCapabilities(caps peer.Capabilities) graphics.Capabilities {
	return graphics.Capabilities{
		SupportsGraphicsPipeline: caps.SupportsGraphicsPipeline,
		SupportsRFX:              caps.SupportsRFX,
		SupportsNSC:              caps.SupportsNSC,
		FragmentationAvailable:   caps.MultifragMaxRequestSize >= multifragThreshold,
	}
}

// audioAllowed implements spec.md §4.1's post-connect audio gate: audio is
// disabled when it would require a channel the client cannot keep up
// with.
func audioAllowed(caps peer.Capabilities) bool {
	if !caps.SupportsGraphicsPipeline {
		return false
	}
	if caps.IsIOSOrAndroid {
		return false
	}
	return caps.SupportsAutodetect
}
