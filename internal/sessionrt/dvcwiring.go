package sessionrt

import "github.com/GNOME/gnome-remote-desktop-sub000/internal/dvc"

// WireChannels subscribes every DVC-backed subcomponent to its channel's
// creation status, per spec.md §4.2: "once the DRDYNVC multiplexer
// reports READY, the loop invokes maybe_init on each DVC-backed
// subcomponent exactly once per connect." dvc.Registry already guarantees
// the at-most-once, deferred-to-main-loop delivery; this just names which
// subcomponent owns which channel.
func (m *Manager) WireChannels() {
	if m.dvcRegistry == nil {
		return
	}

	m.dvcRegistry.Subscribe(dvc.ChannelDISP, func(status dvc.CreationStatus) {
		if !status.OK || m.dispCtl == nil {
			return
		}
		if err := m.dispCtl.OnChannelReady(); err != nil {
			log.Warn("DISP channel init failed", "error", err)
		}
	})

	m.dvcRegistry.Subscribe(dvc.ChannelGFX, func(status dvc.CreationStatus) {
		if status.OK {
			m.OnGfxChannelReady()
		}
	})

	m.dvcRegistry.Subscribe(dvc.ChannelCLIPRDR, func(status dvc.CreationStatus) {
		if !status.OK {
			log.Warn("CLIPRDR channel failed to open")
		}
	})

	m.dvcRegistry.Subscribe(dvc.ChannelRDPSND, func(status dvc.CreationStatus) {
		if !status.OK || !m.audioEnabled || m.playback == nil {
			return
		}
		if err := m.playback.OnClientVersion(); err != nil {
			log.Warn("RDPSND init failed", "error", err)
		}
	})

	m.dvcRegistry.Subscribe(dvc.ChannelAUDIN, func(status dvc.CreationStatus) {
		if !status.OK || !m.audioEnabled || m.capture == nil {
			return
		}
		if err := m.capture.OnClientVersion(); err != nil {
			log.Warn("AUDIN init failed", "error", err)
		}
	})
}
