package layout

import (
	"fmt"
	"sync"
	"time"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("layout")

// State is the Layout Manager's state machine (spec.md §4.3).
type State int

const (
	StateAwaitConfig State = iota
	StatePrepareSurfaces
	StateAwaitStreams
	StateStartRendering
	StateFatalError
)

func (s State) String() string {
	switch s {
	case StateAwaitConfig:
		return "AWAIT_CONFIG"
	case StatePrepareSurfaces:
		return "PREPARE_SURFACES"
	case StateAwaitStreams:
		return "AWAIT_STREAMS"
	case StateStartRendering:
		return "START_RENDERING"
	case StateFatalError:
		return "FATAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Host creates and manages host capture streams for surfaces. Implemented
// by the embedding host adapter (spec.md §6 host session contract).
type Host interface {
	// CreateStream registers a stream owner and requests the host to begin
	// recording; returns the assigned stream id.
	CreateStream(m Monitor) (streamID uint32, err error)
	// UpdateStreamParams resizes an existing capture stream.
	UpdateStreamParams(streamID uint32, m Monitor) error
	// DestroyStream tears down a capture stream.
	DestroyStream(streamID uint32) error
}

// Manager implements the PREPARE_SURFACES / AWAIT_STREAMS / START_RENDERING
// state machine described in spec.md §4.3.
type Manager struct {
	mu sync.Mutex

	host              Host
	maxMonitorCount   int
	recreationTimeout time.Duration

	state        State
	config       *MonitorConfig
	surfaces     []*Surface
	pendingReady map[uint32]bool

	recreationTimer *time.Timer

	// pendingConfigChange suppresses recreation for virtual streams closing
	// while a new config submission is already underway (spec.md §4.3).
	pendingConfigChange bool

	onFatalError func(err error)
}

func NewManager(host Host, maxMonitorCount int, recreationTimeout time.Duration) *Manager {
	return &Manager{
		host:              host,
		maxMonitorCount:   maxMonitorCount,
		recreationTimeout: recreationTimeout,
		state:             StateAwaitConfig,
		pendingReady:      make(map[uint32]bool),
	}
}

// OnFatalError registers the callback invoked when the manager enters
// FATAL_ERROR; the session runtime maps this to notify_error.
func (m *Manager) OnFatalError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFatalError = fn
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Surfaces returns a snapshot of the currently active surfaces.
func (m *Manager) Surfaces() []*Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Surface, len(m.surfaces))
	copy(out, m.surfaces)
	return out
}

// SubmitConfig drives AWAIT_CONFIG -> PREPARE_SURFACES -> AWAIT_STREAMS.
func (m *Manager) SubmitConfig(cfg *MonitorConfig) error {
	if err := cfg.Validate(m.maxMonitorCount); err != nil {
		m.fail(fmt.Errorf("invalid monitor config: %w", err))
		return err
	}
	cfg.NormalizeOffsets()

	m.mu.Lock()
	if m.recreationTimer != nil {
		m.recreationTimer.Stop()
		m.recreationTimer = nil
	}
	m.pendingConfigChange = true
	m.state = StatePrepareSurfaces
	prevSurfaces := m.surfaces
	m.mu.Unlock()

	newSurfaces, err := m.prepareSurfaces(cfg, prevSurfaces)
	if err != nil {
		m.fail(fmt.Errorf("prepare surfaces: %w", err))
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.surfaces = newSurfaces
	m.state = StateAwaitStreams
	m.pendingReady = make(map[uint32]bool)
	for _, s := range newSurfaces {
		m.pendingReady[s.StreamID()] = false
	}
	allReady := len(m.pendingReady) == 0
	m.pendingConfigChange = false
	m.mu.Unlock()

	if allReady {
		m.transitionToRendering()
	}
	return nil
}

// prepareSurfaces disposes surfaces exceeding the new monitor count,
// allocates new ones, and creates/updates their capture streams.
func (m *Manager) prepareSurfaces(cfg *MonitorConfig, prev []*Surface) ([]*Surface, error) {
	for i := len(cfg.Monitors); i < len(prev); i++ {
		if err := m.host.DestroyStream(prev[i].StreamID()); err != nil {
			log.Warn("destroy stream failed", "streamId", prev[i].StreamID(), "error", err)
		}
	}
	if len(prev) > len(cfg.Monitors) {
		prev = prev[:len(cfg.Monitors)]
	}

	surfaces := make([]*Surface, len(cfg.Monitors))
	for i, mon := range cfg.Monitors {
		originX, originY := cfg.TranslatedOrigin(mon)

		if i < len(prev) {
			surf := prev[i]
			dimensionsChanged := surf.Monitor.Width != mon.Width || surf.Monitor.Height != mon.Height
			surf.Monitor = mon
			surf.OriginX, surf.OriginY = originX, originY
			if dimensionsChanged {
				if err := m.host.UpdateStreamParams(surf.StreamID(), mon); err != nil {
					return nil, err
				}
				surf.Invalidate()
			}
			surfaces[i] = surf
			continue
		}

		streamID, err := m.host.CreateStream(mon)
		if err != nil {
			return nil, err
		}
		surfaces[i] = &Surface{
			Monitor:  mon,
			OriginX:  originX,
			OriginY:  originY,
			streamID: streamID,
		}
	}
	return surfaces, nil
}

// NotifyStreamReady is called by the host adapter once a capture stream has
// started producing frames. When every surface's stream is ready, the
// manager transitions AWAIT_STREAMS -> START_RENDERING.
func (m *Manager) NotifyStreamReady(streamID uint32) {
	m.mu.Lock()
	if m.state != StateAwaitStreams {
		m.mu.Unlock()
		return
	}
	if _, tracked := m.pendingReady[streamID]; !tracked {
		m.mu.Unlock()
		return
	}
	m.pendingReady[streamID] = true
	allReady := true
	for _, ready := range m.pendingReady {
		if !ready {
			allReady = false
			break
		}
	}
	m.mu.Unlock()

	if allReady {
		m.transitionToRendering()
	}
}

func (m *Manager) transitionToRendering() {
	m.mu.Lock()
	if m.state != StateAwaitStreams {
		m.mu.Unlock()
		return
	}
	m.state = StateStartRendering
	m.mu.Unlock()
	log.Info("layout manager entered START_RENDERING")
}

// OnStreamClosedExternally handles a non-virtual capture stream closing
// outside of a layout change: it schedules a recreation timer unless a
// config change is already in flight for a virtual-monitor stream.
func (m *Manager) OnStreamClosedExternally(mon Monitor) {
	m.mu.Lock()
	if mon.isVirtual() && m.pendingConfigChange {
		m.mu.Unlock()
		return
	}
	if m.recreationTimer != nil {
		m.mu.Unlock()
		return
	}
	lastConfig := m.config
	m.recreationTimer = time.AfterFunc(m.recreationTimeout, func() {
		m.mu.Lock()
		m.recreationTimer = nil
		m.mu.Unlock()
		if lastConfig != nil {
			log.Info("recreating layout after transient stream loss")
			_ = m.SubmitConfig(lastConfig)
		}
	})
	m.mu.Unlock()
}

// PositionTransform implements the Layout Manager's position transform
// (spec.md §4.3): given an absolute point, returns the owning surface's
// stream-local coordinates, or ok=false if no surface owns the point.
func (m *Manager) PositionTransform(x, y int) (surf *Surface, localX, localY int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.surfaces {
		if lx, ly, contains := s.ContainsPoint(x, y); contains {
			return s, lx, ly, true
		}
	}
	return nil, 0, 0, false
}

// SimplePositionTransform adapts PositionTransform to the narrower
// (x, y) -> (localX, localY, ok) shape consumed by input translation,
// which only needs the resolved coordinates, not the owning surface.
func (m *Manager) SimplePositionTransform(x, y int) (localX, localY int, ok bool) {
	_, localX, localY, ok = m.PositionTransform(x, y)
	return
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.state = StateFatalError
	cb := m.onFatalError
	m.mu.Unlock()
	log.Error("layout manager entered FATAL_ERROR", "error", err)
	if cb != nil {
		cb(err)
	}
}
