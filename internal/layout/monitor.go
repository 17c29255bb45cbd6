package layout

import "fmt"

// Orientation is the monitor rotation, in degrees, per spec.md §3.
type Orientation int

const (
	Orientation0   Orientation = 0
	Orientation90  Orientation = 90
	Orientation180 Orientation = 180
	Orientation270 Orientation = 270
)

// Monitor is a single entry of a MonitorConfig: either a physical connector
// or a virtual-monitor descriptor.
type Monitor struct {
	Connector string // non-empty for physical (mirror-mode) monitors

	PosX, PosY      int
	Width, Height   int
	IsPrimary       bool
	PhysicalW       int
	PhysicalH       int
	Orientation     Orientation
	Scale           int // percent, [100,500]
}

func (m Monitor) isVirtual() bool { return m.Connector == "" }

// MonitorConfig is the validated client monitor layout, per spec.md §3.
type MonitorConfig struct {
	IsVirtual bool
	Monitors  []Monitor

	LayoutOffsetX, LayoutOffsetY int
	DesktopWidth, DesktopHeight  int
}

// Validate enforces the invariants named in spec.md §3: exactly one
// primary, primary anchored at (0,0), no monitor rectangles overlap, width
// divisible by 2, and each monitor's width/height fall in [200,8192].
func (c *MonitorConfig) Validate(maxMonitorCount int) error {
	if len(c.Monitors) == 0 {
		return fmt.Errorf("monitor config has no monitors")
	}
	if len(c.Monitors) > maxMonitorCount {
		return fmt.Errorf("monitor count %d exceeds maximum %d", len(c.Monitors), maxMonitorCount)
	}

	primaryCount := 0
	var primary *Monitor
	for i := range c.Monitors {
		m := &c.Monitors[i]
		if m.Width < 200 || m.Width > 8192 {
			return fmt.Errorf("monitor width %d out of range [200,8192]", m.Width)
		}
		if m.Height < 200 || m.Height > 8192 {
			return fmt.Errorf("monitor height %d out of range [200,8192]", m.Height)
		}
		if m.Width%2 != 0 {
			return fmt.Errorf("monitor width %d is not divisible by 2", m.Width)
		}
		if m.Scale != 0 && (m.Scale < 100 || m.Scale > 500) {
			return fmt.Errorf("monitor scale %d out of range [100,500]", m.Scale)
		}
		if m.IsPrimary {
			primaryCount++
			primary = m
		}
	}
	if primaryCount != 1 {
		return fmt.Errorf("expected exactly one primary monitor, got %d", primaryCount)
	}
	if primary.PosX != 0 || primary.PosY != 0 {
		return fmt.Errorf("primary monitor must be anchored at (0,0), got (%d,%d)", primary.PosX, primary.PosY)
	}

	for i := range c.Monitors {
		for j := range c.Monitors {
			if i == j {
				continue
			}
			if rectsOverlap(c.Monitors[i], c.Monitors[j]) {
				return fmt.Errorf("monitor %d overlaps monitor %d", i, j)
			}
		}
	}

	return nil
}

func rectsOverlap(a, b Monitor) bool {
	aLeft, aTop, aRight, aBottom := a.PosX, a.PosY, a.PosX+a.Width, a.PosY+a.Height
	bLeft, bTop, bRight, bBottom := b.PosX, b.PosY, b.PosX+b.Width, b.PosY+b.Height
	return aLeft < bRight && bLeft < aRight && aTop < bBottom && bTop < aBottom
}

// NormalizeOffsets computes LayoutOffsetX/Y and DesktopWidth/Height from the
// monitor positions (spec.md S2: e.g. layout_offset_x=-1280 when a monitor
// sits left of the primary).
func (c *MonitorConfig) NormalizeOffsets() {
	if len(c.Monitors) == 0 {
		return
	}
	minX, minY := c.Monitors[0].PosX, c.Monitors[0].PosY
	maxX, maxY := c.Monitors[0].PosX+c.Monitors[0].Width, c.Monitors[0].PosY+c.Monitors[0].Height
	for _, m := range c.Monitors[1:] {
		if m.PosX < minX {
			minX = m.PosX
		}
		if m.PosY < minY {
			minY = m.PosY
		}
		if r := m.PosX + m.Width; r > maxX {
			maxX = r
		}
		if b := m.PosY + m.Height; b > maxY {
			maxY = b
		}
	}
	c.LayoutOffsetX = minX
	c.LayoutOffsetY = minY
	c.DesktopWidth = maxX - minX
	c.DesktopHeight = maxY - minY
}

// TranslatedOrigin returns a monitor's origin translated into the final
// non-negative desktop coordinate space (spec.md S2).
func (c *MonitorConfig) TranslatedOrigin(m Monitor) (x, y int) {
	return m.PosX - c.LayoutOffsetX, m.PosY - c.LayoutOffsetY
}
