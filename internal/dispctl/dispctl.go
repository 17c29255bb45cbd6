// Package dispctl implements the Display Control DVC (spec.md §4.11): it
// advertises display capabilities on channel ready and forwards validated
// monitor-layout PDUs to the Layout Manager.
package dispctl

import (
	"fmt"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/layout"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("dispctl")

const monitorAreaFactor = 8192

// PDUSink emits DISP DVC PDUs.
type PDUSink interface {
	SendPDU(channelName string, pdu any) error
}

// DisplayControlCapsPDU is sent once the DISP channel is ready.
type DisplayControlCapsPDU struct {
	MaxNumMonitors       int
	MaxMonitorAreaFactorA int
	MaxMonitorAreaFactorB int
}

// MonitorLayoutPDU is the client-reported monitor layout, prior to
// validation and translation into a layout.MonitorConfig.
type MonitorLayoutPDU struct {
	IsVirtual bool
	Monitors  []layout.Monitor
}

// ErrorReporter maps a validation failure to the session's notify_error
// taxonomy (spec.md §7): BadMonitorData.
type ErrorReporter interface {
	NotifyBadMonitorData(err error)
}

// Controller is the per-session Display Control DVC handler.
type Controller struct {
	sink            PDUSink
	layoutMgr       *layout.Manager
	maxMonitorCount int
	errs            ErrorReporter
}

func NewController(sink PDUSink, layoutMgr *layout.Manager, maxMonitorCount int, errs ErrorReporter) *Controller {
	return &Controller{sink: sink, layoutMgr: layoutMgr, maxMonitorCount: maxMonitorCount, errs: errs}
}

// OnChannelReady emits DisplayControlCaps, as required once the DISP DVC
// reports created.
func (c *Controller) OnChannelReady() error {
	return c.sink.SendPDU("DISP", DisplayControlCapsPDU{
		MaxNumMonitors:        c.maxMonitorCount,
		MaxMonitorAreaFactorA: monitorAreaFactor,
		MaxMonitorAreaFactorB: monitorAreaFactor,
	})
}

// OnMonitorLayout validates and submits a client-reported layout. Invalid
// configs are reported via notify_error(BadMonitorData) rather than
// returned, matching the session's error taxonomy.
func (c *Controller) OnMonitorLayout(pdu MonitorLayoutPDU) {
	if len(pdu.Monitors) > c.maxMonitorCount {
		c.fail(fmt.Errorf("monitor layout: %d monitors exceeds cap %d", len(pdu.Monitors), c.maxMonitorCount))
		return
	}

	cfg := &layout.MonitorConfig{IsVirtual: pdu.IsVirtual, Monitors: pdu.Monitors}
	if err := c.layoutMgr.SubmitConfig(cfg); err != nil {
		c.fail(fmt.Errorf("monitor layout rejected: %w", err))
		return
	}
}

func (c *Controller) fail(err error) {
	log.Warn("bad monitor data", "error", err)
	c.errs.NotifyBadMonitorData(err)
}
