package sessionrt

import (
	"fmt"
	"sync"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
)

// errorReporter implements spec.md §7's notify_error taxonomy: it maps a
// session-level failure onto a peer.ErrorInfoCode, clears Activated, and
// schedules exactly one idempotent close. Channel-local protocol
// violations never reach this; they tear down only the offending DVC.
type errorReporter struct {
	mu        sync.Mutex
	conn      peer.Connection
	flags     *flags
	closeOnce sync.Once
	closeFn   func(code peer.ErrorInfoCode)
}

func newErrorReporter(conn peer.Connection, flags *flags, closeFn func(code peer.ErrorInfoCode)) *errorReporter {
	return &errorReporter{conn: conn, flags: flags, closeFn: closeFn}
}

// NotifyError clears Activated and schedules shutdown. Safe to call more
// than once; only the first call drives the close sequence, and its code
// is the one passed to the close. The codes of later calls are neither
// recorded nor reported.
func (r *errorReporter) NotifyError(code peer.ErrorInfoCode) {
	r.flags.clear(flagActivated)
	r.closeOnce.Do(func() {
		r.closeFn(code)
	})
}

func (r *errorReporter) NotifyBadCaps() { r.NotifyError(peer.ErrorInfoBadCaps) }

// NotifyBadMonitorData implements dispctl.ErrorReporter.
func (r *errorReporter) NotifyBadMonitorData(err error) {
	log.Warn("rejecting monitor data", "error", err)
	r.NotifyError(peer.ErrorInfoBadMonitorData)
}

func (r *errorReporter) NotifyCloseStackOnDriverFailure(err error) {
	log.Error("layout manager driver failure", "error", err)
	r.NotifyError(peer.ErrorInfoCloseStackOnDriverFailure)
}

func (r *errorReporter) NotifyGraphicsSubsystemFailed(err error) {
	log.Error("graphics subsystem failure", "error", err)
	r.NotifyError(peer.ErrorInfoGraphicsSubsystemFailed)
}

func capabilityViolation(reason string) error {
	return fmt.Errorf("capability gate: %s", reason)
}
