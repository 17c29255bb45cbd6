// Package dvc implements the Dynamic Virtual Channel registry: it
// multiplexes channel-id assignment and creation-status callbacks from the
// peer library to subscribing subcomponents (CLIPRDR, GFX, DISP, AUDIN,
// RDPSND, TELEMETRY, INPUT), which may attach before or after either event
// arrives, and guarantees each subscriber is notified at most once.
package dvc

import (
	"sync"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("dvc")

// ChannelKind names the DVC types the session owns, per spec.md §4.2.
type ChannelKind string

const (
	ChannelCLIPRDR   ChannelKind = "CLIPRDR"
	ChannelGFX       ChannelKind = "RDPGFX"
	ChannelDISP      ChannelKind = "DISP"
	ChannelAUDIN     ChannelKind = "AUDIN"
	ChannelRDPSND    ChannelKind = "RDPSND"
	ChannelTelemetry ChannelKind = "TELEMETRY"
	ChannelInput     ChannelKind = "RDPEI"
)

// CreationStatus is the peer library's report of whether a channel opened
// successfully.
type CreationStatus struct {
	ChannelID int32
	OK        bool
}

// SubscribeFunc is invoked at most once with the channel's creation status,
// on the session main loop (deferred notification), regardless of whether
// Subscribe ran before or after the status arrived.
type SubscribeFunc func(status CreationStatus)

type subscription struct {
	id       uint64
	notified bool
	callback SubscribeFunc
}

type channelEntry struct {
	status    *CreationStatus
	subs      []*subscription
	nextSubID uint64
}

// Registry is the per-session dvc_table. Safe for concurrent use: the peer
// library may report assignment/status from the socket thread while
// subcomponents subscribe from the graphics thread.
type Registry struct {
	mu      sync.Mutex
	table   map[ChannelKind]*channelEntry
	pending []func() // deferred notifications queued for the session main loop
}

func NewRegistry() *Registry {
	return &Registry{table: make(map[ChannelKind]*channelEntry)}
}

func (r *Registry) entryLocked(kind ChannelKind) *channelEntry {
	e, ok := r.table[kind]
	if !ok {
		e = &channelEntry{}
		r.table[kind] = e
	}
	return e
}

// ReportStatus is called by the peer library (possibly before any
// subscriber attaches) with the outcome of creating a channel.
func (r *Registry) ReportStatus(kind ChannelKind, status CreationStatus) {
	r.mu.Lock()
	e := r.entryLocked(kind)
	if e.status != nil {
		r.mu.Unlock()
		return
	}
	s := status
	e.status = &s
	var toNotify []*subscription
	for _, sub := range e.subs {
		if !sub.notified {
			toNotify = append(toNotify, sub)
		}
	}
	r.mu.Unlock()

	r.deferNotify(toNotify, status)
}

// Subscribe registers a callback for a channel's creation status. If the
// status is already known, notification is deferred rather than called
// synchronously, so all callbacks observe single-threaded delivery on the
// session main loop (spec.md §4.2).
func (r *Registry) Subscribe(kind ChannelKind, cb SubscribeFunc) uint64 {
	r.mu.Lock()
	e := r.entryLocked(kind)
	e.nextSubID++
	sub := &subscription{id: e.nextSubID, callback: cb}
	e.subs = append(e.subs, sub)

	var known *CreationStatus
	if e.status != nil {
		known = e.status
	}
	id := sub.id
	r.mu.Unlock()

	if known != nil {
		r.deferNotify([]*subscription{sub}, *known)
	}
	return id
}

// Unsubscribe removes a subscription. It never tears down the underlying
// channel.
func (r *Registry) Unsubscribe(kind ChannelKind, subID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.table[kind]
	if !ok {
		return
	}
	for i, sub := range e.subs {
		if sub.id == subID {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// deferNotify marks subscriptions notified and queues the callback; callers
// invoke RunDeferred on the session main loop to actually execute them.
func (r *Registry) deferNotify(subs []*subscription, status CreationStatus) {
	if len(subs) == 0 {
		return
	}
	r.mu.Lock()
	for _, sub := range subs {
		sub.notified = true
	}
	for _, sub := range subs {
		cb := sub.callback
		r.pending = append(r.pending, func() { cb(status) })
	}
	r.mu.Unlock()
}

// RunDeferred drains and executes queued notifications. Call this from the
// session main loop; it is the only place subscriber callbacks run.
func (r *Registry) RunDeferred() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Status returns the known creation status for a channel, if any.
func (r *Registry) Status(kind ChannelKind) (CreationStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.table[kind]
	if !ok || e.status == nil {
		return CreationStatus{}, false
	}
	return *e.status, true
}
