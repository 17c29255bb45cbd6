package clipboard

import (
	"sync"
	"time"
)

// NoClipDataID is the sentinel used for file requests carrying no
// clip-data-id (spec.md §4.8's "NO_CLIP_DATA_ID").
const NoClipDataID uint32 = 0xFFFFFFFF

const clipDataDropTimeout = 60 * time.Second

// ClipDataEntry snapshots one locked file selection: the host clipboard
// handle at lock time, so later file requests resolve against that
// snapshot even if the host selection later changes.
type ClipDataEntry struct {
	ID              uint32
	Serial          uint64
	SnapshotHandle  any
	outstandingReqs int
	dropTimer       *time.Timer
	dropDeadline    time.Time // zero unless dropTimer is running
}

// ClipDataRegistry tracks locked clip-data entries (spec.md §4.8).
type ClipDataRegistry struct {
	mu         sync.Mutex
	entries    map[uint32]*ClipDataEntry
	nextSerial uint64
}

func NewClipDataRegistry() *ClipDataRegistry {
	return &ClipDataRegistry{entries: make(map[uint32]*ClipDataEntry)}
}

// Lock allocates or replaces the entry for id. A pre-existing entry is
// treated as an abandoned lock and freed.
func (r *ClipDataRegistry) Lock(id uint32, snapshot any) *ClipDataEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[id]; ok {
		r.free(existing)
	} else if len(r.entries) >= 1<<32-1 {
		r.evictOldestDropped()
	}

	r.nextSerial++
	entry := &ClipDataEntry{ID: id, Serial: r.nextSerial, SnapshotHandle: snapshot}
	r.entries[id] = entry
	return entry
}

// Unlock removes the entry. If it has no outstanding file-contents
// request it is dropped immediately; otherwise a drop timer (60s
// default) is started.
func (r *ClipDataRegistry) Unlock(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return
	}

	if entry.outstandingReqs == 0 {
		r.free(entry)
		return
	}

	entry.dropDeadline = time.Now().Add(clipDataDropTimeout)
	entry.dropTimer = time.AfterFunc(clipDataDropTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.entries[id] == entry {
			r.free(entry)
		}
	})
}

// BeginRequest marks a file-contents request as outstanding against id.
func (r *ClipDataRegistry) BeginRequest(id uint32) *ClipDataEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	entry.outstandingReqs++
	return entry
}

// EndRequest completes an outstanding request, resetting the entry's
// drop timer if one is running.
func (r *ClipDataRegistry) EndRequest(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return
	}
	if entry.outstandingReqs > 0 {
		entry.outstandingReqs--
	}
	if entry.dropTimer != nil {
		entry.dropTimer.Stop()
		entry.dropDeadline = time.Now().Add(clipDataDropTimeout)
		entry.dropTimer = time.AfterFunc(clipDataDropTimeout, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.entries[id] == entry {
				r.free(entry)
			}
		})
	}
}

// Lookup returns the entry for id, if any.
func (r *ClipDataRegistry) Lookup(id uint32) (*ClipDataEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *ClipDataRegistry) free(entry *ClipDataEntry) {
	if entry.dropTimer != nil {
		entry.dropTimer.Stop()
	}
	delete(r.entries, entry.ID)
}

// evictOldestDropped forces out the entry with the oldest pending-drop
// deadline among entries still live in r.entries and awaiting their drop
// timer (Unlocked with an outstanding file-contents request), per
// grd-rdp-fuse-clipboard.c's clip-data-id exhaustion path. Entries with
// no drop pending (still locked, or with no outstanding request) are not
// eviction candidates.
func (r *ClipDataRegistry) evictOldestDropped() {
	var oldest *ClipDataEntry
	for _, entry := range r.entries {
		if entry.dropTimer == nil {
			continue
		}
		if oldest == nil || entry.dropDeadline.Before(oldest.dropDeadline) {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}
	r.free(oldest)
}

// Count reports the number of live entries, for tests: locked entries and
// unlocked ones whose drop timer is still pending.
func (r *ClipDataRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
