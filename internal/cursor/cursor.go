// Package cursor implements the Cursor Renderer (spec.md §4.6): a bounded
// LRU cache of cursor bitmaps and the Default/Hidden/Cached/Normal update
// selection driven by each host pointer update.
package cursor

import (
	"bytes"
	"container/list"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("cursor")

const (
	maxNormalDimension = 384
	maxNewPointerDim   = 96
)

// Bitmap is a captured host cursor image.
type Bitmap struct {
	HotspotX, HotspotY int
	Width, Height      int
	// Pixels is tightly packed RGBA, row-major.
	Pixels []byte
}

func (b Bitmap) key() cacheKey {
	return cacheKey{
		hotspotX: b.HotspotX, hotspotY: b.HotspotY,
		width: b.Width, height: b.Height,
		pixels: string(b.Pixels),
	}
}

func (b Bitmap) allAlphaZero() bool {
	for i := 3; i < len(b.Pixels); i += 4 {
		if b.Pixels[i] != 0 {
			return false
		}
	}
	return len(b.Pixels) > 0
}

type cacheKey struct {
	hotspotX, hotspotY int
	width, height      int
	pixels             string
}

// UpdateKind distinguishes the PDU family the renderer emits.
type UpdateKind int

const (
	UpdateDefault UpdateKind = iota
	UpdateHidden
	UpdateCached
	UpdateNormal
)

// Update is the renderer's decision for one host pointer update.
type Update struct {
	Kind       UpdateKind
	CacheIndex int
	Bitmap     Bitmap
	Large      bool // PointerLarge vs PointerNew, for UpdateNormal
}

type cacheEntry struct {
	key   cacheKey
	index int
	elem  *list.Element
}

// Renderer maintains the pointer bitmap LRU cache and active/suppressed
// state (suppressed while the session is not active, per spec.md §4.6).
type Renderer struct {
	capacity int
	lru      *list.List // front = most recently used
	byKey    map[cacheKey]*cacheEntry
	byIndex  map[int]*cacheEntry
	nextFree []int
	active   bool
}

func NewRenderer(capacity int) *Renderer {
	free := make([]int, capacity)
	for i := range free {
		free[i] = capacity - 1 - i // pop from the end gives ascending indices
	}
	return &Renderer{
		capacity: capacity,
		lru:      list.New(),
		byKey:    make(map[cacheKey]*cacheEntry),
		byIndex:  make(map[int]*cacheEntry),
		nextFree: free,
	}
}

// SetActive gates whether updates are suppressed.
func (r *Renderer) SetActive(active bool) { r.active = active }

// Update processes one host pointer update and returns the renderer's
// decision, or ok=false if suppressed (session not active).
func (r *Renderer) Update(b Bitmap) (Update, bool) {
	if !r.active || r.capacity == 0 {
		return Update{}, false
	}

	if b.Width > maxNormalDimension || b.Height > maxNormalDimension {
		return Update{Kind: UpdateDefault}, true
	}
	if b.allAlphaZero() {
		return Update{Kind: UpdateHidden}, true
	}

	key := b.key()
	if entry, ok := r.byKey[key]; ok {
		r.lru.MoveToFront(entry.elem)
		return Update{Kind: UpdateCached, CacheIndex: entry.index}, true
	}

	index := r.evictIfNeeded()
	entry := &cacheEntry{key: key, index: index}
	entry.elem = r.lru.PushFront(entry)
	r.byKey[key] = entry
	r.byIndex[index] = entry

	large := b.Width > maxNewPointerDim || b.Height > maxNewPointerDim
	return Update{Kind: UpdateNormal, CacheIndex: index, Bitmap: b, Large: large}, true
}

func (r *Renderer) evictIfNeeded() int {
	if len(r.nextFree) > 0 {
		idx := r.nextFree[len(r.nextFree)-1]
		r.nextFree = r.nextFree[:len(r.nextFree)-1]
		return idx
	}

	back := r.lru.Back()
	lru := back.Value.(*cacheEntry)
	r.lru.Remove(back)
	delete(r.byKey, lru.key)
	delete(r.byIndex, lru.index)
	log.Debug("evicted lru pointer cache entry", "cacheIndex", lru.index)
	return lru.index
}

// Equal reports whether two bitmaps are identical in header and contents,
// used by tests exercising cache identity directly.
func Equal(a, b Bitmap) bool {
	return a.HotspotX == b.HotspotX && a.HotspotY == b.HotspotY &&
		a.Width == b.Width && a.Height == b.Height &&
		bytes.Equal(a.Pixels, b.Pixels)
}
