// Package graphics implements the Graphics Submission Pipeline: damage
// detection, RFX/NSC/Raw codec selection and tiling, and frame markers
// bracketing the PDUs submitted to the peer library (spec.md §4.4).
package graphics

import (
	"hash/crc32"
	"sync"
)

const tileSize = 64

// Rect is an inclusive-exclusive damage rectangle in surface pixel space,
// always tile-aligned.
type Rect struct {
	Left, Top, Right, Bottom int
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Buffer is a captured frame, grounded on spec.md's RdpBuffer: width,
// height, stride, and owned pixel data.
type Buffer struct {
	Width, Height, Stride int
	Data                  []byte
}

func (b *Buffer) tileHash(tx, ty int) uint32 {
	left := tx * tileSize
	top := ty * tileSize
	right := left + tileSize
	bottom := top + tileSize
	if right > b.Width {
		right = b.Width
	}
	if bottom > b.Height {
		bottom = b.Height
	}

	h := crc32.NewIEEE()
	bytesPerPixel := b.Stride / maxInt(b.Width, 1)
	if bytesPerPixel == 0 {
		bytesPerPixel = 4
	}
	for y := top; y < bottom; y++ {
		rowStart := y*b.Stride + left*bytesPerPixel
		rowEnd := y*b.Stride + right*bytesPerPixel
		if rowEnd > len(b.Data) {
			rowEnd = len(b.Data)
		}
		if rowStart >= rowEnd {
			continue
		}
		h.Write(b.Data[rowStart:rowEnd])
	}
	return h.Sum32()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Detector tracks the previous submitted buffer at 64x64 tile granularity
// and emits damage regions (spec.md §4.4). The first encode, and any encode
// after an explicit Invalidate, damages the whole surface.
type Detector struct {
	mu          sync.Mutex
	tileHashes  map[[2]int]uint32
	everEncoded bool
}

func NewDetector() *Detector {
	return &Detector{tileHashes: make(map[[2]int]uint32)}
}

// Invalidate forces the next Diff call to report the whole surface as
// damaged (called on layout change, per spec.md's Surface.Invalidate).
func (d *Detector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.everEncoded = false
	d.tileHashes = make(map[[2]int]uint32)
}

// Diff computes the damage region between the previously recorded buffer
// and buf. Returns the list of damaged tile-aligned rects, which is empty
// if the buffers are pixel-identical (spec.md property 8).
func (d *Detector) Diff(buf *Buffer) []Rect {
	d.mu.Lock()
	defer d.mu.Unlock()

	tilesX := (buf.Width + tileSize - 1) / tileSize
	tilesY := (buf.Height + tileSize - 1) / tileSize

	var damaged []Rect
	wholeSurface := !d.everEncoded

	newHashes := make(map[[2]int]uint32, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			key := [2]int{tx, ty}
			h := buf.tileHash(tx, ty)
			newHashes[key] = h

			changed := wholeSurface
			if !changed {
				prev, ok := d.tileHashes[key]
				changed = !ok || prev != h
			}
			if changed {
				left, top := tx*tileSize, ty*tileSize
				right, bottom := minInt(left+tileSize, buf.Width), minInt(top+tileSize, buf.Height)
				damaged = append(damaged, Rect{Left: left, Top: top, Right: right, Bottom: bottom})
			}
		}
	}

	d.tileHashes = newHashes
	d.everEncoded = true
	return damaged
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
