package layout

// StreamOwner consumes a host capture stream identified by a stream id
// (spec.md glossary).
type StreamOwner interface {
	StreamID() uint32
}

// Surface is the per-monitor rendering context. Created by PREPARE_SURFACES,
// destroyed by layout changes or session shutdown.
type Surface struct {
	Monitor Monitor

	OriginX, OriginY int // output origin in final desktop coordinates

	streamID uint32
	valid    bool
}

func (s *Surface) StreamID() uint32 { return s.streamID }

// MarkValid is called after the surface's first successful encode.
func (s *Surface) MarkValid() { s.valid = true }

// Invalidate resets a surface to invalid on layout change, forcing the next
// encode to damage the whole surface.
func (s *Surface) Invalidate() { s.valid = false }

func (s *Surface) Valid() bool { return s.valid }

// Rect returns the surface's rectangle in final desktop coordinates.
func (s *Surface) Rect() (left, top, right, bottom int) {
	return s.OriginX, s.OriginY, s.OriginX + s.Monitor.Width, s.OriginY + s.Monitor.Height
}

// ContainsPoint implements the Layout Manager's position transform
// (spec.md §4.3): returns the stream-local coordinates if the point falls
// within this surface.
func (s *Surface) ContainsPoint(x, y int) (localX, localY int, ok bool) {
	left, top, right, bottom := s.Rect()
	if x < left || x >= right || y < top || y >= bottom {
		return 0, 0, false
	}
	return x - left, y - top, true
}
