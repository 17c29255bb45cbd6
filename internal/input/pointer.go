package input

// PositionTransformer resolves an absolute RDP-desktop coordinate to a
// host-local coordinate on the owning surface, per the Layout Manager's
// PositionTransform (spec.md §4.3/§4.7). ok is false when the point is
// outside every surface.
type PositionTransformer interface {
	PositionTransform(x, y int) (localX, localY int, ok bool)
}

// Button identifies a pointer button, per spec.md §4.7's LEFT/RIGHT/
// MIDDLE/SIDE/EXTRA mapping.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonSide
	ButtonExtra
)

const wheelScrollStep = 10

// PointerEvent is emitted toward the host input handler.
type PointerEvent struct {
	X, Y    int
	Button  Button
	Pressed bool

	IsMotion bool

	IsWheel    bool
	Horizontal bool // HWHEEL vs WHEEL
	Steps      int  // signed number of discrete scroll steps
}

// PointerEmitter receives translated pointer events.
type PointerEmitter interface {
	EmitPointer(ev PointerEvent)
}

// Pointer translates RDP pointer PDUs into host events via the layout
// manager's position transform.
type Pointer struct {
	layout PositionTransformer
	emit   PointerEmitter
}

func NewPointer(layout PositionTransformer, emit PointerEmitter) *Pointer {
	return &Pointer{layout: layout, emit: emit}
}

// Move translates an absolute pointer-move PDU. ok is false if the
// position lands outside every surface, in which case nothing is emitted.
func (p *Pointer) Move(x, y int) bool {
	lx, ly, ok := p.layout.PositionTransform(x, y)
	if !ok {
		return false
	}
	p.emit.EmitPointer(PointerEvent{X: lx, Y: ly, IsMotion: true})
	return true
}

// Button translates a button press/release at an absolute position.
func (p *Pointer) Button(x, y int, btn Button, pressed bool) bool {
	lx, ly, ok := p.layout.PositionTransform(x, y)
	if !ok {
		return false
	}
	p.emit.EmitPointer(PointerEvent{X: lx, Y: ly, Button: btn, Pressed: pressed})
	return true
}

// Wheel translates a PTR_FLAGS_WHEEL rotation value (signed, magnitude in
// multiples of 120) into discrete scroll steps, per spec.md §4.7. Each 120
// units become wheelScrollStep steps; a negative rotation (the client's
// PTR_FLAGS_WHEEL_NEGATIVE) gives negative Steps, and horizontal wheels
// invert the sign.
func (p *Pointer) Wheel(x, y int, rotation int, horizontal bool) bool {
	lx, ly, ok := p.layout.PositionTransform(x, y)
	if !ok {
		return false
	}

	negative := rotation < 0
	magnitude := rotation
	if negative {
		magnitude = -magnitude
	}
	steps := (magnitude / 120) * wheelScrollStep
	if negative {
		steps = -steps
	}
	if horizontal {
		steps = -steps
	}

	p.emit.EmitPointer(PointerEvent{
		X: lx, Y: ly,
		IsWheel:    true,
		Horizontal: horizontal,
		Steps:      steps,
	})
	return true
}
