package input

import "fmt"

// ContactState is a position in the per-contact touch state machine
// (spec.md §4.7).
type ContactState int

const (
	ContactOutOfRange ContactState = iota
	ContactHovering
	ContactEngaged
)

func (s ContactState) String() string {
	switch s {
	case ContactOutOfRange:
		return "OutOfRange"
	case ContactHovering:
		return "Hovering"
	case ContactEngaged:
		return "Engaged"
	default:
		return "Unknown"
	}
}

// Action is the RDP touch-frame action for one contact.
type Action int

const (
	ActionDown Action = iota
	ActionUpdate
	ActionUp
)

// ContactFrame is one host-reported touch sample for a single contact id.
type ContactFrame struct {
	ContactID        int
	Action           Action
	InRange          bool
	InContact        bool
	Canceled         bool
	X, Y             int
	TransformedOutOfSurfaces bool // set by caller after a position transform miss
}

// TouchEventKind distinguishes the emitted touch notifications.
type TouchEventKind int

const (
	TouchDown TouchEventKind = iota
	TouchMotion
	TouchUp
	TouchCancel
)

type TouchEvent struct {
	ContactID int
	Kind      TouchEventKind
	X, Y      int
	Ignore    bool
}

// TouchEmitter receives per-contact events and an end-of-frame marker.
type TouchEmitter interface {
	EmitTouch(ev TouchEvent)
	EmitDeviceFrame()
}

const maxContacts = 256

// TouchDevice drives the multi-contact state machine across up to 256
// concurrently tracked contact ids.
type TouchDevice struct {
	states map[int]ContactState
	emit   TouchEmitter
}

func NewTouchDevice(emit TouchEmitter) *TouchDevice {
	return &TouchDevice{states: make(map[int]ContactState), emit: emit}
}

// ProcessFrame applies a batch of per-contact samples (one RDP touch
// frame) to the state machine, emitting a single EmitDeviceFrame at the
// end if any contact mutated.
func (t *TouchDevice) ProcessFrame(contacts []ContactFrame) error {
	mutated := false
	for _, c := range contacts {
		if c.ContactID < 0 || c.ContactID >= maxContacts {
			return fmt.Errorf("touch contact id %d out of range [0,%d)", c.ContactID, maxContacts)
		}
		if t.step(c) {
			mutated = true
		}
	}
	if mutated {
		t.emit.EmitDeviceFrame()
	}
	return nil
}

func (t *TouchDevice) state(id int) ContactState {
	s, ok := t.states[id]
	if !ok {
		return ContactOutOfRange
	}
	return s
}

func (t *TouchDevice) setState(id int, s ContactState) {
	if s == ContactOutOfRange {
		delete(t.states, id)
		return
	}
	t.states[id] = s
}

// step applies one contact sample, returning whether it mutated state or
// emitted anything.
func (t *TouchDevice) step(c ContactFrame) bool {
	cur := t.state(c.ContactID)

	switch cur {
	case ContactOutOfRange:
		switch {
		case c.Action == ActionDown && c.InRange && c.InContact:
			t.setState(c.ContactID, ContactEngaged)
			t.emitTouch(c, TouchDown)
			return true
		case c.Action == ActionUpdate && c.InRange && !c.InContact:
			t.setState(c.ContactID, ContactHovering)
			return true
		}

	case ContactHovering:
		switch {
		case c.Action == ActionUpdate && c.InRange && c.InContact:
			t.setState(c.ContactID, ContactEngaged)
			t.emitTouch(c, TouchDown)
			return true
		case c.Action == ActionDown && c.InRange && c.InContact:
			t.setState(c.ContactID, ContactEngaged)
			return true
		case c.Action == ActionUpdate && (c.Canceled || !c.InRange):
			// UPDATE|CANCELED or plain UPDATE loses the hover without
			// emitting anything: a dismissed Hovering contact is just
			// disposed.
			t.setState(c.ContactID, ContactOutOfRange)
			return true
		}

	case ContactEngaged:
		switch {
		case c.Action == ActionUpdate && c.InRange && c.InContact:
			t.setState(c.ContactID, ContactEngaged)
			t.emitTouch(c, TouchMotion)
			return true
		case c.Action == ActionUp && c.Canceled:
			t.setState(c.ContactID, ContactOutOfRange)
			t.emitTouch(c, TouchCancel)
			return true
		case c.Action == ActionUp && c.InRange:
			t.setState(c.ContactID, ContactHovering)
			t.emitTouch(c, TouchUp)
			return true
		case c.Action == ActionUp:
			t.setState(c.ContactID, ContactOutOfRange)
			t.emitTouch(c, TouchUp)
			return true
		}
	}

	return false
}

func (t *TouchDevice) emitTouch(c ContactFrame, kind TouchEventKind) {
	t.emit.EmitTouch(TouchEvent{
		ContactID: c.ContactID,
		Kind:      kind,
		X:         c.X,
		Y:         c.Y,
		Ignore:    c.TransformedOutOfSurfaces,
	})
}

// State exposes the current state of a contact, for tests and diagnostics.
func (t *TouchDevice) State(id int) ContactState {
	return t.state(id)
}
