// Package input implements Input Translation (spec.md §4.7): scancode and
// Unicode keyboard translation, pointer translation through the layout
// manager, and the multi-contact touch state machine.
package input

import "github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"

var log = logging.L("input")

// KeyEvent is emitted toward the host input handler.
type KeyEvent struct {
	Keycode uint32
	Pressed bool
}

// Emitter receives translated key events, including the synthesized Pause
// press and release.
type Emitter interface {
	EmitKey(ev KeyEvent)
}

// pauseState tracks the Ctrl-ext1-down, NumLock-down, Ctrl-ext1-up,
// NumLock-up sequence clients send in place of a Pause scancode.
type pauseState int

const (
	pauseIdle pauseState = iota
	pauseSawCtrlDown
	pauseSawNumLockDown
	pauseSawCtrlUp
)

const pauseSynthesizedKeycode = 0xFF13 // platform-neutral Pause keysym

// Keyboard tracks the pressed scancode set and the Pause-sequence detector.
type Keyboard struct {
	table   map[ScancodeKey]uint32
	pressed map[uint32]bool
	pause   pauseState
	emit    Emitter
}

// ScancodeKey identifies a (scancode, extended-flag) pair in a vkTable.
type ScancodeKey struct {
	Code     uint8
	Extended bool
}

// NewKeyboard builds a keyboard translator over a virtual-key/keycode
// table; vkTable maps (scancode, extended) directly to platform-neutral
// keycodes, mirroring the two-stage table the host driver exposes.
func NewKeyboard(vkTable map[ScancodeKey]uint32, emit Emitter) *Keyboard {
	return &Keyboard{
		table:   vkTable,
		pressed: make(map[uint32]bool),
		emit:    emit,
	}
}

const (
	scanCtrl    = 0x1D
	scanNumLock = 0x45
)

// HandleScancode translates one (code, extended, pressed) event, tracking
// the Pause synthesis sequence and the pressed set.
func (k *Keyboard) HandleScancode(code uint8, extended, pressed bool) {
	k.advancePause(code, extended, pressed)

	keycode, ok := k.table[ScancodeKey{Code: code, Extended: extended}]
	if !ok {
		log.Debug("unmapped scancode", "code", code, "extended", extended)
		return
	}

	if pressed {
		k.pressed[keycode] = true
	} else {
		delete(k.pressed, keycode)
	}
	k.emit.EmitKey(KeyEvent{Keycode: keycode, Pressed: pressed})
}

// advancePause runs the Ctrl-ext1-down -> NumLock-down -> Ctrl-ext1-up ->
// NumLock-up detector, emitting a synthetic Pause press+release once the
// full sequence completes, per spec.md §4.7.
func (k *Keyboard) advancePause(code uint8, extended, pressed bool) {
	switch k.pause {
	case pauseIdle:
		if code == scanCtrl && extended && pressed {
			k.pause = pauseSawCtrlDown
		}
	case pauseSawCtrlDown:
		switch {
		case code == scanNumLock && pressed:
			k.pause = pauseSawNumLockDown
		case code == scanCtrl && extended && pressed:
			// stay
		default:
			k.pause = pauseIdle
		}
	case pauseSawNumLockDown:
		if code == scanCtrl && extended && !pressed {
			k.pause = pauseSawCtrlUp
		} else {
			k.pause = pauseIdle
		}
	case pauseSawCtrlUp:
		if code == scanNumLock && !pressed {
			k.pause = pauseIdle
			k.emit.EmitKey(KeyEvent{Keycode: pauseSynthesizedKeycode, Pressed: true})
			k.emit.EmitKey(KeyEvent{Keycode: pauseSynthesizedKeycode, Pressed: false})
		} else {
			k.pause = pauseIdle
		}
	}
}

// Synchronize releases every currently pressed key, per a client
// Synchronize event.
func (k *Keyboard) Synchronize() {
	for keycode := range k.pressed {
		k.emit.EmitKey(KeyEvent{Keycode: keycode, Pressed: false})
	}
	k.pressed = make(map[uint32]bool)
	k.pause = pauseIdle
}

// Pressed reports whether keycode is currently tracked as held.
func (k *Keyboard) Pressed(keycode uint32) bool {
	return k.pressed[keycode]
}

// UnicodeKeyboard tracks UTF-16 code units converted to keysyms, with its
// own independent pressed set (spec.md §4.7: Unicode input is a distinct
// code path from scancode input).
type UnicodeKeyboard struct {
	pressed map[rune]bool
	emit    Emitter
}

func NewUnicodeKeyboard(emit Emitter) *UnicodeKeyboard {
	return &UnicodeKeyboard{pressed: make(map[rune]bool), emit: emit}
}

// HandleUnicode converts a UTF-16 code unit to a keysym and emits it. True
// Unicode keysym mapping (surrogate pairs, dead keys) belongs to the
// external input-method collaborator; this tracks press state only.
func (u *UnicodeKeyboard) HandleUnicode(unit uint16, pressed bool) {
	r := rune(unit)
	if pressed {
		u.pressed[r] = true
	} else {
		delete(u.pressed, r)
	}
	u.emit.EmitKey(KeyEvent{Keycode: uint32(r), Pressed: pressed})
}

func (u *UnicodeKeyboard) Synchronize() {
	for r := range u.pressed {
		u.emit.EmitKey(KeyEvent{Keycode: uint32(r), Pressed: false})
	}
	u.pressed = make(map[rune]bool)
}
