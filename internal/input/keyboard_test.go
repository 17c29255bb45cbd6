package input

import "testing"

type recordingEmitter struct {
	keys []KeyEvent
}

func (r *recordingEmitter) EmitKey(ev KeyEvent) { r.keys = append(r.keys, ev) }

func testVKTable() map[ScancodeKey]uint32 {
	return map[ScancodeKey]uint32{
		{Code: 0x1E, Extended: false}: 1, // 'A'
		{Code: 0x1F, Extended: false}: 2, // 'S'
	}
}

func TestHandleScancodeTracksPressedSet(t *testing.T) {
	e := &recordingEmitter{}
	kb := NewKeyboard(testVKTable(), e)

	kb.HandleScancode(0x1E, false, true)
	if !kb.Pressed(1) {
		t.Fatal("expected keycode 1 to be pressed")
	}
	kb.HandleScancode(0x1E, false, false)
	if kb.Pressed(1) {
		t.Fatal("expected keycode 1 to be released")
	}
}

func TestSynchronizeReleasesAllPressed(t *testing.T) {
	e := &recordingEmitter{}
	kb := NewKeyboard(testVKTable(), e)

	kb.HandleScancode(0x1E, false, true)
	kb.HandleScancode(0x1F, false, true)
	e.keys = nil

	kb.Synchronize()
	if len(e.keys) != 2 {
		t.Fatalf("expected 2 release events, got %d", len(e.keys))
	}
	for _, ev := range e.keys {
		if ev.Pressed {
			t.Fatalf("expected Synchronize to only emit releases, got %+v", ev)
		}
	}
	if kb.Pressed(1) || kb.Pressed(2) {
		t.Fatal("expected pressed set cleared after Synchronize")
	}
}

func TestPauseSequenceSynthesizesSinglePress(t *testing.T) {
	e := &recordingEmitter{}
	kb := NewKeyboard(testVKTable(), e)

	kb.HandleScancode(scanCtrl, true, true)
	kb.HandleScancode(scanNumLock, false, true)
	kb.HandleScancode(scanCtrl, true, false)
	kb.HandleScancode(scanNumLock, false, false)

	var pauseEvents []KeyEvent
	for _, ev := range e.keys {
		if ev.Keycode == pauseSynthesizedKeycode {
			pauseEvents = append(pauseEvents, ev)
		}
	}
	if len(pauseEvents) != 2 {
		t.Fatalf("expected exactly one synthesized press+release, got %d events", len(pauseEvents))
	}
	if !pauseEvents[0].Pressed || pauseEvents[1].Pressed {
		t.Fatalf("expected press then release, got %+v", pauseEvents)
	}
}

func TestPauseSequenceBrokenMidwayDoesNotSynthesize(t *testing.T) {
	e := &recordingEmitter{}
	kb := NewKeyboard(testVKTable(), e)

	kb.HandleScancode(scanCtrl, true, true)
	kb.HandleScancode(0x1E, false, true) // unrelated key breaks the sequence
	kb.HandleScancode(scanNumLock, false, true)
	kb.HandleScancode(scanCtrl, true, false)
	kb.HandleScancode(scanNumLock, false, false)

	for _, ev := range e.keys {
		if ev.Keycode == pauseSynthesizedKeycode {
			t.Fatalf("did not expect synthesized pause, got %+v", ev)
		}
	}
}

func TestUnmappedScancodeIsIgnored(t *testing.T) {
	e := &recordingEmitter{}
	kb := NewKeyboard(testVKTable(), e)

	kb.HandleScancode(0xFF, false, true)
	if len(e.keys) != 0 {
		t.Fatalf("expected no emitted events for unmapped scancode, got %d", len(e.keys))
	}
}

func TestUnicodeKeyboardTracksAndSynchronizes(t *testing.T) {
	e := &recordingEmitter{}
	uk := NewUnicodeKeyboard(e)

	uk.HandleUnicode('a', true)
	uk.HandleUnicode('b', true)
	e.keys = nil

	uk.Synchronize()
	if len(e.keys) != 2 {
		t.Fatalf("expected 2 release events, got %d", len(e.keys))
	}
}
