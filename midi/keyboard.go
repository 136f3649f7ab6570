package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"hallkeys/debug"
)

// KeyboardController turns a standard MIDI keyboard into the key matrix:
// note number minus baseNote selects the key, everything outside the
// 13-key window is ignored. Realtime bytes on the same port are forwarded.
type KeyboardController struct {
	id       string
	inPort   drivers.In
	baseNote uint8
	stopFunc func()

	keyChan      chan KeyEvent
	realtimeChan chan RealtimeEvent
}

// NewKeyboardController creates a keyboard controller (input only)
func NewKeyboardController(id string, inPort drivers.In, baseNote uint8) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:           id,
		inPort:       inPort,
		baseNote:     baseNote,
		keyChan:      make(chan KeyEvent, 32),
		realtimeChan: make(chan RealtimeEvent, 256),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.handle, gomidi.UseTimeCode())
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) handle(msg gomidi.Message, timestampms int32) {
	now := time.Now()
	b := []byte(msg)
	if len(b) == 1 && IsRealtime(b[0]) {
		select {
		case kb.realtimeChan <- RealtimeEvent{Byte: b[0], At: now}:
		default:
		}
		return
	}

	var channel, note, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		kb.pushKey(note, true, now)
	case msg.GetNoteEnd(&channel, &note):
		kb.pushKey(note, false, now)
	}
}

func (kb *KeyboardController) pushKey(note uint8, pressed bool, at time.Time) {
	key, ok := kb.KeyFor(note)
	if !ok {
		return
	}
	select {
	case kb.keyChan <- KeyEvent{Key: key, Pressed: pressed, At: at}:
	default:
		debug.Log("keyboard", "key channel full, dropping key=%d pressed=%v", key, pressed)
	}
}

// KeyFor maps a note number onto the key matrix
func (kb *KeyboardController) KeyFor(note uint8) (int, bool) {
	key := int(note) - int(kb.baseNote)
	if key < 0 || key >= NumKeys {
		return 0, false
	}
	return key, true
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) KeyEvents() <-chan KeyEvent {
	return kb.keyChan
}

func (kb *KeyboardController) Realtime() <-chan RealtimeEvent {
	return kb.realtimeChan
}

// SetIndicator is a no-op for keyboards (no visual feedback)
func (kb *KeyboardController) SetIndicator(key int, on bool) {}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.keyChan)
	close(kb.realtimeChan)
	return nil
}
