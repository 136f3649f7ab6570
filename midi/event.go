package midi

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI status bytes used by the keyboard
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// System Realtime bytes (single byte, may arrive anywhere in the stream)
const (
	Clock    uint8 = 0xF8
	Start    uint8 = 0xFA
	Continue uint8 = 0xFB
	Stop     uint8 = 0xFC
)

// AllNotesOff is the Control Change number for "All Notes Off"
const AllNotesOff uint8 = 123

// DefaultVelocity is the note-on velocity of the Hall keys (no velocity sensing)
const DefaultVelocity uint8 = 0x45

// IsRealtime reports whether b is one of the realtime bytes the clock cares about
func IsRealtime(b uint8) bool {
	switch b {
	case Clock, Start, Continue, Stop:
		return true
	}
	return false
}

// RealtimeEvent is a realtime byte stamped with its arrival time
type RealtimeEvent struct {
	Byte uint8
	At   time.Time
}

// KeyEvent is a debounced edge of one key of the matrix
type KeyEvent struct {
	Key     int
	Pressed bool // false = released
	At      time.Time
}

// Event is a decoded channel or realtime message, used for monitoring and tests
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC or a realtime byte
	Channel  uint8
	Note     uint8 // note number or controller number
	Velocity uint8 // velocity or controller value
}

// NumKeys is the size of the Hall key matrix (C to C)
const NumKeys = 13

// Realtime builds a single-byte System Realtime message
func Realtime(b uint8) gomidi.Message {
	return gomidi.Message{b}
}
