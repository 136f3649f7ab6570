package sequencer

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"hallkeys/debug"
	"hallkeys/midi"
)

// NumPitches is the MIDI pitch range
const NumPitches = 128

// NotePool is the single source of truth for what is sounding. Each pitch
// carries a reference count; only the 0->1 and 1->0 transitions reach the
// wire, so any number of holders can share a pitch.
type NotePool struct {
	counts   [NumPitches]uint8
	send     midi.Sender
	channel  uint8
	velocity uint8
	onChange func(pitch uint8, on bool)
}

// NewNotePool creates an empty pool writing to send on channel (0-based)
func NewNotePool(send midi.Sender, channel, velocity uint8) *NotePool {
	if send == nil {
		send = midi.Discard
	}
	return &NotePool{
		send:     send,
		channel:  channel & 0x0F,
		velocity: velocity & 0x7F,
	}
}

// OnChange registers a hook fired on every emitted transition
func (p *NotePool) OnChange(fn func(pitch uint8, on bool)) {
	p.onChange = fn
}

// SetVelocity changes the velocity of future note-ons
func (p *NotePool) SetVelocity(v uint8) {
	p.velocity = v & 0x7F
}

// Acquire takes a reference on pitch, sounding it if it was silent. It
// reports false, taking nothing, for out-of-range pitches and for a pitch
// whose count is saturated.
func (p *NotePool) Acquire(pitch int) bool {
	if pitch < 0 || pitch >= NumPitches {
		return false
	}
	c := p.counts[pitch]
	if c == 0xFF {
		return false
	}
	p.counts[pitch] = c + 1
	if c == 0 {
		p.emit(uint8(pitch), true)
	}
	return true
}

// Release drops a reference on pitch, silencing it on the last one.
// Releasing a silent pitch does nothing.
func (p *NotePool) Release(pitch int) {
	if pitch < 0 || pitch >= NumPitches || p.counts[pitch] == 0 {
		return
	}
	p.counts[pitch]--
	if p.counts[pitch] == 0 {
		p.emit(uint8(pitch), false)
	}
}

// ReleaseAll silences every sounding pitch and clears all references
func (p *NotePool) ReleaseAll() {
	for pitch := range p.counts {
		if p.counts[pitch] > 0 {
			p.counts[pitch] = 0
			p.emit(uint8(pitch), false)
		}
	}
}

// Panic sends All Notes Off on the output channel and then clears the pool
func (p *NotePool) Panic() {
	debug.Log("notes", "panic")
	p.send(gomidi.ControlChange(p.channel, midi.AllNotesOff, 0))
	p.ReleaseAll()
}

// Count returns the number of references on pitch
func (p *NotePool) Count(pitch int) int {
	if pitch < 0 || pitch >= NumPitches {
		return 0
	}
	return int(p.counts[pitch])
}

// IsOn reports whether pitch is sounding
func (p *NotePool) IsOn(pitch int) bool {
	return p.Count(pitch) > 0
}

// Active returns the sounding pitches in ascending order
func (p *NotePool) Active() []uint8 {
	var out []uint8
	for pitch, c := range p.counts {
		if c > 0 {
			out = append(out, uint8(pitch))
		}
	}
	return out
}

func (p *NotePool) emit(pitch uint8, on bool) {
	var err error
	if on {
		err = p.send(gomidi.NoteOn(p.channel, pitch, p.velocity))
	} else {
		err = p.send(gomidi.NoteOff(p.channel, pitch))
	}
	if err != nil {
		debug.LogEvery(50, "notes", "send failed: %v", err)
	}
	if p.onChange != nil {
		p.onChange(pitch, on)
	}
}
