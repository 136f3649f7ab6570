package clock

import (
	"math"
	"sync/atomic"
	"time"

	"hallkeys/debug"
	"hallkeys/midi"
)

// ExternalTimeout is how long the external clock stays authoritative after
// the last Clock byte
const ExternalTimeout = 500 * time.Millisecond

// Receiver turns incoming System Realtime bytes into phase updates and a
// measured tempo. Everything else on the wire is ignored.
type Receiver struct {
	phase    *Phase
	external *atomic.Bool
	onReset  func(at time.Time)

	lastClock time.Time
	beatStart time.Time
	pulses    int
	bpm       float64
}

func newReceiver(phase *Phase, external *atomic.Bool) *Receiver {
	return &Receiver{
		phase:    phase,
		external: external,
		bpm:      DefaultBPM,
	}
}

// Feed processes one input byte received at the given time
func (r *Receiver) Feed(b uint8, at time.Time) {
	switch b {
	case midi.Clock:
		r.clock(at)
	case midi.Start, midi.Continue:
		r.mark(at)
		r.phase.Reset()
		r.pulses = 0
		// the next Clock opens the first beat
		r.beatStart = time.Time{}
		debug.Log("clock", "external %s", realtimeName(b))
		if r.onReset != nil {
			r.onReset(at)
		}
	case midi.Stop:
		// authority only lapses through the timeout
		debug.Log("clock", "external stop")
	}
}

func (r *Receiver) clock(at time.Time) {
	if !r.external.Load() || r.beatStart.IsZero() {
		debug.Log("clock", "external beat anchored")
		r.beatStart = at
		r.pulses = 0
	} else {
		r.pulses++
		if r.pulses >= PPQN {
			r.measure(at.Sub(r.beatStart))
			r.beatStart = at
			r.pulses = 0
		}
	}
	r.mark(at)
	r.phase.Advance()
}

func (r *Receiver) measure(beat time.Duration) {
	if beat <= 0 {
		return
	}
	bpm := math.Round(float64(time.Minute) / float64(beat))
	if bpm < MinBPM || bpm > MaxBPM {
		debug.LogEvery(8, "clock", "discarding out of range bpm=%v", bpm)
		return
	}
	if bpm != r.bpm {
		debug.Log("clock", "external bpm=%v", bpm)
	}
	r.bpm = bpm
}

func (r *Receiver) mark(at time.Time) {
	r.lastClock = at
	r.external.Store(true)
}

// expired reports whether the external clock has been silent for the
// timeout window and clears the measurement anchor if so
func (r *Receiver) expired(now time.Time) bool {
	if !r.external.Load() || now.Sub(r.lastClock) < ExternalTimeout {
		return false
	}
	r.beatStart = time.Time{}
	r.pulses = 0
	return true
}

// BPM returns the last accepted external measurement
func (r *Receiver) BPM() float64 {
	return r.bpm
}

// LastClock returns when the last Clock, Start or Continue arrived
func (r *Receiver) LastClock() time.Time {
	return r.lastClock
}

func realtimeName(b uint8) string {
	switch b {
	case midi.Clock:
		return "clock"
	case midi.Start:
		return "start"
	case midi.Continue:
		return "continue"
	case midi.Stop:
		return "stop"
	}
	return "unknown"
}
