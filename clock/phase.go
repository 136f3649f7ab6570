// Package clock owns the 24 PPQN beat phase and decides which source drives it:
// the internal generator (tap tempo) or an external MIDI clock.
package clock

import "sync/atomic"

const (
	PPQN          = 24
	BeatsPerCycle = 4
	CycleLength   = PPQN * BeatsPerCycle // 96 pulses
)

// Phase is the shared pulse counter. It is the only state touched by both the
// generator goroutine and the foreground loop, so it is a single atomic word:
// a monotonic pulse count since the last reset. Pulse, beat and sub-beat are
// derived from it, which keeps every read consistent without a lock.
type Phase struct {
	ticks atomic.Uint64
}

// Advance moves the phase one pulse forward and returns the new count
func (p *Phase) Advance() uint64 {
	return p.ticks.Add(1)
}

// Reset puts the phase on the downbeat
func (p *Phase) Reset() {
	p.ticks.Store(0)
}

// Set rebases the phase to an absolute pulse count
func (p *Phase) Set(ticks uint64) {
	p.ticks.Store(ticks)
}

// Ticks returns the pulse count since the last reset
func (p *Phase) Ticks() uint64 {
	return p.ticks.Load()
}

// Pulse returns the position in the 4-beat cycle, 0..95
func (p *Phase) Pulse() int {
	return int(p.Ticks() % CycleLength)
}

// Beat returns the beat in the cycle, 0..3
func (p *Phase) Beat() int {
	return p.Pulse() / PPQN
}

// SubBeat returns the pulse within the beat, 0..23
func (p *Phase) SubBeat() int {
	return int(p.Ticks() % PPQN)
}
