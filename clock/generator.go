package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hallkeys/debug"
	"hallkeys/midi"
)

// idlePoll is how often a stopped or suppressed generator looks at its state
const idlePoll = 5 * time.Millisecond

// IntervalFor returns the pulse period for a tempo: 60_000_000 / (bpm * 24) µs
func IntervalFor(bpm float64) time.Duration {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return time.Duration(float64(time.Minute) / (bpm * PPQN))
}

// Generator is the internal clock producer. Poll is driven either by Run (a
// dedicated goroutine standing in for the timer interrupt) or directly by
// tests. It only touches the Phase and the output; it never looks at notes.
type Generator struct {
	phase    *Phase
	external *atomic.Bool
	send     midi.Sender

	interval atomic.Int64 // time.Duration per pulse
	running  atomic.Bool

	mu   sync.Mutex
	next time.Time // deadline of the next pulse

	wake chan struct{}
}

// NewGenerator creates a stopped generator at the default tempo
func NewGenerator(phase *Phase, external *atomic.Bool, send midi.Sender) *Generator {
	g := &Generator{
		phase:    phase,
		external: external,
		send:     send,
		wake:     make(chan struct{}, 1),
	}
	g.SetBPM(DefaultBPM)
	return g
}

// SetBPM recomputes the pulse period
func (g *Generator) SetBPM(bpm float64) {
	iv := IntervalFor(bpm)
	if time.Duration(g.interval.Swap(int64(iv))) != iv {
		g.nudge()
	}
}

// Interval returns the current pulse period
func (g *Generator) Interval() time.Duration {
	return time.Duration(g.interval.Load())
}

// Running reports whether the generator has been started
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Start sends MIDI Start, puts the phase on the downbeat and starts pulsing
func (g *Generator) Start(now time.Time) {
	g.send(midi.Realtime(midi.Start))
	g.phase.Reset()
	g.mu.Lock()
	g.next = now.Add(g.Interval())
	g.mu.Unlock()
	g.running.Store(true)
	debug.Log("clock", "generator start interval=%v", g.Interval())
	g.nudge()
}

// Continue sends MIDI Continue and resumes pulsing without touching the phase
func (g *Generator) Continue(now time.Time) {
	g.send(midi.Realtime(midi.Continue))
	g.mu.Lock()
	g.next = now.Add(g.Interval())
	g.mu.Unlock()
	g.running.Store(true)
	g.nudge()
}

// Stop sends MIDI Stop and stops pulsing
func (g *Generator) Stop() {
	if !g.running.Swap(false) {
		return
	}
	g.send(midi.Realtime(midi.Stop))
	debug.Log("clock", "generator stop")
}

// Rebase moves the next pulse deadline (used by manual resync)
func (g *Generator) Rebase(next time.Time) {
	g.mu.Lock()
	g.next = next
	g.mu.Unlock()
	g.nudge()
}

// NextDeadline returns when the next pulse is due
func (g *Generator) NextDeadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}

// Poll emits every pulse that is due at now and returns how many were sent.
// The deadline advances by whole intervals so processing jitter never
// accumulates into drift. While an external clock is authoritative nothing is
// emitted and the deadline trails now, so there is no burst on hand-back.
func (g *Generator) Poll(now time.Time) int {
	if !g.running.Load() {
		return 0
	}
	iv := g.Interval()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.external.Load() {
		g.next = now.Add(iv)
		return 0
	}
	if now.Sub(g.next) > CycleLength*iv {
		debug.Log("clock", "generator %v behind, rebasing", now.Sub(g.next))
		g.next = now
	}

	n := 0
	for !now.Before(g.next) {
		g.send(midi.Realtime(midi.Clock))
		g.phase.Advance()
		g.next = g.next.Add(iv)
		n++
	}
	return n
}

// Run drives Poll from a timer until ctx is done
func (g *Generator) Run(ctx context.Context) {
	timer := time.NewTimer(idlePoll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.wake:
		case <-timer.C:
		}

		g.Poll(time.Now())

		wait := idlePoll
		if g.running.Load() && !g.external.Load() {
			if d := time.Until(g.NextDeadline()); d < wait {
				wait = max(d, 0)
			}
		}
		timer.Reset(wait)
	}
}

func (g *Generator) nudge() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// resync sends Start and moves the phase and the next deadline together, so
// the pulse goroutine never advances a half-updated phase
func (g *Generator) resync(ticks uint64, next time.Time) {
	g.mu.Lock()
	g.send(midi.Realtime(midi.Start))
	g.phase.Set(ticks)
	g.next = next
	g.mu.Unlock()
	g.nudge()
}
