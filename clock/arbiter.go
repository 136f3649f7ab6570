package clock

import (
	"sync/atomic"
	"time"

	"hallkeys/debug"
	"hallkeys/midi"
)

// Source names whoever is currently driving the phase
type Source int

const (
	SourceTap Source = iota // no pulse stream, fractional progress from tap tempo
	SourceInternal
	SourceExternal
)

func (s Source) String() string {
	switch s {
	case SourceTap:
		return "tap"
	case SourceInternal:
		return "internal"
	case SourceExternal:
		return "external"
	}
	return "unknown"
}

// View is the read-only clock state handed to the arpeggiator once per poll
type View struct {
	Running      bool // a pulse stream is advancing the phase
	Ticks        uint64
	BeatLength   time.Duration
	BeatProgress float64 // tap tempo progress through the current beat, [0,1)
}

// Pulse returns the position of the view in the 4-beat cycle
func (v View) Pulse() int {
	return int(v.Ticks % CycleLength)
}

// Arbiter owns the phase and decides which producer may advance it. Feed,
// Poll and the control methods run on the foreground loop; only the
// generator goroutine runs concurrently and it touches nothing but the phase.
type Arbiter struct {
	phase    Phase
	external atomic.Bool

	gen  *Generator
	recv *Receiver
	tap  *TapTempo

	thru       midi.Sender
	onDownbeat func()
}

// NewArbiter wires a generator, a receiver and tap tempo around one phase
func NewArbiter(send midi.Sender, bpm float64, now time.Time) *Arbiter {
	a := &Arbiter{tap: NewTapTempo(bpm, now)}
	a.gen = NewGenerator(&a.phase, &a.external, send)
	a.gen.SetBPM(a.tap.BPM())
	a.recv = newReceiver(&a.phase, &a.external)
	a.recv.onReset = func(at time.Time) {
		a.tap.ResetTapChain(at)
		a.downbeat()
	}
	return a
}

// Generator exposes the internal producer so the caller can run it
func (a *Arbiter) Generator() *Generator { return a.gen }

// Phase exposes the shared pulse counter
func (a *Arbiter) Phase() *Phase { return &a.phase }

// SetThru forwards every received realtime byte to send (nil disables)
func (a *Arbiter) SetThru(send midi.Sender) { a.thru = send }

// OnDownbeat registers the hook fired on Start, Continue and manual resync
func (a *Arbiter) OnDownbeat(fn func()) { a.onDownbeat = fn }

// Feed hands one received byte to the receiver
func (a *Arbiter) Feed(b uint8, at time.Time) {
	if !midi.IsRealtime(b) {
		return
	}
	a.recv.Feed(b, at)
	if a.thru != nil {
		a.thru(midi.Realtime(b))
	}
}

// Poll runs the external clock timeout. Returns true when authority just
// reverted to the internal side.
func (a *Arbiter) Poll(now time.Time) bool {
	if !a.recv.expired(now) {
		return false
	}
	a.external.Store(false)
	if a.gen.Running() {
		a.gen.Rebase(now.Add(a.gen.Interval()))
	}
	debug.Log("clock", "external clock lost, reverting to %s", a.Source())
	return true
}

// External reports whether an external clock is authoritative
func (a *Arbiter) External() bool {
	return a.external.Load()
}

// Source returns who drives the phase
func (a *Arbiter) Source() Source {
	switch {
	case a.external.Load():
		return SourceExternal
	case a.gen.Running():
		return SourceInternal
	}
	return SourceTap
}

// Running reports whether a pulse stream is advancing the phase
func (a *Arbiter) Running() bool {
	return a.external.Load() || a.gen.Running()
}

// BPM returns the authoritative tempo
func (a *Arbiter) BPM() float64 {
	if a.external.Load() {
		return a.recv.BPM()
	}
	return a.tap.BPM()
}

// BeatLength returns the length of one beat at the authoritative tempo
func (a *Arbiter) BeatLength() time.Duration {
	return time.Duration(float64(time.Minute) / a.BPM())
}

// SetBPM sets the internal tempo directly
func (a *Arbiter) SetBPM(bpm float64) {
	a.tap.SetBPM(bpm)
	a.gen.SetBPM(a.tap.BPM())
}

// Tap feeds the tap tempo and retunes the generator. Returns true when the
// tempo changed.
func (a *Arbiter) Tap(at time.Time) bool {
	if !a.tap.Tap(at) {
		return false
	}
	a.gen.SetBPM(a.tap.BPM())
	debug.Log("clock", "tap bpm=%.1f", a.tap.BPM())
	return true
}

// Start starts the internal generator. Ignored while an external clock rules.
func (a *Arbiter) Start(now time.Time) bool {
	if a.external.Load() {
		return false
	}
	a.gen.Start(now)
	a.tap.SetAnchor(now)
	return true
}

// Continue resumes the internal generator from the current phase
func (a *Arbiter) Continue(now time.Time) bool {
	if a.external.Load() {
		return false
	}
	a.gen.Continue(now)
	return true
}

// Stop stops the internal generator
func (a *Arbiter) Stop() {
	a.gen.Stop()
}

// Resync makes the moment the user pressed the sync control the new
// downbeat. The pulses that already elapsed between the press and now are
// credited to the phase. Ignored while an external clock rules.
func (a *Arbiter) Resync(pressedAt, now time.Time) bool {
	if a.external.Load() {
		return false
	}
	elapsed := now.Sub(pressedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	iv := a.gen.Interval()
	ticks := uint64(elapsed / iv)

	a.tap.SetAnchor(pressedAt)
	if a.gen.Running() {
		a.gen.resync(ticks, pressedAt.Add(time.Duration(ticks+1)*iv))
	} else {
		a.phase.Set(ticks)
	}
	debug.Log("clock", "resync ticks=%d latency=%v", ticks, elapsed)
	a.downbeat()
	return true
}

// View snapshots the clock for one sequencer poll
func (a *Arbiter) View(now time.Time) View {
	return View{
		Running:      a.Running(),
		Ticks:        a.phase.Ticks(),
		BeatLength:   a.BeatLength(),
		BeatProgress: a.tap.BeatProgress(now),
	}
}

// TapTempo exposes the tap tempo state
func (a *Arbiter) TapTempo() *TapTempo { return a.tap }

func (a *Arbiter) downbeat() {
	if a.onDownbeat != nil {
		a.onDownbeat()
	}
}
