package sequencer

import (
	"math"
	"time"

	"hallkeys/clock"
	"hallkeys/debug"
)

// ArpState is the externally visible sequencing state
type ArpState int

const (
	ArpIdle ArpState = iota
	ArpAscending
	ArpDescending
)

func (s ArpState) String() string {
	switch s {
	case ArpAscending:
		return "ascending"
	case ArpDescending:
		return "descending"
	}
	return "idle"
}

// Arpeggiator steps through the held multiset, phase-locked to the clock.
// It owns the multiset; every note it plays goes through the NotePool.
type Arpeggiator struct {
	pool *NotePool
	held HeldNotes

	mode ArpMode
	rate ArpRate
	duty int

	index     int // -1 = nothing played since silence or reset
	ascending bool
	sounding  int // pitch currently on, -1 none
	noteOnAt  time.Time
	stepLen   time.Duration

	// downbeat gating
	waiting   bool
	waitPulse int
	armed     bool // trigger on the next poll and rebase the trackers

	// trigger trackers
	clocked    bool
	lastStep   uint64
	beatCount  int
	lastRaw    float64
	lastScaled float64

	scratch [MaxHeld]uint8
}

// NewArpeggiator creates an idle arpeggiator playing into pool
func NewArpeggiator(pool *NotePool) *Arpeggiator {
	return &Arpeggiator{
		pool:      pool,
		mode:      ArpUpDown,
		rate:      RateEighth,
		duty:      DefaultDutyCycle,
		index:     -1,
		ascending: true,
		sounding:  -1,
	}
}

// SetMode changes the note order
func (a *Arpeggiator) SetMode(m ArpMode) {
	if m < 0 || m >= NumArpModes {
		return
	}
	a.mode = m
	switch m {
	case ArpUp, ArpSequence:
		a.ascending = true
	case ArpDown:
		a.ascending = false
	}
}

// SetRate changes the step length
func (a *Arpeggiator) SetRate(r ArpRate) {
	if r < 0 || r >= NumArpRates {
		return
	}
	a.rate = r
}

// SetDutyCycle sets the gate length in percent of a step, 1..100
func (a *Arpeggiator) SetDutyCycle(d int) {
	a.duty = min(max(d, 1), 100)
}

func (a *Arpeggiator) Mode() ArpMode { return a.mode }
func (a *Arpeggiator) Rate() ArpRate { return a.rate }
func (a *Arpeggiator) DutyCycle() int { return a.duty }
func (a *Arpeggiator) Waiting() bool { return a.waiting }
func (a *Arpeggiator) Len() int { return a.held.Len() }
func (a *Arpeggiator) Held() []uint8 { return a.held.Notes() }
func (a *Arpeggiator) Index() int { return a.index }
func (a *Arpeggiator) StepLength() time.Duration { return a.stepLen }

// State returns Idle or the current direction
func (a *Arpeggiator) State() ArpState {
	switch {
	case a.index < 0:
		return ArpIdle
	case a.ascending:
		return ArpAscending
	}
	return ArpDescending
}

// Sounding returns the pitch the arpeggiator currently holds on
func (a *Arpeggiator) Sounding() (uint8, bool) {
	if a.sounding < 0 {
		return 0, false
	}
	return uint8(a.sounding), true
}

// Add puts one instance of pitch into the rotation. It reports false when
// the rotation is full or the pitch is out of range.
func (a *Arpeggiator) Add(pitch int) bool {
	if a.held.Len() == 0 {
		a.index = -1
	}
	return a.held.Add(pitch)
}

// Remove takes one instance of pitch out of the rotation. When the last note
// goes the sounding note is released and the sequencer returns to Idle.
func (a *Arpeggiator) Remove(pitch int) {
	if !a.held.Remove(pitch) {
		return
	}
	n := a.held.Len()
	if n == 0 {
		a.idle()
		return
	}
	if a.index >= n {
		a.index = n - 1
	}
}

// WaitForDownbeat holds back the first trigger until the running clock
// crosses pulse 0 of the cycle. Without a running clock the next poll
// starts immediately.
func (a *Arpeggiator) WaitForDownbeat() {
	a.waiting = true
	a.waitPulse = -1
}

// Downbeat declares now to be the downbeat: the next poll triggers and all
// trackers restart from there
func (a *Arpeggiator) Downbeat() {
	a.waiting = false
	a.armed = true
}

// Deactivate silences the sounding note, empties the multiset and goes Idle
func (a *Arpeggiator) Deactivate() {
	a.held.Clear()
	a.idle()
	a.waiting = false
	a.armed = false
}

func (a *Arpeggiator) divisions() float64 {
	if a.mode == ArpSequence {
		return 0.25
	}
	return a.rate.Divisions()
}

func (a *Arpeggiator) dutyCycle() int {
	if a.mode == ArpSequence {
		return sequenceDuty
	}
	return a.duty
}

// pulsesPerStep is the MIDI clock step length, never below one pulse
func (a *Arpeggiator) pulsesPerStep() uint64 {
	pps := math.Round(clock.PPQN / a.divisions())
	if pps < 1 {
		return 1
	}
	return uint64(pps)
}

// Poll runs one foreground iteration: downbeat gating, trigger detection and
// the duty-cycle note-off
func (a *Arpeggiator) Poll(now time.Time, v clock.View) {
	div := a.divisions()
	a.stepLen = time.Duration(float64(v.BeatLength) / div)

	if a.waiting {
		if v.Running {
			p := v.Pulse()
			if p != 0 && (a.waitPulse < 0 || p >= a.waitPulse) {
				a.waitPulse = p
				a.gate(now)
				return
			}
		}
		debug.Log("arp", "downbeat reached running=%v pulse=%d", v.Running, v.Pulse())
		a.Downbeat()
	}

	if a.armed || v.Running != a.clocked {
		a.rebase(v, div)
	}

	trigger := a.armed
	a.armed = false
	if v.Running {
		step := v.Ticks / a.pulsesPerStep()
		if step != a.lastStep {
			trigger = true
			a.lastStep = step
		}
	} else {
		raw := v.BeatProgress
		if raw < a.lastRaw {
			a.beatCount = (a.beatCount + 1) % clock.BeatsPerCycle
		}
		a.lastRaw = raw
		scaled := (float64(a.beatCount) + raw) * div
		if math.Floor(scaled) != math.Floor(a.lastScaled) || scaled < a.lastScaled {
			trigger = true
		}
		a.lastScaled = scaled
	}

	if trigger {
		a.step(now)
	}
	a.gate(now)
}

// rebase aligns the trackers of the active strategy with the current clock
// position so a strategy switch does not fire by itself
func (a *Arpeggiator) rebase(v clock.View, div float64) {
	a.clocked = v.Running
	a.lastStep = v.Ticks / a.pulsesPerStep()
	a.beatCount = 0
	a.lastRaw = v.BeatProgress
	a.lastScaled = v.BeatProgress * div
}

// step plays the next note of the rotation
func (a *Arpeggiator) step(now time.Time) {
	n := a.held.snapshot(&a.scratch, a.mode != ArpSequence)
	if n == 0 {
		a.idle()
		return
	}
	next := a.nextIndex(n)
	a.release()
	pitch := a.scratch[next]
	a.index = next
	if !a.pool.Acquire(int(pitch)) {
		return
	}
	a.sounding = int(pitch)
	a.noteOnAt = now
}

func (a *Arpeggiator) nextIndex(n int) int {
	if a.index < 0 {
		if a.mode == ArpDown || a.mode == ArpDownUp {
			a.ascending = false
			return n - 1
		}
		a.ascending = true
		return 0
	}
	if n == 1 {
		return 0
	}
	cur := min(a.index, n-1)
	switch a.mode {
	case ArpUp, ArpSequence:
		return (cur + 1) % n
	case ArpDown:
		return (cur - 1 + n) % n
	}
	// UpDown and DownUp bounce without repeating an endpoint
	if a.ascending {
		if cur+1 >= n {
			a.ascending = false
			return n - 2
		}
		return cur + 1
	}
	if cur-1 < 0 {
		a.ascending = true
		return 1
	}
	return cur - 1
}

// gate releases the sounding note once it has been on for its share of the step
func (a *Arpeggiator) gate(now time.Time) {
	if a.sounding < 0 {
		return
	}
	gate := a.stepLen * time.Duration(a.dutyCycle()) / 100
	if now.Sub(a.noteOnAt) >= gate {
		a.release()
	}
}

func (a *Arpeggiator) release() {
	if a.sounding >= 0 {
		a.pool.Release(a.sounding)
		a.sounding = -1
	}
}

func (a *Arpeggiator) idle() {
	a.release()
	a.index = -1
	a.ascending = a.mode != ArpDown && a.mode != ArpDownUp
}
