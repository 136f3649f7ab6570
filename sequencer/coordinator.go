package sequencer

import (
	"hallkeys/debug"
	"hallkeys/midi"
)

// sink is where a key's pitches go: straight to the pool, or into the
// arpeggiator's rotation. take reports whether the pitch was accepted.
type sink interface {
	take(pitch int) bool
	give(pitch int)
	name() string
}

type poolSink struct{ pool *NotePool }

func (s poolSink) take(pitch int) bool { return s.pool.Acquire(pitch) }
func (s poolSink) give(pitch int) { s.pool.Release(pitch) }
func (s poolSink) name() string { return "pool" }

type arpSink struct{ arp *Arpeggiator }

func (s arpSink) take(pitch int) bool { return s.arp.Add(pitch) }
func (s arpSink) give(pitch int) { s.arp.Remove(pitch) }
func (s arpSink) name() string { return "arp" }

// policyKind tags the play policy variants
type policyKind int

const (
	policyMomentary policyKind = iota
	policyLatch
	policyAdditive
)

func (k policyKind) String() string {
	switch k {
	case policyLatch:
		return "latch"
	case policyAdditive:
		return "additive"
	}
	return "momentary"
}

// playPolicy is selected once per mode change and handles every key edge
// until the next one
type playPolicy struct {
	kind policyKind
	sink sink
}

func (p playPolicy) String() string {
	return p.kind.String() + "/" + p.sink.name()
}

// keyRecord remembers exactly what a press did, so the undo never depends on
// parameters that may have changed since. Only pitches the sink accepted are
// recorded.
type keyRecord struct {
	pitches PitchSet
	sink    sink
	active  bool
}

// Coordinator routes key edges to the pool or the arpeggiator according to
// the current modes
type Coordinator struct {
	modes   Modes
	pool    *NotePool
	arp     *Arpeggiator
	policy  playPolicy
	records [midi.NumKeys]keyRecord
	latched int // key owned by the latch policy, -1 none

	autoHold  bool
	savedPlay bool
	savedType PlayType
	indicator midi.Indicator
	onArp     func(active bool)
}

// NewCoordinator creates a coordinator over pool and arp starting in modes
func NewCoordinator(pool *NotePool, arp *Arpeggiator, modes Modes) *Coordinator {
	c := &Coordinator{
		modes:   modes,
		pool:    pool,
		arp:     arp,
		latched: -1,
	}
	arp.SetMode(modes.ArpMode)
	arp.SetRate(modes.ArpRate)
	arp.SetDutyCycle(modes.DutyCycle)
	c.policy = c.selectPolicy()
	if modes.ArpActive {
		arp.WaitForDownbeat()
	}
	return c
}

// SetIndicator sets the key light collaborator (nil disables)
func (c *Coordinator) SetIndicator(ind midi.Indicator) {
	c.indicator = ind
}

// OnArpChange registers a hook fired after the arpeggiator is switched on or off
func (c *Coordinator) OnArpChange(fn func(active bool)) {
	c.onArp = fn
}

// Modes returns a copy of the current modes
func (c *Coordinator) Modes() Modes { return c.modes }

// Policy describes the active play policy, for display
func (c *Coordinator) Policy() string { return c.policy.String() }

// KeyActive reports whether a key currently owns notes
func (c *Coordinator) KeyActive(key int) bool {
	return key >= 0 && key < midi.NumKeys && c.records[key].active
}

// AutoHold reports whether hold was switched on by Sequence mode
func (c *Coordinator) AutoHold() bool { return c.autoHold }

// StoredModes returns the modes as the user chose them: while Sequence
// auto-hold is engaged the play mode it replaced is reported instead.
func (c *Coordinator) StoredModes() Modes {
	m := c.modes
	if c.autoHold {
		m.PlayActive = c.savedPlay
		m.PlayType = c.savedType
	}
	return m
}

func (c *Coordinator) selectPolicy() playPolicy {
	var s sink = poolSink{c.pool}
	if c.modes.ArpActive {
		s = arpSink{c.arp}
	}
	switch {
	case c.modes.Additive():
		return playPolicy{policyAdditive, s}
	case c.modes.Hold():
		return playPolicy{policyLatch, s}
	}
	return playPolicy{policyMomentary, s}
}

// reselect switches to the policy of the current modes. Anything owned under
// a different policy is undone first.
func (c *Coordinator) reselect() {
	next := c.selectPolicy()
	if next.kind == c.policy.kind && next.sink.name() == c.policy.sink.name() {
		return
	}
	c.UndoAll()
	debug.Log("mode", "policy %s -> %s", c.policy, next)
	c.policy = next
}

// pitchesFor expands a key with the current octave and chord settings
func (c *Coordinator) pitchesFor(key int) PitchSet {
	if c.modes.Chords() {
		return Expand(key, c.modes.Octave, c.modes.Scale, c.modes.RootKey, c.modes.Folded())
	}
	return SinglePitch(key, c.modes.Octave)
}

// Press handles a key going down
func (c *Coordinator) Press(key int) {
	if key < 0 || key >= midi.NumKeys {
		return
	}
	rec := &c.records[key]
	switch c.policy.kind {
	case policyMomentary:
		if !rec.active {
			c.engage(key)
		}
	case policyLatch:
		if rec.active {
			c.disengage(key)
			c.latched = -1
			return
		}
		if c.latched >= 0 {
			c.disengage(c.latched)
		}
		c.engage(key)
		c.latched = key
	case policyAdditive:
		if rec.active {
			c.disengage(key)
		} else {
			c.engage(key)
		}
	}
}

// Release handles a key coming up. Hold policies ignore it.
func (c *Coordinator) Release(key int) {
	if key < 0 || key >= midi.NumKeys {
		return
	}
	if c.policy.kind == policyMomentary && c.records[key].active {
		c.disengage(key)
	}
}

// HandleKey dispatches a key edge
func (c *Coordinator) HandleKey(ev midi.KeyEvent) {
	if ev.Pressed {
		c.Press(ev.Key)
	} else {
		c.Release(ev.Key)
	}
}

func (c *Coordinator) engage(key int) {
	rec := &c.records[key]
	want := c.pitchesFor(key)
	rec.pitches = PitchSet{}
	rec.sink = c.policy.sink
	rec.active = true
	for _, p := range want.Slice() {
		if rec.sink.take(int(p)) {
			rec.pitches.add(int(p))
		}
	}
	if rec.pitches.N < want.N {
		debug.Log("keys", "key %d: %d of %d pitches dropped, %s full", key, want.N-rec.pitches.N, want.N, rec.sink.name())
	}
	debug.Log("keys", "key %d on %v via %s", key, rec.pitches.Slice(), c.policy)
	c.light(key, true)
}

func (c *Coordinator) disengage(key int) {
	rec := &c.records[key]
	if !rec.active {
		return
	}
	for _, p := range rec.pitches.Slice() {
		rec.sink.give(int(p))
	}
	rec.active = false
	if c.latched == key {
		c.latched = -1
	}
	debug.Log("keys", "key %d off %v", key, rec.pitches.Slice())
	c.light(key, false)
}

// UndoAll releases every key's recorded pitches through the sink that took them
func (c *Coordinator) UndoAll() {
	for key := range c.records {
		c.disengage(key)
	}
	c.latched = -1
}

func (c *Coordinator) light(key int, on bool) {
	if c.indicator != nil {
		c.indicator.SetIndicator(key, on)
	}
}

// TogglePlay switches hold on or off. A manual change cancels Sequence auto-hold.
func (c *Coordinator) TogglePlay() {
	c.modes.PlayActive = !c.modes.PlayActive
	c.autoHold = false
	debug.Log("mode", "play %v (%s)", c.modes.PlayActive, c.modes.PlayType)
	c.reselect()
}

// SetPlayType chooses between single and additive hold
func (c *Coordinator) SetPlayType(t PlayType) {
	if t != PlayHold && t != PlayAdditive {
		return
	}
	c.modes.PlayType = t
	c.autoHold = false
	c.reselect()
}

// ToggleChord switches chord mode. Every toggle first undoes all keys so no
// note started with the old expansion survives.
func (c *Coordinator) ToggleChord() {
	c.UndoAll()
	c.modes.ChordActive = !c.modes.ChordActive
	if c.modes.ChordActive && c.modes.ChordType == ChordOff {
		c.modes.ChordType = ChordExtended
	}
	debug.Log("mode", "chord %v (%s)", c.modes.ChordActive, c.modes.ChordType)
}

// SetChordType changes the voicing of future presses
func (c *Coordinator) SetChordType(t ChordType) {
	if t < ChordOff || t > ChordFolded {
		return
	}
	c.modes.ChordType = t
}

// ToggleArp switches the arpeggiator. Turning it on arms downbeat gating;
// turning it off undoes every key and silences the arpeggiator.
func (c *Coordinator) ToggleArp() {
	if c.modes.ArpActive {
		c.arpOff()
	} else {
		c.arpOn()
	}
	if c.onArp != nil {
		c.onArp(c.modes.ArpActive)
	}
}

func (c *Coordinator) arpOn() {
	c.modes.ArpActive = true
	if c.modes.ArpMode == ArpSequence {
		c.engageAutoHold()
	}
	c.reselect()
	c.arp.WaitForDownbeat()
	debug.Log("mode", "arp on (%s %s)", c.modes.ArpMode, c.modes.ArpRate)
}

func (c *Coordinator) arpOff() {
	c.modes.ArpActive = false
	c.restoreAutoHold()
	c.reselect()
	c.arp.Deactivate()
	debug.Log("mode", "arp off")
}

func (c *Coordinator) engageAutoHold() {
	if c.modes.PlayActive || c.modes.ChordActive {
		return
	}
	c.savedPlay = c.modes.PlayActive
	c.savedType = c.modes.PlayType
	c.modes.PlayActive = true
	c.modes.PlayType = PlayAdditive
	c.autoHold = true
	debug.Log("mode", "sequence auto-hold on")
}

func (c *Coordinator) restoreAutoHold() {
	if !c.autoHold {
		return
	}
	c.modes.PlayActive = c.savedPlay
	c.modes.PlayType = c.savedType
	c.autoHold = false
	debug.Log("mode", "sequence auto-hold restored")
}

// SetArpMode changes the note order. While the arpeggiator runs, entering
// Sequence mode may switch on auto-hold and leaving it restores the play mode.
func (c *Coordinator) SetArpMode(m ArpMode) {
	if m < 0 || m >= NumArpModes || m == c.modes.ArpMode {
		return
	}
	old := c.modes.ArpMode
	c.modes.ArpMode = m
	c.arp.SetMode(m)
	if !c.modes.ArpActive {
		return
	}
	switch {
	case m == ArpSequence:
		c.engageAutoHold()
	case old == ArpSequence && c.autoHold:
		c.restoreAutoHold()
	}
	c.reselect()
}

// SetArpRate changes the arpeggiator step length
func (c *Coordinator) SetArpRate(r ArpRate) {
	if r < 0 || r >= NumArpRates {
		return
	}
	c.modes.ArpRate = r
	c.arp.SetRate(r)
}

// SetDutyCycle changes the arpeggiator gate length in percent
func (c *Coordinator) SetDutyCycle(d int) {
	c.arp.SetDutyCycle(d)
	c.modes.DutyCycle = c.arp.DutyCycle()
}

// SetOctave sets the octave of future presses, 0..MaxOctave
func (c *Coordinator) SetOctave(o int) {
	c.modes.Octave = min(max(o, 0), MaxOctave)
}

// SetScale selects the chord scale
func (c *Coordinator) SetScale(s Scale) {
	if s < 0 || s >= NumScales {
		return
	}
	c.modes.Scale = s
}

// SetRootKey sets the scale root, 0 (C) to 11 (B)
func (c *Coordinator) SetRootKey(k int) {
	c.modes.RootKey = ((k % 12) + 12) % 12
}
