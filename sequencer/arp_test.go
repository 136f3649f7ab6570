package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallkeys/clock"
	"hallkeys/midi"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const testBeat = 500 * time.Millisecond

func newTestArp(mode ArpMode, pitches ...int) (*Arpeggiator, *NotePool, *midi.Recorder) {
	pool, rec := newTestPool()
	arp := NewArpeggiator(pool)
	arp.SetMode(mode)
	arp.SetRate(RateQuarter)
	for _, p := range pitches {
		arp.Add(p)
	}
	return arp, pool, rec
}

func clockView(ticks int) clock.View {
	return clock.View{Running: true, Ticks: uint64(ticks), BeatLength: testBeat}
}

// playSteps triggers n steps on quarter-note boundaries of a running clock
func playSteps(t *testing.T, arp *Arpeggiator, n int) []uint8 {
	t.Helper()
	var out []uint8
	arp.Downbeat()
	for i := 0; i < n; i++ {
		arp.Poll(t0.Add(time.Duration(i)*testBeat), clockView(i*clock.PPQN))
		p, ok := arp.Sounding()
		require.True(t, ok, "step %d", i)
		out = append(out, p)
	}
	return out
}

func TestArpUpSortsPressOrder(t *testing.T) {
	arp, _, _ := newTestArp(ArpUp, 67, 60, 64)
	assert.Equal(t, []uint8{60, 64, 67, 60, 64, 67, 60}, playSteps(t, arp, 7))
}

func TestArpUpDownBouncesWithoutRepeatingEndpoints(t *testing.T) {
	arp, _, _ := newTestArp(ArpUpDown, 60, 64, 67)
	assert.Equal(t, []uint8{60, 64, 67, 64, 60, 64, 67, 64}, playSteps(t, arp, 8))
}

func TestArpDownAndDownUpStartAtTop(t *testing.T) {
	arp, _, _ := newTestArp(ArpDown, 60, 64, 67)
	assert.Equal(t, []uint8{67, 64, 60, 67}, playSteps(t, arp, 4))

	arp, _, _ = newTestArp(ArpDownUp, 60, 64, 67)
	assert.Equal(t, []uint8{67, 64, 60, 64, 67, 64}, playSteps(t, arp, 6))
}

func TestArpSequenceKeepsInsertionOrder(t *testing.T) {
	arp, _, _ := newTestArp(ArpSequence, 67, 60, 64)
	arp.Downbeat()
	var out []uint8
	// whole-note steps: one trigger every 96 pulses
	for i := 0; i < 4; i++ {
		arp.Poll(t0.Add(time.Duration(i)*4*testBeat), clockView(i*clock.CycleLength))
		p, _ := arp.Sounding()
		out = append(out, p)
	}
	assert.Equal(t, []uint8{67, 60, 64, 67}, out)
}

func TestArpUpDownEndpointProperty(t *testing.T) {
	sets := [][]int{
		{60, 62},
		{48, 60, 72},
		{60, 61, 62, 63, 64},
		{40, 40, 52, 71, 33, 90, 12},
	}
	for _, mode := range []ArpMode{ArpUpDown, ArpDownUp} {
		for _, set := range sets {
			arp, _, _ := newTestArp(mode, set...)
			n := len(set)
			arp.Downbeat()
			prev := -2
			for i := 0; i < 40; i++ {
				arp.Poll(t0.Add(time.Duration(i)*testBeat), clockView(i*clock.PPQN))
				cur := arp.Index()
				if cur == 0 || cur == n-1 {
					assert.NotEqual(t, prev, cur, "mode %s set %v step %d", mode, set, i)
				}
				prev = cur
			}
		}
	}
}

func TestArpSingleNotePulses(t *testing.T) {
	for mode := ArpMode(0); mode < NumArpModes; mode++ {
		arp, _, rec := newTestArp(mode, 62)
		arp.Downbeat()
		for i := 0; i < 5; i++ {
			arp.Poll(t0.Add(time.Duration(i)*4*testBeat), clockView(i*clock.CycleLength))
			assert.Equal(t, 0, arp.Index())
		}
		assert.Equal(t, 5, rec.Count(midi.NoteOn, 62), "mode %s", mode)
	}
}

func TestArpDutyCycleNoteOff(t *testing.T) {
	assert := assert.New(t)
	arp, pool, _ := newTestArp(ArpUp, 60, 64)
	arp.SetDutyCycle(50)
	arp.Downbeat()

	arp.Poll(t0, clockView(0))
	assert.True(pool.IsOn(60))

	arp.Poll(t0.Add(249*time.Millisecond), clockView(11))
	assert.True(pool.IsOn(60))

	arp.Poll(t0.Add(250*time.Millisecond), clockView(12))
	assert.False(pool.IsOn(60))
	_, sounding := arp.Sounding()
	assert.False(sounding)

	arp.Poll(t0.Add(testBeat), clockView(24))
	assert.True(pool.IsOn(64))
}

func TestArpSequenceForcesLegatoAndWholeSteps(t *testing.T) {
	assert := assert.New(t)
	arp, pool, _ := newTestArp(ArpSequence, 60, 64)
	arp.SetDutyCycle(10)
	arp.Downbeat()

	arp.Poll(t0, clockView(0))
	assert.Equal(4*testBeat, arp.StepLength())

	// still within 99% of the 2s step
	arp.Poll(t0.Add(1900*time.Millisecond), clockView(91))
	assert.True(pool.IsOn(60))
	arp.Poll(t0.Add(1980*time.Millisecond), clockView(95))
	assert.False(pool.IsOn(60))
}

func TestArpTapStrategyTriggersOnScaledPhase(t *testing.T) {
	assert := assert.New(t)
	arp, _, rec := newTestArp(ArpUp, 60, 64, 67)
	arp.SetRate(RateEighth)
	tap := func(ms int, progress float64) {
		arp.Poll(t0.Add(time.Duration(ms)*time.Millisecond),
			clock.View{BeatLength: testBeat, BeatProgress: progress})
	}

	arp.Downbeat()
	tap(0, 0.0)
	assert.Equal(1, rec.Count(midi.NoteOn, 60))

	tap(100, 0.2)
	tap(200, 0.4)
	assert.Equal(0, rec.Count(midi.NoteOn, 64))

	tap(250, 0.5)
	assert.Equal(1, rec.Count(midi.NoteOn, 64))

	// beat wrap: progress falls back, counter moves on
	tap(510, 0.02)
	assert.Equal(1, rec.Count(midi.NoteOn, 67))
}

func TestArpTapStrategyWholeNoteWrap(t *testing.T) {
	arp, _, rec := newTestArp(ArpUp, 60, 64)
	arp.SetRate(RateWhole)
	arp.Downbeat()

	ms := 0
	for beat := 0; beat < 4; beat++ {
		for _, p := range []float64{0.01, 0.5, 0.99} {
			arp.Poll(t0.Add(time.Duration(ms)*time.Millisecond),
				clock.View{BeatLength: testBeat, BeatProgress: p})
			ms += 100
		}
	}
	assert.Equal(t, 1, rec.Count(midi.NoteOn, 60))
	assert.Equal(t, 0, rec.Count(midi.NoteOn, 64))

	arp.Poll(t0.Add(time.Duration(ms)*time.Millisecond),
		clock.View{BeatLength: testBeat, BeatProgress: 0.01})
	assert.Equal(t, 1, rec.Count(midi.NoteOn, 64))
}

func TestArpWaitsForDownbeatWhileClockRuns(t *testing.T) {
	assert := assert.New(t)
	arp, pool, _ := newTestArp(ArpUp, 60)
	arp.WaitForDownbeat()

	arp.Poll(t0, clockView(50))
	arp.Poll(t0.Add(time.Millisecond), clockView(70))
	assert.True(arp.Waiting())
	assert.False(pool.IsOn(60))

	// the cycle wrapped between polls
	arp.Poll(t0.Add(2*time.Millisecond), clockView(clock.CycleLength+2))
	assert.False(arp.Waiting())
	assert.True(pool.IsOn(60))
}

func TestArpStartsImmediatelyWithoutClock(t *testing.T) {
	arp, pool, _ := newTestArp(ArpUp, 60)
	arp.WaitForDownbeat()
	arp.Poll(t0, clock.View{BeatLength: testBeat, BeatProgress: 0.7})
	assert.False(t, arp.Waiting())
	assert.True(t, pool.IsOn(60))
}

func TestArpRoundTripLeavesNothingBehind(t *testing.T) {
	assert := assert.New(t)
	arp, pool, rec := newTestArp(ArpUp, 60, 64)
	playSteps(t, arp, 3)

	arp.Deactivate()
	assert.Empty(pool.Active())
	assert.Equal(0, arp.Len())
	assert.Equal(ArpIdle, arp.State())
	for _, p := range []uint8{60, 64} {
		assert.Equal(rec.Count(midi.NoteOn, p), rec.Count(midi.NoteOff, p))
	}

	// nothing was sounding: no extra offs
	before := len(rec.Messages())
	arp.Deactivate()
	assert.Len(rec.Messages(), before)
}

func TestArpRemovingLastNoteGoesIdle(t *testing.T) {
	assert := assert.New(t)
	arp, pool, _ := newTestArp(ArpUp, 60)
	playSteps(t, arp, 1)
	require.True(t, pool.IsOn(60))

	arp.Remove(60)
	assert.False(pool.IsOn(60))
	assert.Equal(ArpIdle, arp.State())

	// an empty multiset at a trigger stays idle
	arp.Poll(t0.Add(testBeat), clockView(clock.PPQN))
	assert.Empty(pool.Active())
}

func TestArpRemoveClampsIndex(t *testing.T) {
	arp, _, _ := newTestArp(ArpUp, 60, 64, 67)
	assert.Equal(t, []uint8{60, 64, 67}, playSteps(t, arp, 3))

	arp.Remove(67)
	assert.Equal(t, 1, arp.Index())
	arp.Poll(t0.Add(3*testBeat), clockView(3*clock.PPQN))
	p, _ := arp.Sounding()
	assert.Equal(t, uint8(60), p)
}

func TestArpRemoveTakesOneInstance(t *testing.T) {
	arp, _, _ := newTestArp(ArpUp, 60, 60, 64)
	arp.Remove(60)
	assert.Equal(t, []uint8{60, 64}, arp.Held())
	arp.Remove(61)
	assert.Equal(t, 2, arp.Len())
}
