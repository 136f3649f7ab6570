package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallkeys/clock"
	"hallkeys/midi"
)

func newTestManager(opts Options) (*Manager, *midi.Recorder, *time.Time) {
	rec := &midi.Recorder{}
	m := NewManager(rec.Send, DefaultModes(), opts)
	now := t0
	m.now = func() time.Time { return now }
	m.arb.TapTempo().ResetTapChain(now)
	return m, rec, &now
}

func TestManagerKeyEventsThroughQueue(t *testing.T) {
	assert := assert.New(t)
	m, rec, now := newTestManager(DefaultOptions())

	m.KeyInput() <- midi.KeyEvent{Key: 0, Pressed: true, At: *now}
	m.Poll(*now)
	assert.Equal(1, rec.Count(midi.NoteOn, 36))
	assert.True(m.Snapshot().Lights[0])

	m.KeyInput() <- midi.KeyEvent{Key: 0, Pressed: false, At: *now}
	m.Poll(*now)
	assert.Equal(1, rec.Count(midi.NoteOff, 36))
	assert.False(m.Snapshot().Lights[0])
}

func TestManagerArpWithInternalClock(t *testing.T) {
	assert := assert.New(t)
	m, rec, now := newTestManager(DefaultOptions())

	m.SetArpMode(ArpUp)
	m.SetArpRate(RateQuarter)
	m.ToggleArp()
	assert.Equal(1, rec.Count(midi.Start, 0), "arp start runs the clock")
	assert.Equal(clock.SourceInternal, m.Snapshot().Source)

	m.Press(0)
	m.Press(4)
	assert.Equal([]uint8{36, 40}, m.Snapshot().Held)

	m.Poll(*now)
	assert.Equal(1, rec.Count(midi.NoteOn, 36))

	gen := m.arb.Generator()
	*now = now.Add(clock.PPQN * gen.Interval())
	assert.Equal(clock.PPQN, gen.Poll(*now))
	m.Poll(*now)
	assert.Equal(1, rec.Count(midi.NoteOn, 40))
	assert.Equal(clock.PPQN, rec.Count(midi.Clock, 0))

	m.ToggleArp()
	assert.Equal(1, rec.Count(midi.Stop, 0))
	assert.Empty(m.Snapshot().Sounding)
	assert.Empty(m.Snapshot().Held)
}

func TestManagerExternalClockDrivesArp(t *testing.T) {
	assert := assert.New(t)
	opts := DefaultOptions()
	opts.ClockOut = false
	m, rec, now := newTestManager(opts)

	m.SetArpRate(RateQuarter)
	m.ToggleArp()
	m.Press(7)

	iv := clock.IntervalFor(100)
	m.RealtimeInput() <- midi.RealtimeEvent{Byte: midi.Start, At: *now}
	for i := 0; i <= clock.PPQN; i++ {
		m.RealtimeInput() <- midi.RealtimeEvent{Byte: midi.Clock, At: now.Add(time.Duration(i) * iv)}
	}
	*now = now.Add(clock.PPQN * iv)
	m.Poll(*now)

	snap := m.Snapshot()
	assert.Equal(clock.SourceExternal, snap.Source)
	assert.Equal(100.0, snap.BPM)
	assert.Equal(1, rec.Count(midi.NoteOn, 43))
	assert.Equal(0, rec.Count(midi.Clock, 0), "no clock of our own")

	// the stream stops: authority returns after the timeout
	*now = now.Add(clock.ExternalTimeout)
	m.Poll(*now)
	assert.Equal(clock.SourceTap, m.Snapshot().Source)
}

func TestManagerClockThru(t *testing.T) {
	opts := DefaultOptions()
	opts.ClockThru = true
	m, rec, now := newTestManager(opts)

	m.RealtimeInput() <- midi.RealtimeEvent{Byte: midi.Clock, At: *now}
	m.RealtimeInput() <- midi.RealtimeEvent{Byte: midi.Stop, At: *now}
	m.Poll(*now)
	assert.Equal(t, 1, rec.Count(midi.Clock, 0))
	assert.Equal(t, 1, rec.Count(midi.Stop, 0))
}

func TestManagerPanic(t *testing.T) {
	assert := assert.New(t)
	m, rec, _ := newTestManager(DefaultOptions())
	m.TogglePlay()
	m.Press(0)
	m.Press(4)
	require.NotEmpty(t, m.Snapshot().Sounding)

	m.Panic()
	assert.Equal(1, rec.Count(midi.CC, midi.AllNotesOff))
	assert.Empty(m.Snapshot().Sounding)
	assert.False(m.Snapshot().Lights[4])
}

func TestManagerTapResyncs(t *testing.T) {
	assert := assert.New(t)
	m, rec, now := newTestManager(DefaultOptions())
	m.StartClock()
	require.Equal(t, 1, rec.Count(midi.Start, 0))

	m.Tap(*now)
	*now = now.Add(600 * time.Millisecond)
	m.Tap(*now)

	assert.InDelta(100.0, m.Snapshot().BPM, 0.001)
	assert.Equal(3, rec.Count(midi.Start, 0), "every tap marks a downbeat")
	assert.Equal(0, m.Snapshot().Pulse)
}

func TestManagerShutdownSilencesEverything(t *testing.T) {
	m, rec, _ := newTestManager(DefaultOptions())
	m.TogglePlay()
	m.Press(2)
	m.StartClock()

	m.Shutdown()
	assert.Equal(t, rec.Count(midi.NoteOn, 38), rec.Count(midi.NoteOff, 38))
	assert.Equal(t, 1, rec.Count(midi.Stop, 0))
	assert.False(t, m.Snapshot().Running)
}

func TestManagerSettingsRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(DefaultOptions())
	m.SetOctave(6)
	m.SetScale(ScaleDorian)

	path := t.TempDir() + "/settings.bin"
	require.NoError(t, m.SaveSettings(path))

	got := LoadSettingsFile(path, DefaultModes())
	assert.Equal(t, 6, got.Octave)
	assert.Equal(t, ScaleDorian, got.Scale)
}

func TestManagerSaveKeepsPlayTypeUnderAutoHold(t *testing.T) {
	assert := assert.New(t)
	m, _, _ := newTestManager(DefaultOptions())
	m.SetArpMode(ArpSequence)
	m.ToggleArp()
	require.True(t, m.Snapshot().AutoHold)
	assert.Equal(PlayAdditive, m.Modes().PlayType)

	path := t.TempDir() + "/settings.bin"
	require.NoError(t, m.SaveSettings(path))
	assert.Equal(PlayHold, LoadSettingsFile(path, DefaultModes()).PlayType)
}
