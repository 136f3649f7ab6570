package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hallkeys/midi"
)

func newTestPool() (*NotePool, *midi.Recorder) {
	rec := &midi.Recorder{}
	return NewNotePool(rec.Send, 0, midi.DefaultVelocity), rec
}

func TestNotePoolOnlyTransitionsReachTheWire(t *testing.T) {
	assert := assert.New(t)
	pool, rec := newTestPool()

	pool.Acquire(60)
	pool.Acquire(60)
	assert.Equal(1, rec.Count(midi.NoteOn, 60))
	assert.Equal(2, pool.Count(60))

	pool.Release(60)
	assert.Equal(0, rec.Count(midi.NoteOff, 60))
	assert.True(pool.IsOn(60))

	pool.Release(60)
	assert.Equal(1, rec.Count(midi.NoteOff, 60))
	assert.False(pool.IsOn(60))

	// unbalanced release is a no-op
	pool.Release(60)
	assert.Equal(1, rec.Count(midi.NoteOff, 60))
}

func TestNotePoolWireFormat(t *testing.T) {
	pool, rec := newTestPool()
	pool.Acquire(64)
	pool.Release(64)

	msgs := rec.Messages()
	assert.Equal(t, []byte{0x90, 64, 0x45}, []byte(msgs[0]))
	assert.Equal(t, []byte{0x80, 64, 0}, []byte(msgs[1]))
}

func TestNotePoolRejectsOutOfRange(t *testing.T) {
	pool, rec := newTestPool()
	for _, p := range []int{-1, 128, 1000} {
		pool.Acquire(p)
		pool.Release(p)
		assert.False(t, pool.IsOn(p))
	}
	assert.Empty(t, rec.Messages())
}

func TestNotePoolOffsNeverExceedOns(t *testing.T) {
	pool, rec := newTestPool()
	ops := []struct {
		acquire bool
		pitch   int
	}{
		{true, 60}, {false, 60}, {false, 60}, {true, 62}, {true, 62}, {true, 60},
		{false, 62}, {true, 64}, {false, 60}, {false, 62}, {false, 62}, {false, 64},
		{true, 60}, {true, 60}, {false, 60},
	}
	for _, op := range ops {
		if op.acquire {
			pool.Acquire(op.pitch)
		} else {
			pool.Release(op.pitch)
		}
		for _, p := range []int{60, 62, 64} {
			ons := rec.Count(midi.NoteOn, uint8(p))
			offs := rec.Count(midi.NoteOff, uint8(p))
			assert.LessOrEqual(t, offs, ons)
			// an outside observer sees the pitch on iff its count is positive
			assert.Equal(t, pool.Count(p) > 0, ons > offs)
		}
	}
}

func TestNotePoolReleaseAllAndPanic(t *testing.T) {
	assert := assert.New(t)
	pool, rec := newTestPool()

	var changes []uint8
	pool.OnChange(func(p uint8, on bool) {
		if !on {
			changes = append(changes, p)
		}
	})

	pool.Acquire(67)
	pool.Acquire(60)
	pool.Acquire(60)
	assert.Equal([]uint8{60, 67}, pool.Active())

	pool.Panic()
	assert.Equal(1, rec.Count(midi.CC, midi.AllNotesOff))
	assert.Equal(1, rec.Count(midi.NoteOff, 60))
	assert.Equal(1, rec.Count(midi.NoteOff, 67))
	assert.Empty(pool.Active())
	assert.Equal([]uint8{60, 67}, changes)
}

func TestNotePoolSaturatedCountRefusesAcquire(t *testing.T) {
	assert := assert.New(t)
	pool, rec := newTestPool()

	for i := 0; i < 0xFF; i++ {
		assert.True(pool.Acquire(60))
	}
	assert.False(pool.Acquire(60))
	assert.Equal(0xFF, pool.Count(60))

	for i := 0; i < 0xFE; i++ {
		pool.Release(60)
	}
	assert.Equal(0, rec.Count(midi.NoteOff, 60), "every accepted holder still owns the pitch")
	pool.Release(60)
	assert.Equal(1, rec.Count(midi.NoteOff, 60))
}
