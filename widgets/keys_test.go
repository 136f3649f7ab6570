package widgets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hallkeys/theme"
)

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "C-1", NoteName(0))
	assert.Equal(t, "G9", NoteName(127))
	assert.Equal(t, "A#2", NoteName(46))
}

func TestPitchClass(t *testing.T) {
	assert.Equal(t, "C", PitchClass(0))
	assert.Equal(t, "B", PitchClass(-1))
	assert.Equal(t, "F#", PitchClass(18))
}

func TestRenderPitches(t *testing.T) {
	assert.Equal(t, "-", RenderPitches(nil))
	assert.Equal(t, "C3 E3 G3", RenderPitches([]uint8{48, 52, 55}))
}

func TestRenderKeyRow(t *testing.T) {
	th := theme.New(nil)
	out := RenderKeyRow(th, []bool{true, false, false}, "asd")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, 1, strings.Count(lines[0], "■"))
	assert.Equal(t, 2, strings.Count(lines[0], "□"))
	assert.Contains(t, lines[1], "a s d")
}

func TestRenderBeat(t *testing.T) {
	th := theme.New(nil)
	assert.Equal(t, "··▶·", RenderBeat(th, 2, true))
	assert.Equal(t, "····", RenderBeat(th, 2, false))
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "Modes", Keys: []KeyBinding{{"1", "play"}}}})
	assert.Equal(t, "Modes\n  1          play", out)
}
