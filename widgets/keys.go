package widgets

import (
	"fmt"
	"strings"

	"hallkeys/theme"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI pitch as name + octave, C4 = 60
func NoteName(pitch uint8) string {
	return fmt.Sprintf("%s%d", noteNames[pitch%12], int(pitch)/12-1)
}

// PitchClass names a root key, 0 = C
func PitchClass(k int) string {
	return noteNames[((k%12)+12)%12]
}

// RenderKeyRow renders the indicator row with the terminal key under each cell
func RenderKeyRow(th *theme.Theme, lights []bool, keymap string) string {
	keys := []rune(keymap)
	var top, bottom strings.Builder
	for i, on := range lights {
		if i > 0 {
			top.WriteString(" ")
			bottom.WriteString(" ")
		}
		top.WriteString(th.Key(on))
		if i < len(keys) {
			bottom.WriteRune(keys[i])
		} else {
			bottom.WriteString(" ")
		}
	}
	return top.String() + "\n" + th.Label(bottom.String(), false)
}

// RenderPitches renders a pitch list, "-" when empty
func RenderPitches(pitches []uint8) string {
	if len(pitches) == 0 {
		return "-"
	}
	names := make([]string, len(pitches))
	for i, p := range pitches {
		names[i] = NoteName(p)
	}
	return strings.Join(names, " ")
}

// RenderBeat renders the four beats of the cycle with the current one marked
func RenderBeat(th *theme.Theme, beat int, running bool) string {
	var out strings.Builder
	for i := 0; i < 4; i++ {
		if running && i == beat {
			out.WriteRune(th.Symbols.Beat)
		} else {
			out.WriteRune(th.Symbols.NoBeat)
		}
	}
	return out.String()
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-10s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}
