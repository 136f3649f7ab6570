package sequencer

// Scale selects how chord mode picks a chord for a key. The first seven are
// the diatonic modes of the major scale, relative to the root key.
type Scale int

const (
	ScaleIonian Scale = iota
	ScaleDorian
	ScalePhrygian
	ScaleLydian
	ScaleMixolydian
	ScaleAeolian
	ScaleLocrian
	ScalePower5
	ScalePower8

	NumScales = 9
)

var scaleNames = [NumScales]string{
	"Ionian", "Dorian", "Phrygian", "Lydian", "Mixolydian",
	"Aeolian", "Locrian", "Power 5", "Power 8",
}

func (s Scale) String() string {
	if s < 0 || s >= NumScales {
		return "?"
	}
	return scaleNames[s]
}

// ChordShape indexes chordShapes
type ChordShape int

const (
	ChordMajor ChordShape = iota
	ChordMinor
	ChordPower5
	ChordPower8
	ChordSus4
	ChordAugmented
	ChordDiminished
)

// MaxChordTones is the largest chord any key can expand to
const MaxChordTones = 3

// semitone offsets, -1 = unused slot
var chordShapes = [...][MaxChordTones]int{
	ChordMajor:      {0, 4, 7},
	ChordMinor:      {0, 3, 7},
	ChordPower5:     {0, 7, -1},
	ChordPower8:     {0, 7, 12},
	ChordSus4:       {0, 5, 7},
	ChordAugmented:  {0, 4, 8},
	ChordDiminished: {0, 3, 6},
}

// triad quality of each degree of the Ionian mode
var diatonicPattern = [7]ChordShape{
	ChordMajor, ChordMinor, ChordMinor, ChordMajor, ChordMajor, ChordMinor, ChordDiminished,
}

var ionianSteps = [7]int{2, 2, 1, 2, 2, 2, 1}

// modeDegreeOffset returns the semitone distance of a scale degree from the
// tonic of the given mode
func modeDegreeOffset(degree int, mode Scale) int {
	semitones := 0
	for i := 0; i < degree; i++ {
		semitones += ionianSteps[(i+int(mode))%7]
	}
	return semitones
}

// ShapeFor picks the chord for a key note (0..12) in a scale and root.
// Keys outside a diatonic scale get a major chord.
func ShapeFor(keyNote int, scale Scale, root int) ChordShape {
	switch scale {
	case ScalePower5:
		return ChordPower5
	case ScalePower8:
		return ChordPower8
	}
	if scale < ScaleIonian || scale > ScaleLocrian {
		return ChordMajor
	}
	offset := ((keyNote-root)%12 + 12) % 12
	for degree := 0; degree < 7; degree++ {
		if modeDegreeOffset(degree, scale) == offset {
			return diatonicPattern[(degree+int(scale))%7]
		}
	}
	return ChordMajor
}

// InScale reports whether the key note belongs to the scale. Power scales
// accept every key.
func InScale(keyNote int, scale Scale, root int) bool {
	if scale < ScaleIonian || scale > ScaleLocrian {
		return true
	}
	offset := ((keyNote-root)%12 + 12) % 12
	for degree := 0; degree < 7; degree++ {
		if modeDegreeOffset(degree, scale) == offset {
			return true
		}
	}
	return false
}

// ChordOffsets returns the semitone offsets of the chord for a key
func ChordOffsets(keyNote int, scale Scale, root int) []int {
	shape := chordShapes[ShapeFor(keyNote, scale, root)]
	out := make([]int, 0, MaxChordTones)
	for _, off := range shape {
		if off >= 0 {
			out = append(out, off)
		}
	}
	return out
}

// PitchSet is the fixed-size set of pitches one key press produces
type PitchSet struct {
	Pitches [MaxChordTones]uint8
	N       int
}

// Slice returns the used part of the set
func (s *PitchSet) Slice() []uint8 {
	return s.Pitches[:s.N]
}

func (s *PitchSet) add(pitch int) {
	if pitch < 0 || pitch >= NumPitches || s.N >= MaxChordTones {
		return
	}
	s.Pitches[s.N] = uint8(pitch)
	s.N++
}

// SinglePitch is the pitch of a key without chord mode
func SinglePitch(keyNote, octave int) PitchSet {
	var s PitchSet
	s.add(keyNote + octave*12)
	return s
}

// Expand builds the chord pitch set for a key. With folding every tone is
// moved by octaves into [12*octave, 12*(octave+1)]. Tones outside 0..127 are
// dropped.
func Expand(keyNote, octave int, scale Scale, root int, folded bool) PitchSet {
	var s PitchSet
	base := keyNote + octave*12
	lo, hi := octave*12, (octave+1)*12
	for _, off := range chordShapes[ShapeFor(keyNote, scale, root)] {
		if off < 0 {
			continue
		}
		pitch := base + off
		if folded {
			for pitch > hi {
				pitch -= 12
			}
			for pitch < lo {
				pitch += 12
			}
		}
		s.add(pitch)
	}
	return s
}
