package sequencer

// PlayType selects the hold variant
type PlayType int

const (
	PlayHold     PlayType = iota // latch a single key
	PlayAdditive                 // latch any number of keys
)

func (p PlayType) String() string {
	if p == PlayAdditive {
		return "Additive"
	}
	return "Hold"
}

// ChordType selects how chord tones are voiced
type ChordType int

const (
	ChordOff ChordType = iota
	ChordExtended
	ChordFolded
)

func (c ChordType) String() string {
	switch c {
	case ChordExtended:
		return "Extended"
	case ChordFolded:
		return "Folded"
	}
	return "Off"
}

// ArpMode is the note order of the arpeggiator. The numbering is the one
// stored in the settings record.
type ArpMode int

const (
	ArpUpDown ArpMode = iota
	ArpDownUp
	ArpUp
	ArpDown
	ArpSequence

	NumArpModes = 5
)

func (m ArpMode) String() string {
	switch m {
	case ArpUpDown:
		return "Up/Down"
	case ArpDownUp:
		return "Down/Up"
	case ArpUp:
		return "Up"
	case ArpDown:
		return "Down"
	case ArpSequence:
		return "Sequence"
	}
	return "?"
}

// ArpRate is the step length relative to one beat
type ArpRate int

const (
	RateWhole ArpRate = iota
	RateQuarter
	RateEighth
	RateSixteenth
	RateTriplet

	NumArpRates = 5
)

// Divisions returns the number of steps per beat
func (r ArpRate) Divisions() float64 {
	switch r {
	case RateWhole:
		return 0.25
	case RateQuarter:
		return 1
	case RateSixteenth:
		return 4
	case RateTriplet:
		return 3
	}
	return 2
}

func (r ArpRate) String() string {
	switch r {
	case RateWhole:
		return "1/1"
	case RateQuarter:
		return "1/4"
	case RateEighth:
		return "1/8"
	case RateSixteenth:
		return "1/16"
	case RateTriplet:
		return "1/8T"
	}
	return "?"
}

const (
	DefaultOctave    = 3
	MaxOctave        = 8
	DefaultDutyCycle = 50
	sequenceDuty     = 99
)

// Modes is the complete set of playing-mode flags and parameters
type Modes struct {
	PlayActive  bool
	PlayType    PlayType
	ChordActive bool
	ChordType   ChordType
	ArpActive   bool
	ArpMode     ArpMode
	ArpRate     ArpRate
	DutyCycle   int
	Octave      int
	Scale       Scale
	RootKey     int
}

// DefaultModes is the power-on state
func DefaultModes() Modes {
	return Modes{
		PlayType:  PlayHold,
		ChordType: ChordExtended,
		ArpMode:   ArpUpDown,
		ArpRate:   RateEighth,
		DutyCycle: DefaultDutyCycle,
		Octave:    DefaultOctave,
		Scale:     ScaleIonian,
	}
}

// Hold reports whether key presses latch
func (m Modes) Hold() bool { return m.PlayActive }

// Additive reports whether latched keys accumulate
func (m Modes) Additive() bool { return m.PlayActive && m.PlayType == PlayAdditive }

// Folded reports whether chord tones are folded into one octave
func (m Modes) Folded() bool { return m.ChordType == ChordFolded }

// Chords reports whether key presses expand to chords
func (m Modes) Chords() bool { return m.ChordActive && m.ChordType != ChordOff }
