package clock

import "time"

const (
	MinBPM     = 30
	MaxBPM     = 300
	DefaultBPM = 120

	tapChainTimeout = 2 * time.Second
	maxTapIntervals = 10
)

// TapTempo derives a beat length from user taps and tracks the beat anchor
// used for fractional beat progress when no pulse stream is running.
type TapTempo struct {
	beatLength time.Duration
	anchor     time.Time

	lastTap   time.Time
	chain     bool
	intervals [maxTapIntervals]time.Duration
	count     int
	next      int
}

// NewTapTempo starts at bpm with the beat anchored at now
func NewTapTempo(bpm float64, now time.Time) *TapTempo {
	t := &TapTempo{anchor: now}
	t.SetBPM(bpm)
	return t
}

// SetBPM sets the tempo directly, clamped to the accepted range
func (t *TapTempo) SetBPM(bpm float64) {
	if bpm < MinBPM {
		bpm = MinBPM
	}
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	t.beatLength = time.Duration(float64(time.Minute) / bpm)
}

// BPM returns the current tempo
func (t *TapTempo) BPM() float64 {
	return float64(time.Minute) / float64(t.beatLength)
}

// BeatLength returns the length of one quarter note
func (t *TapTempo) BeatLength() time.Duration {
	return t.beatLength
}

// Tap registers a tap at the given time. The tap also marks the start of a
// beat. Returns true when the tempo changed.
func (t *TapTempo) Tap(at time.Time) bool {
	changed := false
	if t.chain && at.After(t.lastTap) && at.Sub(t.lastTap) <= tapChainTimeout {
		interval := at.Sub(t.lastTap)
		bpm := float64(time.Minute) / float64(interval)
		if bpm >= MinBPM && bpm <= MaxBPM {
			t.intervals[t.next] = interval
			t.next = (t.next + 1) % maxTapIntervals
			if t.count < maxTapIntervals {
				t.count++
			}
			var sum time.Duration
			for i := 0; i < t.count; i++ {
				sum += t.intervals[i]
			}
			t.beatLength = sum / time.Duration(t.count)
			changed = true
		}
	} else {
		t.count = 0
		t.next = 0
	}
	t.chain = true
	t.lastTap = at
	t.anchor = at
	return changed
}

// ResetTapChain forgets the running chain and restarts the beat at the given time
func (t *TapTempo) ResetTapChain(at time.Time) {
	t.chain = false
	t.count = 0
	t.next = 0
	t.anchor = at
}

// BeatProgress returns how far now is into the current beat, in [0,1)
func (t *TapTempo) BeatProgress(now time.Time) float64 {
	if t.beatLength <= 0 || now.Before(t.anchor) {
		return 0
	}
	elapsed := now.Sub(t.anchor) % t.beatLength
	return float64(elapsed) / float64(t.beatLength)
}

// SetAnchor restarts the beat at the given time without touching the tap chain
func (t *TapTempo) SetAnchor(at time.Time) {
	t.anchor = at
}
