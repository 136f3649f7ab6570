package sequencer

// MaxHeld is the capacity of the arpeggiator's held-note multiset
const MaxHeld = 32

// HeldNotes is an insertion-ordered multiset of pitches
type HeldNotes struct {
	notes [MaxHeld]uint8
	n     int
}

// Add appends one instance of pitch. Returns false when the pitch is out of
// range or the set is full.
func (h *HeldNotes) Add(pitch int) bool {
	if pitch < 0 || pitch >= NumPitches || h.n >= MaxHeld {
		return false
	}
	h.notes[h.n] = uint8(pitch)
	h.n++
	return true
}

// Remove deletes the first instance of pitch, keeping the order of the rest
func (h *HeldNotes) Remove(pitch int) bool {
	for i := 0; i < h.n; i++ {
		if int(h.notes[i]) == pitch {
			copy(h.notes[i:h.n-1], h.notes[i+1:h.n])
			h.n--
			return true
		}
	}
	return false
}

// Len returns the number of held instances
func (h *HeldNotes) Len() int { return h.n }

// Clear empties the set
func (h *HeldNotes) Clear() { h.n = 0 }

// Notes returns the held pitches in insertion order
func (h *HeldNotes) Notes() []uint8 {
	out := make([]uint8, h.n)
	copy(out, h.notes[:h.n])
	return out
}

// snapshot copies the set into dst, sorted ascending when sorted is set
func (h *HeldNotes) snapshot(dst *[MaxHeld]uint8, sorted bool) int {
	n := h.n
	copy(dst[:n], h.notes[:n])
	if sorted {
		for i := 1; i < n; i++ {
			v := dst[i]
			j := i - 1
			for j >= 0 && dst[j] > v {
				dst[j+1] = dst[j]
				j--
			}
			dst[j+1] = v
		}
	}
	return n
}
