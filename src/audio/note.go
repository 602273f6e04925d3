package audio

import (
	"fmt"
	"math"
)

// ----- Note ----- //

const unsetIndex int64 = -1

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

type note struct {
	semitone     int     // relative to A4 (440Hz)
	detune       float64 // frequency ratio, 1 = none
	phase        float64 // [0, 2pi)
	noteOnIndex  int64
	noteOffIndex int64
	velocity     float64 // 0-1

	// per-voice overrides
	envelope     *adsr
	filterCutoff float64 // 0 = use the instrument's cutoff
}

func newNote() note {
	return note{
		detune:       1,
		noteOnIndex:  unsetIndex,
		noteOffIndex: unsetIndex,
		velocity:     1,
	}
}

func (n *note) setByMidi(midiNote int) {
	n.semitone = clampMidiNote(midiNote) - 69
}

func (n *note) midiNote() int {
	return n.semitone + 69
}

func (n *note) frequency() float64 {
	return baseFreq * math.Pow(2, float64(n.semitone)/12) * n.detune
}

func (n *note) released() bool {
	return n.noteOffIndex != unsetIndex
}

func (n *note) String() string {
	return fmt.Sprintf("%s (%.2f Hz)", noteName(n.midiNote()), n.frequency())
}

func clampMidiNote(midiNote int) int {
	if midiNote < 0 {
		return 0
	}
	if midiNote > 127 {
		return 127
	}
	return midiNote
}

func noteName(midiNote int) string {
	midiNote = clampMidiNote(midiNote)
	return noteNames[midiNote%12] + fmt.Sprint(midiNote/12-1)
}

func velocityToGain(velocity int) float64 {
	if velocity < 0 {
		return 0
	}
	if velocity > 127 {
		return 1
	}
	return float64(velocity) / 127
}
