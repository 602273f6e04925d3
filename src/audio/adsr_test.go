package audio

import "testing"

func noteAt(on int64, off int64) *note {
	n := newNote()
	n.noteOnIndex = on
	n.noteOffIndex = off
	return &n
}

func TestADSRContinuity(t *testing.T) {
	sampleRate := 44100.0
	a := newADSR()
	n := noteAt(0, unsetIndex)
	expectNearlyEqual(t, a.valueAt(n, 0, sampleRate), 0)
	expectNearlyEqual(t, a.valueAt(n, 441, sampleRate), 1)    // end of attack
	expectNearlyEqual(t, a.valueAt(n, 4851, sampleRate), 0.7) // end of decay
	expectNearlyEqual(t, a.valueAt(n, 10000, sampleRate), 0.7)

	n.noteOffIndex = 10000
	expectNearlyEqual(t, a.valueAt(n, 10000, sampleRate), 0.7)
	expectNearlyEqual(t, a.valueAt(n, 10000+11025, sampleRate), 0.35)
	expectNearlyEqual(t, a.valueAt(n, 10000+22050, sampleRate), 0)
	expectNearlyEqual(t, a.valueAt(n, 10000+30000, sampleRate), 0)
	expectNearlyEqual(t, a.valueAt(n, 9999, sampleRate), 0)

	// adjacent samples never jump
	held := noteAt(0, unsetIndex)
	prev := 0.0
	for i := int64(0); i < 40000; i++ {
		v := a.valueAt(n, i, sampleRate)
		if i < 10000 {
			v = a.valueAt(held, i, sampleRate)
		}
		if d := v - prev; d > 0.01 || d < -0.01 {
			t.Fatalf("envelope jumps at %d: %v -> %v", i, prev, v)
		}
		prev = v
	}
}

func TestADSRReleaseDuringAttack(t *testing.T) {
	sampleRate := 44100.0
	a := newADSR()
	n := noteAt(0, 220)
	level := 220.0 / 441
	expectNearlyEqual(t, a.valueAt(n, 220, sampleRate), level)
	expectNearlyEqual(t, a.valueAt(n, 220+11025, sampleRate), level/2)
}

func TestADSRZeroLengthSegments(t *testing.T) {
	a := &adsr{attack: 0, decay: 0, sustain: 0.5, release: 0}
	n := noteAt(100, unsetIndex)
	expectNearlyEqual(t, a.valueAt(n, 99, 44100), 0)
	expectNearlyEqual(t, a.valueAt(n, 100, 44100), 0.5)
	n.noteOffIndex = 200
	expectNearlyEqual(t, a.valueAt(n, 200, 44100), 0)
}

func TestADSRSet(t *testing.T) {
	a := newADSR()
	expectNoError(t, a.set("sustain", "1.5"))
	expectNearlyEqual(t, a.sustain, 1)
	expectNoError(t, a.set("attack", "-1"))
	expectNearlyEqual(t, a.attack, 0)
	expectError(t, a.set("hold", "1"))
	expectError(t, a.set("decay", "long"))
}
