package audio

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNearlyEqual(t *testing.T, actual, expected float64) {
	t.Helper()
	if math.Abs(actual-expected) > 0.0001 {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
}

func expectError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Errorf("expected an error, but got nil")
	}
}

func expectFinite(t *testing.T, samples []float64) {
	t.Helper()
	for i, v := range samples {
		if !isFinite(v) {
			t.Fatalf("sample %d is not finite: %v", i, v)
		}
	}
}

func expectSilent(t *testing.T, samples []float64) {
	t.Helper()
	for i, v := range samples {
		if v != 0 {
			t.Fatalf("sample %d should be 0, but got: %v", i, v)
		}
	}
}

func readInt16(buf []byte, i int) int16 {
	return int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
}

func newTestAudio(t *testing.T) (*Audio, *Groovebox) {
	g := NewGroovebox(44100)
	g.AddInstrument(newConstSynth(44100))
	g.AddInstrument(newConstSynth(44100))
	seq := NewSequencer(g, 120)
	seq.AddTrack(-1)
	a := NewAudio(g, seq, "")
	t.Cleanup(func() {
		expectNoError(t, a.Close())
	})
	return a, g
}

func TestWriteBuffer(t *testing.T) {
	out := []float64{2, -2, 0.5, math.NaN()}
	buf := make([]byte, len(out)*bytesPerSample)
	writeBuffer(out, 0, buf, 0)
	writeBuffer(out, 0, buf, 1)
	expectEqual(t, readInt16(buf, 0), int16(32767))
	expectEqual(t, readInt16(buf, 2), int16(32767))
	expectEqual(t, readInt16(buf, 4), int16(-32767))
	expectEqual(t, readInt16(buf, 8), int16(16383))
	expectEqual(t, readInt16(buf, 12), int16(0))
}

func TestRead(t *testing.T) {
	a, _ := newTestAudio(t)
	buf := make([]byte, bufferSizeInBytes*2+8)
	n, err := a.Read(buf)
	expectNoError(t, err)
	expectEqual(t, n, len(buf))
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("output should be silent without notes")
		}
	}
	expectNoError(t, a.update([]string{"note_on", "60", "127"}))
	_, err = a.Read(buf)
	expectNoError(t, err)
	// the constant voice at the default volume, identical on both channels
	expectEqual(t, readInt16(buf, 4), readInt16(buf, 6))
	if readInt16(buf, len(buf)-4) <= 0 {
		t.Errorf("output should be audible after note_on")
	}
}

func TestUpdate(t *testing.T) {
	a, g := newTestAudio(t)

	expectNoError(t, a.update([]string{"note_on", "60", "100"}))
	s0, _ := g.Instrument(0)
	expectEqual(t, s0.(*Synthesizer).hasVoice(60), true)
	expectNoError(t, a.update([]string{"note_off", "60"}))

	expectNoError(t, a.update([]string{"channel", "1"}))
	expectEqual(t, g.CurrentChannel(), 1)
	expectNoError(t, a.update([]string{"sequencer_channel", "1"}))
	expectEqual(t, g.SequencerChannel(), 1)
	expectEqual(t, a.Changes.Has("data"), true)

	expectNoError(t, a.update([]string{"set", "1", "adsr", "attack", "0.3"}))
	s1, _ := g.Instrument(1)
	expectNearlyEqual(t, s1.(*Synthesizer).params.adsr.attack, 0.3)
	expectError(t, a.update([]string{"set", "9", "adsr", "attack", "0.3"}))
	expectError(t, a.update([]string{"set", "1", "adsr", "unknown", "0.3"}))

	expectNoError(t, a.update([]string{"sidechain", "0", "1"}))
	expectNoError(t, a.update([]string{"sidechain", "set", "1", "threshold", "0.5"}))
	trigger, p, ok := g.Sidechain(1)
	expectEqual(t, ok, true)
	expectEqual(t, trigger, 0)
	expectNearlyEqual(t, p.Threshold, 0.5)
	expectNoError(t, a.update([]string{"sidechain", "off", "1"}))
	_, _, ok = g.Sidechain(1)
	expectEqual(t, ok, false)

	expectNoError(t, a.update([]string{"volume", "0.5"}))
	expectNearlyEqual(t, a.volume.targetValue, 0.5)
	expectNoError(t, a.update([]string{"echo", "enabled", "true"}))
	expectEqual(t, a.echo.params.enabled, true)
	expectNoError(t, a.update([]string{"spectrum", "window", "blackman"}))

	expectNoError(t, a.update([]string{"seq", "step", "0", "0", "C4", "100"}))
	expectNoError(t, a.update([]string{"seq", "bpm", "140"}))
	expectError(t, a.update([]string{"seq", "step", "0", "0", "X4", "100"}))

	expectError(t, a.update([]string{"unknown"}))
	expectError(t, a.update([]string{"note_on", "C4"}))
	expectError(t, a.update([]string{"preset", "0", "soft"}))
}

func TestAddMidiEvent(t *testing.T) {
	a, g := newTestAudio(t)
	s0, _ := g.Instrument(0)
	s1, _ := g.Instrument(1)

	a.AddMidiEvent([]byte{0x90, 64, 100})
	expectEqual(t, s0.(*Synthesizer).hasVoice(64), true)
	a.AddMidiEvent([]byte{0xc0, 1})
	expectEqual(t, g.CurrentChannel(), 1)
	a.AddMidiEvent([]byte{0x90, 65, 100})
	expectEqual(t, s1.(*Synthesizer).hasVoice(65), true)
	expectEqual(t, s0.(*Synthesizer).hasVoice(65), false)

	// relative cutoff control of the current instrument
	synth := s1.(*Synthesizer)
	expectNoError(t, synth.Set([]string{"filter", "low_pass_cutoff"}, "500"))
	expectNoError(t, synth.Set([]string{"filter", "high_pass_cutoff"}, "100"))
	a.Changes.Delete("data")
	a.AddMidiEvent([]byte{0xb0, 71, 127})
	expectNearlyEqual(t, synth.params.filter.lowPassCutoff, 510)
	expectNearlyEqual(t, synth.filter.lowPassCutoff, 510)
	expectEqual(t, a.Changes.Has("data"), true)
	a.AddMidiEvent([]byte{0xb0, 71, 1})
	a.AddMidiEvent([]byte{0xb0, 71, 1})
	expectNearlyEqual(t, synth.params.filter.lowPassCutoff, 490)
	a.AddMidiEvent([]byte{0xb0, 74, 127})
	expectNearlyEqual(t, synth.params.filter.highPassCutoff, 110)
	a.AddMidiEvent([]byte{0xb0, 7, 127})
	expectNearlyEqual(t, synth.params.filter.lowPassCutoff, 490)
	expectNearlyEqual(t, synth.params.filter.highPassCutoff, 110)

	// cutoffs stay in the audible range
	expectNoError(t, synth.Set([]string{"filter", "high_pass_cutoff"}, "25"))
	a.AddMidiEvent([]byte{0xb0, 74, 0})
	a.AddMidiEvent([]byte{0xb0, 74, 0})
	expectNearlyEqual(t, synth.params.filter.highPassCutoff, 20)
	a.AddMidiEvent([]byte{0xb0, 74, 127})
	expectNearlyEqual(t, synth.params.filter.highPassCutoff, 30)
	expectEqual(t, s0.(*Synthesizer).params.filter.highPassCutoff, newFilterParams().highPassCutoff)
}

func TestGetFFT(t *testing.T) {
	g := NewGroovebox(44100)
	s := NewSynthesizer(44100, 4)
	expectNoError(t, s.Set([]string{"osc", "kind"}, "sine"))
	expectNoError(t, s.Set([]string{"filter", "mode"}, "none"))
	g.AddInstrument(s)
	a := NewAudio(g, nil, "")
	defer a.Close()
	g.NoteOn(81, 127) // 880Hz
	buf := make([]byte, bufferSizeInBytes)
	for i := 0; i < 4; i++ {
		_, err := a.Read(buf)
		expectNoError(t, err)
	}
	result := a.GetFFT()
	expectEqual(t, len(result), fftSize/2)
	best := 0
	for i, v := range result {
		if v > result[best] {
			best = i
		}
	}
	freq := float64(best) * 44100 / fftSize
	if math.Abs(freq-880) > 44100/fftSize {
		t.Errorf("expected a peak around 880Hz, but got: %v", freq)
	}
}

func TestBenchmark(t *testing.T) {
	polyphony := 10
	times := 200

	g := DefaultGroovebox(defaultSampleRate)
	a := NewAudio(g, nil, "")
	defer a.Close()
	out := make([]byte, bufferSizeInBytes)
	expectNoError(t, a.update([]string{"echo", "enabled", "true"}))
	for ch := 0; ch < g.InstrumentCount(); ch++ {
		g.ChangeChannel(ch)
		for n := 0; n < polyphony; n++ {
			g.NoteOn(36+n, 100)
		}
	}
	start := time.Now()
	for n := 0; n < times; n++ {
		_, err := a.Read(out)
		expectNoError(t, err)
	}
	averageProcessTime := float64(time.Since(start).Microseconds()) / float64(times) / 1000
	fmt.Printf("average process time: %.2fms\n", averageProcessTime)
}

func TestGetLevels(t *testing.T) {
	a, _ := newTestAudio(t)
	p, r := a.GetLevels()
	expectNearlyEqual(t, p, 0)
	expectNearlyEqual(t, r, 0)
	expectNoError(t, a.update([]string{"note_on", "60", "127"}))
	buf := make([]byte, bufferSizeInBytes*2)
	_, err := a.Read(buf)
	expectNoError(t, err)
	p, r = a.GetLevels()
	expectNearlyEqual(t, p, defaultVolume)
	expectNearlyEqual(t, r, defaultVolume)
}
