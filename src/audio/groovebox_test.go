package audio

import (
	"encoding/json"
	"math"
	"testing"
)

func newConstGroovebox(n int) (*Groovebox, []*Synthesizer) {
	g := NewGroovebox(44100)
	synths := make([]*Synthesizer, n)
	for i := range synths {
		synths[i] = newConstSynth(44100)
		g.AddInstrument(synths[i])
	}
	return g, synths
}

func TestGrooveboxRouting(t *testing.T) {
	g, synths := newConstGroovebox(2)
	g.ChangeChannel(1)
	g.NoteOn(60, 100)
	expectEqual(t, synths[1].hasVoice(60), true)
	expectEqual(t, synths[0].hasVoice(60), false)

	g.ChangeSequencerChannel(0)
	g.SequencerNoteOn(62, 100)
	expectEqual(t, synths[0].hasVoice(62), true)
	g.SequencerNoteOff(62)
	expectEqual(t, synths[0].voices[synths[0].slots[62]].released(), true)

	g.ChannelNoteOn(1, 64, 100)
	expectEqual(t, synths[1].hasVoice(64), true)
	g.ChannelNoteOn(5, 64, 100)

	// out of range channels are ignored
	g.ChangeChannel(5)
	expectEqual(t, g.CurrentChannel(), 1)
	g.ChangeSequencerChannel(-1)
	expectEqual(t, g.SequencerChannel(), 0)

	_, ok := g.Instrument(2)
	expectEqual(t, ok, false)
	expectEqual(t, g.InstrumentCount(), 2)
}

func TestGrooveboxMix(t *testing.T) {
	g, _ := newConstGroovebox(3)
	out := make([]float64, 64)
	g.Generate(out)
	expectSilent(t, out)

	g.ChannelNoteOn(0, 60, 100)
	g.Generate(out)
	expectNearlyEqual(t, out[0], 1)

	g.ChannelNoteOn(2, 60, 100)
	g.Generate(out)
	expectNearlyEqual(t, out[0], math.Sqrt(2))
}

func TestGrooveboxSidechain(t *testing.T) {
	g, _ := newConstGroovebox(2)
	g.SetupSidechain(0, 1, SidechainParams{Threshold: 0.3, Attack: 0, Release: 0.2})
	trigger, p, ok := g.Sidechain(1)
	expectEqual(t, ok, true)
	expectEqual(t, trigger, 0)
	expectNearlyEqual(t, p.Threshold, 0.3)
	_, _, ok = g.Sidechain(0)
	expectEqual(t, ok, false)

	out := make([]float64, 64)
	g.ChannelNoteOn(1, 60, 100)
	g.Generate(out)
	// the trigger is silent
	expectNearlyEqual(t, out[0], 1)

	g.ChannelNoteOn(0, 60, 100)
	g.Generate(out)
	// the target is fully ducked and does not count towards the mix
	expectNearlyEqual(t, out[0], 1)
	expectNearlyEqual(t, out[63], 1)

	expectEqual(t, g.SetSidechainParams(1, SidechainParams{Threshold: 2}), true)
	expectEqual(t, g.SetSidechainParams(0, SidechainParams{}), false)
	expectError(t, g.setSidechainParam(0, "threshold", "0.5"))
	expectError(t, g.setSidechainParam(1, "knee", "0.5"))

	g.RemoveSidechain(1)
	_, _, ok = g.Sidechain(1)
	expectEqual(t, ok, false)
	g.Generate(out)
	expectNearlyEqual(t, out[0], math.Sqrt(2))

	// invalid connections are ignored
	g.SetupSidechain(0, 5, DefaultSidechainParams())
	g.SetupSidechain(-1, 1, DefaultSidechainParams())
	_, _, ok = g.Sidechain(1)
	expectEqual(t, ok, false)
}

func TestTriggerSeesRawOutput(t *testing.T) {
	// 0 and 1 duck each other; both triggers read the signal before ducking
	g, _ := newConstGroovebox(2)
	p := SidechainParams{Threshold: 0.3, Attack: 0, Release: 0}
	g.SetupSidechain(0, 1, p)
	g.SetupSidechain(1, 0, p)
	g.ChannelNoteOn(0, 60, 100)
	g.ChannelNoteOn(1, 60, 100)
	out := make([]float64, 16)
	g.Generate(out)
	expectSilent(t, out)
}

func TestSidechainEnvelope(t *testing.T) {
	sampleRate := 44100.0
	s := newSidechain(DefaultSidechainParams())
	loud := make([]float64, 100)
	target := make([]float64, 100)
	for i := range loud {
		loud[i] = 1
		target[i] = 1
	}
	s.process(loud, target, sampleRate)
	expectNearlyEqual(t, target[0], 1-1/(0.001*sampleRate))
	expectNearlyEqual(t, target[99], 0)

	quiet := make([]float64, 44100)
	target = make([]float64, 44100)
	for i := range target {
		target[i] = 1
	}
	s.process(quiet, target, sampleRate)
	for i := 1; i < len(target); i++ {
		if target[i] < target[i-1] {
			t.Fatalf("release should not go down at %d", i)
		}
	}
	expectNearlyEqual(t, target[len(target)-1], 1)
}

func TestSidechainParamsSet(t *testing.T) {
	p := DefaultSidechainParams()
	expectNoError(t, p.set("attack", "-1"))
	expectNearlyEqual(t, p.Attack, 0)
	expectNoError(t, p.set("ratio", "8"))
	expectNearlyEqual(t, p.Ratio, 8)
	expectError(t, p.set("release", "slow"))
}

func TestDefaultGroovebox(t *testing.T) {
	g := DefaultGroovebox(44100)
	expectEqual(t, g.InstrumentCount(), 4)
	drums, _ := g.Instrument(0)
	expectEqual(t, drums.Kind(), KindDrumRack)
	expectEqual(t, len(drums.(*DrumRack).PadNotes()), len(defaultDrumPads))
	trigger, _, ok := g.Sidechain(1)
	expectEqual(t, ok, true)
	expectEqual(t, trigger, 0)

	_, err := g.NudgeCutoff("low_pass_cutoff", 10)
	expectError(t, err)

	g.ChannelNoteOn(0, 36, 127)
	g.ChannelNoteOn(1, 36, 127)
	out := make([]float64, 256)
	g.Generate(out)
	expectFinite(t, out)
	if peak(out) == 0 {
		t.Errorf("expected sound")
	}
}

func TestGrooveboxJSON(t *testing.T) {
	g := DefaultGroovebox(44100)
	g.ChangeChannel(2)
	data := g.ToJSON()

	restored, err := NewGrooveboxFromJSON(44100, data)
	expectNoError(t, err)
	expectEqual(t, restored.InstrumentCount(), 4)
	expectEqual(t, restored.CurrentChannel(), 2)
	lead, _ := restored.Instrument(2)
	expectEqual(t, lead.(*Synthesizer).presetName(), "moog_lead")
	drums, _ := restored.Instrument(0)
	expectEqual(t, len(drums.(*DrumRack).PadNotes()), len(defaultDrumPads))
	_, _, ok := restored.Sidechain(1)
	expectEqual(t, ok, true)

	var j grooveboxJSON
	expectNoError(t, json.Unmarshal(restored.ToJSON(), &j))
	expectEqual(t, j.Instruments[0].Kind, "drum_rack")
	expectEqual(t, j.Instruments[1].Preset, "bass")

	_, err = NewGrooveboxFromJSON(44100, []byte(`{"instruments":[{"kind":"sampler"}]}`))
	expectError(t, err)
	_, err = NewGrooveboxFromJSON(44100, []byte(`[`))
	expectError(t, err)
}

func TestInvalidSampleRate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for an invalid sample rate")
		}
	}()
	NewGroovebox(math.NaN())
}
