package audio

import (
	"encoding/json"
	"fmt"
	"log"
)

// ----- Groovebox Setup ----- //

type instrumentJSON struct {
	Kind   string          `json:"kind"`
	Preset string          `json:"preset,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}
type sidechainJSON struct {
	Trigger int             `json:"trigger"`
	Target  int             `json:"target"`
	Params  json.RawMessage `json:"params,omitempty"`
}
type grooveboxJSON struct {
	Instruments      []instrumentJSON `json:"instruments"`
	Sidechains       []sidechainJSON  `json:"sidechains"`
	Channel          int              `json:"channel"`
	SequencerChannel int              `json:"sequencerChannel"`
}

// drum pads of the default setup, by GM note number
var defaultDrumPads = []struct {
	note   int
	preset string
}{
	{36, "kick"},
	{38, "snare"},
	{39, "clap"},
	{42, "hihat_closed"},
	{46, "hihat"},
	{56, "cowbell"},
}

const defaultDrumBaseNote = 36

// DefaultGroovebox builds the drum rack, bass, lead and piano setup with the
// drums ducking the bass.
func DefaultGroovebox(sampleRate float64) *Groovebox {
	g := NewGroovebox(sampleRate)
	drums := NewDrumRack(sampleRate, defaultDrumBaseNote)
	for _, p := range defaultDrumPads {
		s, err := NewPreset(p.preset, sampleRate)
		if err != nil {
			log.Panicf("failed to create %s: %v", p.preset, err)
		}
		if err := drums.AddPad(p.note-defaultDrumBaseNote, s); err != nil {
			log.Panicf("failed to add pad %s: %v", noteName(p.note), err)
		}
	}
	g.AddInstrument(drums)
	for _, name := range []string{"bass", "moog_lead", "piano"} {
		s, err := NewPreset(name, sampleRate)
		if err != nil {
			log.Panicf("failed to create %s: %v", name, err)
		}
		g.AddInstrument(s)
	}
	g.SetupSidechain(0, 1, DefaultSidechainParams())
	return g
}

// NewGrooveboxFromJSON builds a groovebox from a setup document such as
//
//	{"instruments": [{"kind": "synth", "preset": "bass"}], "sidechains": []}
func NewGrooveboxFromJSON(sampleRate float64, data []byte) (*Groovebox, error) {
	var j grooveboxJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid groovebox setup: %w", err)
	}
	g := NewGroovebox(sampleRate)
	for i, ij := range j.Instruments {
		instrument, err := newInstrumentFromJSON(sampleRate, ij)
		if err != nil {
			return nil, fmt.Errorf("instrument %d: %w", i, err)
		}
		g.AddInstrument(instrument)
	}
	for _, sj := range j.Sidechains {
		p := newSidechain(DefaultSidechainParams())
		if sj.Params != nil {
			p.applyJSON(sj.Params)
		}
		g.SetupSidechain(sj.Trigger, sj.Target, p.params)
	}
	if len(j.Instruments) > 0 {
		g.ChangeChannel(j.Channel)
		g.ChangeSequencerChannel(j.SequencerChannel)
	}
	return g, nil
}

func newInstrumentFromJSON(sampleRate float64, ij instrumentJSON) (Instrument, error) {
	var instrument Instrument
	switch ij.Kind {
	case KindSynth.String(), "":
		name := ij.Preset
		if name == "" {
			name = "synth"
		}
		s, err := NewPreset(name, sampleRate)
		if err != nil {
			return nil, err
		}
		instrument = s
	case KindDrumRack.String():
		instrument = NewDrumRack(sampleRate, defaultDrumBaseNote)
	default:
		return nil, fmt.Errorf("unknown instrument kind %q", ij.Kind)
	}
	if ij.Params != nil {
		if err := instrument.applyJSON(ij.Params); err != nil {
			return nil, err
		}
	}
	return instrument, nil
}

// ToJSON ...
func (g *Groovebox) ToJSON() json.RawMessage {
	g.Lock()
	defer g.Unlock()
	j := grooveboxJSON{
		Instruments:      make([]instrumentJSON, len(g.instruments)),
		Sidechains:       []sidechainJSON{},
		Channel:          g.current,
		SequencerChannel: g.sequencerChannel,
	}
	for i, instrument := range g.instruments {
		j.Instruments[i] = instrumentJSON{
			Kind:   instrument.Kind().String(),
			Params: instrument.ToJSON(),
		}
		if s, ok := instrument.(*Synthesizer); ok {
			j.Instruments[i].Preset = s.presetName()
		}
	}
	for target, c := range g.sidechains {
		if c == nil {
			continue
		}
		j.Sidechains = append(j.Sidechains, sidechainJSON{
			Trigger: c.trigger,
			Target:  target,
			Params:  toRawMessage(c.processor.params),
		})
	}
	return toRawMessage(&j)
}
