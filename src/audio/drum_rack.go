package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync"
)

const maxPads = 16

// ----- Drum Rack ----- //

/*
  pads are laid out from baseNote, e.g. with baseNote 68 on a 4x4 device:

  80 81 82 83
  76 77 78 79
  72 73 74 75
  68 69 70 71
*/
type pad struct {
	note       int
	instrument Instrument
	gain       float64
}

// DrumRack routes each pad note to its own instrument and mixes the pads.
type DrumRack struct {
	sync.Mutex
	sampleRate float64
	baseNote   int
	pads       []*pad // sorted by note
	byNote     map[int]*pad
	out        []float64
}

var _ Instrument = (*DrumRack)(nil)

type padJSON struct {
	Offset int             `json:"offset"`
	Preset string          `json:"preset"`
	Gain   *float64        `json:"gain,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}
type drumRackJSON struct {
	BaseNote int       `json:"baseNote"`
	Pads     []padJSON `json:"pads"`
}

// NewDrumRack ...
func NewDrumRack(sampleRate float64, baseNote int) *DrumRack {
	return &DrumRack{
		sampleRate: sampleRate,
		baseNote:   clampMidiNote(baseNote),
		byNote:     make(map[int]*pad),
		out:        make([]float64, samplesPerCycle),
	}
}

// Kind ...
func (d *DrumRack) Kind() InstrumentKind {
	return KindDrumRack
}

// AddPad assigns instrument to baseNote+offset with unit gain.
func (d *DrumRack) AddPad(offset int, instrument Instrument) error {
	d.Lock()
	defer d.Unlock()
	return d.addPad(offset, instrument, 1.0)
}

func (d *DrumRack) addPad(offset int, instrument Instrument, gain float64) error {
	if offset < 0 || offset >= maxPads {
		return fmt.Errorf("pad offset out of range: %v", offset)
	}
	if instrument.Kind() != KindSynth {
		return fmt.Errorf("pads should be synthesizers")
	}
	note := d.baseNote + offset
	if note > 127 {
		return fmt.Errorf("pad note out of range: %v", note)
	}
	p := &pad{note: note, instrument: instrument, gain: gain}
	if _, ok := d.byNote[note]; ok {
		for i, old := range d.pads {
			if old.note == note {
				d.pads[i] = p
			}
		}
	} else {
		d.pads = append(d.pads, p)
		sort.Slice(d.pads, func(i, j int) bool { return d.pads[i].note < d.pads[j].note })
	}
	d.byNote[note] = p
	return nil
}

// SetPadGain changes the output gain of the pad at note. Unmapped notes are ignored.
func (d *DrumRack) SetPadGain(note int, gain float64) {
	d.Lock()
	defer d.Unlock()
	if p, ok := d.byNote[note]; ok {
		p.gain = nonNegative(gain)
	}
}

// PadNotes returns the mapped pad notes in ascending order.
func (d *DrumRack) PadNotes() []int {
	d.Lock()
	defer d.Unlock()
	notes := make([]int, len(d.pads))
	for i, p := range d.pads {
		notes[i] = p.note
	}
	return notes
}

// NoteOn ...
func (d *DrumRack) NoteOn(id int, velocity int) {
	d.Lock()
	defer d.Unlock()
	p, ok := d.byNote[id]
	if !ok {
		log.Printf("no pad for %s", noteName(id))
		return
	}
	p.instrument.NoteOn(id, velocity)
}

// NoteOff ...
func (d *DrumRack) NoteOff(id int) {
	d.Lock()
	defer d.Unlock()
	if p, ok := d.byNote[id]; ok {
		p.instrument.NoteOff(id)
	}
}

// Generate mixes every pad scaled by its gain. Silent pads do not count
// towards the loudness compensation.
func (d *DrumRack) Generate(out []float64) {
	d.Lock()
	defer d.Unlock()
	n := len(out)
	clear(out)
	if cap(d.out) < n {
		d.out = make([]float64, n)
	}
	buf := d.out[:n]
	audible := 0
	for _, p := range d.pads {
		p.instrument.Generate(buf)
		if mixInto(out, buf, p.gain) {
			audible++
		}
	}
	if audible > 1 {
		scaleInPlace(out, 1/math.Sqrt(float64(audible)))
	}
}

// Set applies "pad <note> gain" or "pad <note> <instrument path...>".
func (d *DrumRack) Set(path []string, value string) error {
	if len(path) < 3 || path[0] != "pad" {
		return fmt.Errorf("invalid drum rack parameter %v", path)
	}
	note, err := strconv.Atoi(path[1])
	if err != nil {
		return err
	}
	if path[2] == "gain" {
		gain, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		d.SetPadGain(note, gain)
		return nil
	}
	d.Lock()
	p, ok := d.byNote[note]
	d.Unlock()
	if !ok {
		return fmt.Errorf("no pad for %s", noteName(note))
	}
	return p.instrument.Set(path[2:], value)
}

// ToJSON ...
func (d *DrumRack) ToJSON() json.RawMessage {
	d.Lock()
	defer d.Unlock()
	j := drumRackJSON{BaseNote: d.baseNote, Pads: make([]padJSON, len(d.pads))}
	for i, p := range d.pads {
		gain := p.gain
		j.Pads[i] = padJSON{
			Offset: p.note - d.baseNote,
			Gain:   &gain,
			Params: p.instrument.ToJSON(),
		}
		if s, ok := p.instrument.(*Synthesizer); ok {
			j.Pads[i].Preset = s.presetName()
		}
	}
	return toRawMessage(&j)
}

// applyJSON rebuilds the pads. The base note stays as constructed when omitted.
func (d *DrumRack) applyJSON(data json.RawMessage) error {
	d.Lock()
	defer d.Unlock()
	j := drumRackJSON{BaseNote: d.baseNote}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to apply JSON to drum rack: %w", err)
	}
	d.baseNote = clampMidiNote(j.BaseNote)
	d.pads = nil
	d.byNote = make(map[int]*pad)
	for _, pj := range j.Pads {
		s, err := newPadSynth(pj, d.sampleRate)
		if err != nil {
			return err
		}
		gain := 1.0
		if pj.Gain != nil {
			gain = nonNegative(*pj.Gain)
		}
		if err := d.addPad(pj.Offset, s, gain); err != nil {
			return err
		}
	}
	return nil
}

func newPadSynth(pj padJSON, sampleRate float64) (*Synthesizer, error) {
	name := pj.Preset
	if name == "" {
		name = "synth"
	}
	s, err := NewPreset(name, sampleRate)
	if err != nil {
		return nil, err
	}
	if pj.Params != nil {
		if err := s.applyJSON(pj.Params); err != nil {
			return nil, err
		}
	}
	return s, nil
}
