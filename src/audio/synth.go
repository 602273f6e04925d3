package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"

	clone "github.com/huandu/go-clone/generic"
)

const (
	defaultPolyphony = 32
	defaultGain      = 0.5
	maxSubOscs       = 4
)

// ----- Synth Params ----- //

type synthParams struct {
	preset    string
	gain      float64
	transpose int // semitones added to the note id
	fixedNote int // -1 = pitch follows the note id
	osc       *oscParams
	adsr      *adsr
	filter    *filterParams
}
type synthJSON struct {
	Preset    string          `json:"preset"`
	Gain      float64         `json:"gain"`
	Transpose int             `json:"transpose"`
	FixedNote int             `json:"fixedNote"`
	Osc       json.RawMessage `json:"osc,omitempty"`
	Adsr      json.RawMessage `json:"adsr,omitempty"`
	Filter    json.RawMessage `json:"filter,omitempty"`
}

func newSynthParams() *synthParams {
	return &synthParams{
		preset:    "synth",
		gain:      defaultGain,
		fixedNote: -1,
		osc:       newOscParams(waveSawtooth),
		adsr:      newADSR(),
		filter:    newFilterParams(),
	}
}

func (p *synthParams) applyJSON(data json.RawMessage) error {
	j := synthJSON{Gain: p.gain, Transpose: p.transpose, FixedNote: p.fixedNote}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to apply JSON to synth: %w", err)
	}
	p.gain = j.Gain
	p.transpose = j.Transpose
	p.fixedNote = j.FixedNote
	if j.Osc != nil {
		p.osc.applyJSON(j.Osc)
	}
	if j.Adsr != nil {
		p.adsr.applyJSON(j.Adsr)
	}
	if j.Filter != nil {
		p.filter.applyJSON(j.Filter)
	}
	return nil
}
func (p *synthParams) toJSON() json.RawMessage {
	return toRawMessage(&synthJSON{
		Preset:    p.preset,
		Gain:      p.gain,
		Transpose: p.transpose,
		FixedNote: p.fixedNote,
		Osc:       p.osc.toJSON(),
		Adsr:      p.adsr.toJSON(),
		Filter:    p.filter.toJSON(),
	})
}

// ----- Voice ----- //

type voice struct {
	note
	id     int
	filter *filter
	sub    [maxSubOscs]float64 // phases of preset-specific extra oscillators
}

// voiceRenderer is the per-preset synthesis strategy of a Synthesizer.
type voiceRenderer interface {
	// noteOn may attach per-voice overrides after the note has been stamped.
	noteOn(s *Synthesizer, v *voice)
	// render writes the enveloped signal of v for the samples starting at start.
	render(s *Synthesizer, v *voice, start int64, out []float64)
}

// voiceFinisher is implemented by renderers that decide on their own when a
// released voice has gone silent.
type voiceFinisher interface {
	finished(s *Synthesizer, v *voice, last int64) bool
}

// standardVoice renders the oscillator through the envelope, scaled by velocity.
type standardVoice struct{}

func (standardVoice) noteOn(s *Synthesizer, v *voice) {}

func (standardVoice) render(s *Synthesizer, v *voice, start int64, out []float64) {
	s.osc.generateWave(&v.note, out)
	s.applyEnvelope(v, start, out)
}

// ----- Synthesizer ----- //

// Synthesizer is a polyphonic voice manager. All methods are safe for
// concurrent use; each call holds the instrument lock for its whole duration.
type Synthesizer struct {
	sync.Mutex
	sampleRate  float64
	params      *synthParams
	osc         *osc
	filter      *filter
	renderer    voiceRenderer
	voices      []*voice
	slots       [128]int // note id -> voice index, -1 if none
	active      []int    // voice indexes in note-on order
	pooled      []int
	sampleCount int64
	wave        []float64
}

var _ Instrument = (*Synthesizer)(nil)

// NewSynthesizer creates a generic sawtooth synthesizer.
func NewSynthesizer(sampleRate float64, polyphony int) *Synthesizer {
	return newSynthesizer(sampleRate, polyphony, newSynthParams(), standardVoice{})
}

func newSynthesizer(sampleRate float64, polyphony int, params *synthParams, renderer voiceRenderer) *Synthesizer {
	if polyphony <= 0 {
		log.Panicf("polyphony should be positive: %v", polyphony)
	}
	s := &Synthesizer{
		sampleRate: sampleRate,
		params:     params,
		osc:        newOsc(sampleRate, params.osc),
		filter:     newFilter(sampleRate),
		renderer:   renderer,
		voices:     make([]*voice, polyphony),
		active:     make([]int, 0, polyphony),
		pooled:     make([]int, polyphony),
		wave:       make([]float64, samplesPerCycle),
	}
	s.filter.applyParams(params.filter)
	for i := range s.voices {
		s.voices[i] = &voice{filter: newFilter(sampleRate)}
		s.pooled[i] = polyphony - 1 - i
	}
	for i := range s.slots {
		s.slots[i] = -1
	}
	return s
}

// Kind ...
func (s *Synthesizer) Kind() InstrumentKind {
	return KindSynth
}

// NoteOn starts (or restarts) the voice for id.
func (s *Synthesizer) NoteOn(id int, velocity int) {
	s.Lock()
	defer s.Unlock()
	id = clampMidiNote(id)
	index := s.allocate(id)
	v := s.voices[index]
	v.note = newNote()
	v.id = id
	pitch := id + s.params.transpose
	if s.params.fixedNote >= 0 {
		pitch = s.params.fixedNote
	}
	v.setByMidi(pitch)
	v.noteOnIndex = s.sampleCount
	v.velocity = velocityToGain(velocity)
	v.filter.reset()
	v.sub = [maxSubOscs]float64{}
	s.renderer.noteOn(s, v)
}

// NoteOff starts the release of the voice for id. Unknown ids are ignored.
func (s *Synthesizer) NoteOff(id int) {
	s.Lock()
	defer s.Unlock()
	index := s.slots[clampMidiNote(id)]
	if index < 0 {
		return
	}
	v := s.voices[index]
	if !v.released() {
		v.noteOffIndex = s.sampleCount
	}
}

// allocate returns the voice index for id: the same voice on retrigger,
// a pooled voice, or the oldest (preferably releasing) voice when full.
func (s *Synthesizer) allocate(id int) int {
	if index := s.slots[id]; index >= 0 {
		return index
	}
	if n := len(s.pooled); n > 0 {
		index := s.pooled[n-1]
		s.pooled = s.pooled[:n-1]
		s.active = append(s.active, index)
		s.slots[id] = index
		return index
	}
	log.Println("maxPoly exceeded")
	victim := 0
	for i, index := range s.active {
		if s.voices[index].released() {
			victim = i
			break
		}
	}
	index := s.active[victim]
	s.slots[s.voices[index].id] = -1
	s.active = append(s.active[:victim], s.active[victim+1:]...)
	s.active = append(s.active, index)
	s.slots[id] = index
	return index
}

func (s *Synthesizer) release(i int) {
	index := s.active[i]
	s.slots[s.voices[index].id] = -1
	s.active = append(s.active[:i], s.active[i+1:]...)
	s.pooled = append(s.pooled, index)
}

func (s *Synthesizer) envelopeOf(v *voice) *adsr {
	if v.envelope != nil {
		return v.envelope
	}
	return s.params.adsr
}

func (s *Synthesizer) applyEnvelope(v *voice, start int64, out []float64) {
	env := s.envelopeOf(v)
	for i := range out {
		out[i] *= env.valueAt(&v.note, start+int64(i), s.sampleRate) * v.velocity
	}
}

func (s *Synthesizer) filterVoice(v *voice, wave []float64) {
	mode := s.params.filter.mode
	if mode == filterNone {
		return
	}
	v.filter.copyParams(s.filter)
	if v.filterCutoff > 0 {
		v.filter.setLowPassCutoff(v.filterCutoff)
	}
	v.filter.process(wave, mode)
}

// Generate fills out with the next len(out) samples.
func (s *Synthesizer) Generate(out []float64) {
	s.Lock()
	defer s.Unlock()
	n := len(out)
	if n == 0 {
		return
	}
	start := s.sampleCount
	s.sampleCount += int64(n)
	clear(out)
	if len(s.active) == 0 {
		return
	}
	if cap(s.wave) < n {
		s.wave = make([]float64, n)
	}
	wave := s.wave[:n]
	audible := 0
	for _, index := range s.active {
		v := s.voices[index]
		s.renderer.render(s, v, start, wave)
		s.filterVoice(v, wave)
		if mixInto(out, wave, 1) {
			audible++
		}
	}
	gain := s.params.gain
	if audible > 1 {
		gain /= math.Sqrt(float64(audible))
	}
	scaleInPlace(out, gain)
	s.cleanup(s.sampleCount - 1)
}

// cleanup removes released voices whose envelope has reached zero at last.
func (s *Synthesizer) cleanup(last int64) {
	for i := len(s.active) - 1; i >= 0; i-- {
		v := s.voices[s.active[i]]
		if !v.released() {
			continue
		}
		done := false
		if f, ok := s.renderer.(voiceFinisher); ok {
			done = f.finished(s, v, last)
		} else {
			done = s.envelopeOf(v).valueAt(&v.note, last, s.sampleRate) <= 0
		}
		if done {
			s.release(i)
		}
	}
}

// Set applies one parameter, e.g. Set([]string{"adsr", "attack"}, "0.1").
func (s *Synthesizer) Set(path []string, value string) error {
	s.Lock()
	defer s.Unlock()
	if len(path) == 0 {
		return fmt.Errorf("empty parameter path")
	}
	switch path[0] {
	case "gain":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		s.params.gain = nonNegative(v)
		return nil
	case "transpose":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.params.transpose = v
		return nil
	}
	if len(path) != 2 {
		return fmt.Errorf("invalid parameter path %v", path)
	}
	switch path[0] {
	case "osc":
		return s.params.osc.set(path[1], value)
	case "adsr":
		return s.params.adsr.set(path[1], value)
	case "filter":
		if err := s.params.filter.set(path[1], value); err != nil {
			return err
		}
		s.filter.applyParams(s.params.filter)
		return nil
	}
	return fmt.Errorf("unknown parameter %v", path)
}

// nudgeCutoff moves a filter cutoff by delta Hz and returns the new cutoff.
func (s *Synthesizer) nudgeCutoff(key string, delta float64) (float64, error) {
	s.Lock()
	defer s.Unlock()
	p := s.params.filter
	var cutoff *float64
	switch key {
	case "low_pass_cutoff":
		cutoff = &p.lowPassCutoff
	case "high_pass_cutoff":
		cutoff = &p.highPassCutoff
	default:
		return 0, fmt.Errorf("unknown filter param %q", key)
	}
	*cutoff = s.filter.clampCutoff(*cutoff + delta)
	s.filter.applyParams(p)
	return *cutoff, nil
}

// ToJSON ...
func (s *Synthesizer) ToJSON() json.RawMessage {
	s.Lock()
	params := clone.Clone(s.params)
	s.Unlock()
	return params.toJSON()
}

func (s *Synthesizer) presetName() string {
	s.Lock()
	defer s.Unlock()
	return s.params.preset
}

func (s *Synthesizer) applyJSON(data json.RawMessage) error {
	s.Lock()
	defer s.Unlock()
	if err := s.params.applyJSON(data); err != nil {
		return err
	}
	s.filter.applyParams(s.params.filter)
	return nil
}

func (s *Synthesizer) activeVoiceCount() int {
	s.Lock()
	defer s.Unlock()
	return len(s.active)
}

func (s *Synthesizer) hasVoice(id int) bool {
	s.Lock()
	defer s.Unlock()
	return s.slots[clampMidiNote(id)] >= 0
}
