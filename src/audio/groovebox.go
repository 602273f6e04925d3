package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
)

// ----- Instrument ----- //

// InstrumentKind ...
type InstrumentKind int

// instrument kinds
const (
	KindSynth InstrumentKind = iota
	KindDrumRack
)

var instrumentKindNames = [...]string{"synth", "drum_rack"}

func (k InstrumentKind) String() string {
	if k < 0 || int(k) >= len(instrumentKindNames) {
		return "unknown"
	}
	return instrumentKindNames[k]
}

// Instrument is implemented by *Synthesizer and *DrumRack only.
type Instrument interface {
	Kind() InstrumentKind
	NoteOn(id int, velocity int)
	NoteOff(id int)
	// Generate fills out with the next len(out) samples.
	Generate(out []float64)
	Set(path []string, value string) error
	ToJSON() json.RawMessage
	applyJSON(data json.RawMessage) error
}

// ----- Groovebox ----- //

type connection struct {
	trigger   int
	processor *sidechain
}

// Groovebox is the mixing bus. Instruments are only added during setup.
//
// Lock order: Groovebox, then the instrument.
type Groovebox struct {
	sync.Mutex
	sampleRate       float64
	instruments      []Instrument
	current          int
	sequencerChannel int
	sidechains       []*connection // by target index
	raw              [][]float64
	ducked           [][]float64
}

// NewGroovebox ...
func NewGroovebox(sampleRate float64) *Groovebox {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		log.Panicf("invalid sample rate: %v", sampleRate)
	}
	return &Groovebox{sampleRate: sampleRate}
}

// SampleRate ...
func (g *Groovebox) SampleRate() float64 {
	return g.sampleRate
}

// AddInstrument appends instrument and returns its channel.
func (g *Groovebox) AddInstrument(instrument Instrument) int {
	g.Lock()
	defer g.Unlock()
	g.instruments = append(g.instruments, instrument)
	g.sidechains = append(g.sidechains, nil)
	g.raw = append(g.raw, make([]float64, samplesPerCycle))
	g.ducked = append(g.ducked, make([]float64, samplesPerCycle))
	return len(g.instruments) - 1
}

// Instrument returns the instrument at channel.
func (g *Groovebox) Instrument(channel int) (Instrument, bool) {
	g.Lock()
	defer g.Unlock()
	if channel < 0 || channel >= len(g.instruments) {
		return nil, false
	}
	return g.instruments[channel], true
}

// InstrumentCount ...
func (g *Groovebox) InstrumentCount() int {
	g.Lock()
	defer g.Unlock()
	return len(g.instruments)
}

// ChangeChannel selects the instrument for live input. Unknown channels are ignored.
func (g *Groovebox) ChangeChannel(channel int) {
	g.Lock()
	defer g.Unlock()
	if channel < 0 || channel >= len(g.instruments) {
		log.Printf("no instrument at channel %d", channel)
		return
	}
	g.current = channel
}

// ChangeSequencerChannel selects the instrument for sequencer input.
func (g *Groovebox) ChangeSequencerChannel(channel int) {
	g.Lock()
	defer g.Unlock()
	if channel < 0 || channel >= len(g.instruments) {
		log.Printf("no instrument at channel %d", channel)
		return
	}
	g.sequencerChannel = channel
}

// CurrentChannel ...
func (g *Groovebox) CurrentChannel() int {
	g.Lock()
	defer g.Unlock()
	return g.current
}

// SequencerChannel ...
func (g *Groovebox) SequencerChannel() int {
	g.Lock()
	defer g.Unlock()
	return g.sequencerChannel
}

// NoteOn sends a note to the current channel.
func (g *Groovebox) NoteOn(id int, velocity int) {
	g.Lock()
	defer g.Unlock()
	g.noteOn(g.current, id, velocity)
}

// NoteOff sends a note-off to the current channel.
func (g *Groovebox) NoteOff(id int) {
	g.Lock()
	defer g.Unlock()
	g.noteOff(g.current, id)
}

// SequencerNoteOn sends a note to the sequencer channel.
func (g *Groovebox) SequencerNoteOn(id int, velocity int) {
	g.Lock()
	defer g.Unlock()
	g.noteOn(g.sequencerChannel, id, velocity)
}

// SequencerNoteOff sends a note-off to the sequencer channel.
func (g *Groovebox) SequencerNoteOff(id int) {
	g.Lock()
	defer g.Unlock()
	g.noteOff(g.sequencerChannel, id)
}

// ChannelNoteOn sends a note to the given channel regardless of the selection.
func (g *Groovebox) ChannelNoteOn(channel int, id int, velocity int) {
	g.Lock()
	defer g.Unlock()
	g.noteOn(channel, id, velocity)
}

// ChannelNoteOff ...
func (g *Groovebox) ChannelNoteOff(channel int, id int) {
	g.Lock()
	defer g.Unlock()
	g.noteOff(channel, id)
}

// NudgeCutoff moves a filter cutoff of the current instrument by delta Hz.
// Only synthesizers have a filter to move.
func (g *Groovebox) NudgeCutoff(key string, delta float64) (float64, error) {
	g.Lock()
	defer g.Unlock()
	if g.current < 0 || g.current >= len(g.instruments) {
		return 0, fmt.Errorf("no instrument at channel %d", g.current)
	}
	s, ok := g.instruments[g.current].(*Synthesizer)
	if !ok {
		return 0, fmt.Errorf("%s has no filter", g.instruments[g.current].Kind())
	}
	return s.nudgeCutoff(key, delta)
}

func (g *Groovebox) noteOn(channel int, id int, velocity int) {
	if channel < 0 || channel >= len(g.instruments) {
		return
	}
	g.instruments[channel].NoteOn(id, velocity)
}

func (g *Groovebox) noteOff(channel int, id int) {
	if channel < 0 || channel >= len(g.instruments) {
		return
	}
	g.instruments[channel].NoteOff(id)
}

// SetupSidechain ducks target whenever trigger gets loud. A target has at
// most one trigger; a later call replaces the earlier one. Indexes out of
// range are ignored.
func (g *Groovebox) SetupSidechain(trigger int, target int, p SidechainParams) {
	g.Lock()
	defer g.Unlock()
	if trigger < 0 || trigger >= len(g.instruments) || target < 0 || target >= len(g.instruments) {
		log.Printf("sidechain %d -> %d ignored", trigger, target)
		return
	}
	g.sidechains[target] = &connection{trigger: trigger, processor: newSidechain(p)}
}

// RemoveSidechain ...
func (g *Groovebox) RemoveSidechain(target int) {
	g.Lock()
	defer g.Unlock()
	if target < 0 || target >= len(g.sidechains) {
		return
	}
	g.sidechains[target] = nil
}

// Sidechain returns the trigger channel and params of the connection ducking target.
func (g *Groovebox) Sidechain(target int) (int, SidechainParams, bool) {
	g.Lock()
	defer g.Unlock()
	if target < 0 || target >= len(g.sidechains) || g.sidechains[target] == nil {
		return 0, SidechainParams{}, false
	}
	c := g.sidechains[target]
	return c.trigger, c.processor.params, true
}

// SetSidechainParams replaces the params of an existing connection, keeping its envelope.
func (g *Groovebox) SetSidechainParams(target int, p SidechainParams) bool {
	g.Lock()
	defer g.Unlock()
	if target < 0 || target >= len(g.sidechains) || g.sidechains[target] == nil {
		return false
	}
	g.sidechains[target].processor.params = p
	return true
}

func (g *Groovebox) setSidechainParam(target int, key string, value string) error {
	g.Lock()
	defer g.Unlock()
	if target < 0 || target >= len(g.sidechains) || g.sidechains[target] == nil {
		return fmt.Errorf("no sidechain for channel %d", target)
	}
	return g.sidechains[target].processor.params.set(key, value)
}

// Generate fills out with the mix of all instruments.
func (g *Groovebox) Generate(out []float64) {
	g.Lock()
	defer g.Unlock()
	n := len(out)
	for i, instrument := range g.instruments {
		g.raw[i] = resize(g.raw[i], n)
		instrument.Generate(g.raw[i])
	}
	clear(out)
	audible := 0
	for i, raw := range g.raw {
		processed := raw
		if c := g.sidechains[i]; c != nil {
			// triggers always see the raw output
			g.ducked[i] = resize(g.ducked[i], n)
			processed = g.ducked[i]
			copy(processed, raw)
			c.processor.process(g.raw[c.trigger], processed, g.sampleRate)
		}
		if mixInto(out, processed, 1) {
			audible++
		}
	}
	if audible > 1 {
		scaleInPlace(out, 1/math.Sqrt(float64(audible)))
	}
}
