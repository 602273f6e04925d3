package audio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ----- Built-in Presets ----- //

type presetFactory func(sampleRate float64, p *synthParams) voiceRenderer

var presets = map[string]presetFactory{
	"synth":        func(sampleRate float64, p *synthParams) voiceRenderer { return standardVoice{} },
	"bass":         bassPreset,
	"kick":         kickPreset,
	"snare":        snarePreset,
	"hihat":        hihatPreset,
	"hihat_closed": hihatClosedPreset,
	"clap":         clapPreset,
	"cowbell":      cowbellPreset,
	"moog_lead":    moogLeadPreset,
	"piano":        pianoPreset,
}

// PresetNames returns the names accepted by NewPreset in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPreset creates a synthesizer set up as the named preset.
func NewPreset(name string, sampleRate float64) (*Synthesizer, error) {
	factory, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	p := newSynthParams()
	p.preset = name
	renderer := factory(sampleRate, p)
	return newSynthesizer(sampleRate, defaultPolyphony, p, renderer), nil
}

func cents(c float64) float64 {
	return math.Pow(2, c/1200)
}

func bassPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.8
	p.transpose = -12
	p.adsr = &adsr{attack: 0.01, decay: 0.2, sustain: 0.4, release: 0.3}
	p.osc = &oscParams{kind: waveSawtooth, harmonics: []harmonic{{1.0, 1.0}, {2.0, 0.3}, {0.5, 0.5}}}
	p.filter = &filterParams{mode: filterLowPass, lowPassCutoff: 800, highPassCutoff: 30, resonance: 0.3}
	return standardVoice{}
}

func kickPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.9
	p.fixedNote = 36
	p.adsr = &adsr{attack: 0.001, decay: 0.25, sustain: 0, release: 0.2}
	p.osc = newOscParams(waveSine)
	p.filter.mode = filterNone
	return &kickVoice{pitchDrop: 0.05, pitchRatio: 20}
}

func snarePreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.5
	p.fixedNote = 54
	p.adsr = &adsr{attack: 0.0001, decay: 0.2, sustain: 0, release: 0.05}
	p.osc = newOscParams(waveSine)
	p.filter.mode = filterNone
	return &layeredVoice{layers: []layer{
		{ratio: 1, level: 0.7},
		{osc: newOsc(sampleRate, newOscParams(waveNoise)), ratio: 1, level: 0.4},
	}}
}

func hihatPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.3
	p.fixedNote = 89
	p.adsr = &adsr{attack: 0, decay: 0.04, sustain: 0, release: 0.01}
	p.osc = &oscParams{kind: waveSquare, harmonics: []harmonic{{1.0, 1.0}, {2.0, 0.6}, {3.1, 0.4}, {4.2, 0.3}, {5.4, 0.2}}}
	p.filter = &filterParams{mode: filterBandPass, lowPassCutoff: 10000, highPassCutoff: 500}
	return &layeredVoice{layers: []layer{
		{ratio: 1, level: 0.5},
		{osc: newOsc(sampleRate, newOscParams(waveNoise)), ratio: 1, level: 0.5},
	}}
}

func hihatClosedPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.3
	p.fixedNote = 96
	p.adsr = &adsr{attack: 0, decay: 0.04, sustain: 0, release: 0.03}
	p.osc = newOscParams(waveSquare)
	p.filter = &filterParams{mode: filterHighPass, lowPassCutoff: 20000, highPassCutoff: 5500}
	return metallicVoice{}
}

func clapPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.6
	p.fixedNote = 39
	p.adsr = &adsr{attack: 0, decay: 0.02, sustain: 0, release: 0.05}
	p.osc = newOscParams(waveNoise)
	p.filter = &filterParams{mode: filterBandPass, lowPassCutoff: 2000, highPassCutoff: 500}
	return clapVoice{}
}

func cowbellPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.3
	p.fixedNote = 56
	p.adsr = &adsr{attack: 0, decay: 0.4, sustain: 0, release: 0.1}
	p.osc = newOscParams(wavePulse)
	p.filter = &filterParams{mode: filterLowPass, lowPassCutoff: 4000, highPassCutoff: 100}
	return &layeredVoice{layers: []layer{
		{ratio: 1, level: 0.6},
		{ratio: 1.5, level: 0.4},
	}}
}

func moogLeadPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.5
	p.adsr = &adsr{attack: 0.05, decay: 0.1, sustain: 0.7, release: 0.2}
	p.osc = &oscParams{kind: waveSawtooth, harmonics: []harmonic{{1.0, 1.0}, {2.0, 0.5}, {3.0, 0.3}, {4.0, 0.2}}}
	p.filter = &filterParams{mode: filterLowPass, lowPassCutoff: 1200, highPassCutoff: 60, resonance: 0.2}
	return &layeredVoice{
		layers: []layer{
			{ratio: 1, level: 0.5},
			{ratio: cents(10), level: 0.5},
		},
		velocityCutoff: 1500,
	}
}

func pianoPreset(sampleRate float64, p *synthParams) voiceRenderer {
	p.gain = 0.5
	p.adsr = &adsr{attack: 0.001, decay: 0.8, sustain: 0.2, release: 0.5}
	p.osc = &oscParams{kind: waveTriangle, harmonics: []harmonic{
		{1.0, 1.0}, {2.0, 0.5}, {3.0, 0.3}, {4.0, 0.2}, {5.0, 0.1}, {6.0, 0.05}, {7.0, 0.025},
	}}
	p.filter = &filterParams{mode: filterLowPass, lowPassCutoff: 5000, highPassCutoff: 100, resonance: 0.1}
	sine := &oscParams{kind: waveSine, harmonics: []harmonic{{1.0, 0.8}, {2.0, 0.4}, {3.0, 0.2}}}
	pulse := &oscParams{kind: wavePulse, harmonics: []harmonic{{1.0, 0.3}, {2.0, 0.1}}}
	return &layeredVoice{
		layers: []layer{
			{ratio: 1, level: 0.6},
			{osc: newOsc(sampleRate, sine), ratio: cents(5), level: 0.25},
			{osc: newOsc(sampleRate, pulse), ratio: cents(-7), level: 0.15},
		},
		brightness:       0.7,
		velocityEnvelope: true,
	}
}

// ----- Preset Files ----- //

type presetMetaJSON struct {
	Name string `json:"name"`
}
type presetMetaListJSON struct {
	Items []presetMetaJSON `json:"items"`
}
type presetMeta struct {
	name string
}
type presetData struct {
	list []*presetMeta
}

// presetManager reads user presets from a directory holding _list.json
// and one <name>.json per preset.
type presetManager struct {
	dir  string
	data *presetData
}

func newPresetManager(dir string) *presetManager {
	return &presetManager{
		dir: dir,
	}
}

func (pm *presetManager) getList() ([]*presetMeta, error) {
	if pm.data == nil {
		if err := pm.loadData(); err != nil {
			return nil, err
		}
	}
	return pm.data.list, nil
}

// applyTo loads a preset listed in _list.json into target.
func (pm *presetManager) applyTo(name string, target Instrument) error {
	list, err := pm.getList()
	if err != nil {
		return err
	}
	found := false
	for _, meta := range list {
		if meta.name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown preset %q", name)
	}
	bytes, err := os.ReadFile(filepath.Join(pm.dir, name+".json"))
	if err != nil {
		return err
	}
	return target.applyJSON(bytes)
}

func (pm *presetManager) loadData() error {
	bytes, err := os.ReadFile(filepath.Join(pm.dir, "_list.json"))
	if err != nil {
		return err
	}
	metaListJSON := &presetMetaListJSON{}
	err = json.Unmarshal(bytes, &metaListJSON)
	if err != nil {
		return fmt.Errorf("invalid preset list: %w", err)
	}
	pm.data = &presetData{list: make([]*presetMeta, len(metaListJSON.Items))}
	for i, item := range metaListJSON.Items {
		pm.data.list[i] = &presetMeta{name: item.Name}
	}
	return nil
}
