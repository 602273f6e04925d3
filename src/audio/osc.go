package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// ----- Wave Kind ----- //

const (
	waveNone = iota
	waveSine
	waveSawtooth
	waveTriangle
	wavePulse
	waveSquare
	waveNoise
)

var waveKindNames = [...]string{"none", "sine", "sawtooth", "triangle", "pulse", "square", "noise"}

func waveKindFromString(s string) int {
	if s == "saw" {
		return waveSawtooth
	}
	for kind, name := range waveKindNames {
		if name == s {
			return kind
		}
	}
	return waveNone
}

func waveKindToString(kind int) string {
	if kind < 0 || kind >= len(waveKindNames) {
		return waveKindNames[waveNone]
	}
	return waveKindNames[kind]
}

// waveAt evaluates one cycle of the given wave kind. phase must be in [0, 2pi).
func waveAt(kind int, phase float64) float64 {
	p := phase / (2.0 * math.Pi)
	switch kind {
	case waveSine:
		return math.Sin(phase)
	case waveSawtooth:
		return 2.0*p - 1.0
	case waveTriangle:
		return 2.0*(2.0*math.Abs(p-0.5)) - 1.0
	case wavePulse:
		if phase < math.Pi {
			return 1
		}
		return -1
	case waveSquare:
		if phase < math.Pi {
			return 0.5
		}
		return -0.5
	case waveNoise:
		return rand.Float64()*2 - 1
	}
	return 0
}

// ----- OSC Params ----- //

type harmonic struct {
	ratio     float64
	amplitude float64
}

type oscParams struct {
	kind      int
	harmonics []harmonic
}
type oscJSON struct {
	Kind      string       `json:"kind"`
	Harmonics [][2]float64 `json:"harmonics"`
}

func newOscParams(kind int) *oscParams {
	return &oscParams{
		kind:      kind,
		harmonics: []harmonic{{ratio: 1, amplitude: 1}},
	}
}

func (o *oscParams) applyJSON(data json.RawMessage) {
	j := oscJSON{Kind: waveKindToString(o.kind)}
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to oscParams")
		return
	}
	o.kind = waveKindFromString(j.Kind)
	if len(j.Harmonics) > 0 {
		harmonics := make([]harmonic, len(j.Harmonics))
		for i, h := range j.Harmonics {
			harmonics[i] = harmonic{ratio: h[0], amplitude: h[1]}
		}
		o.harmonics = harmonics
	}
}
func (o *oscParams) toJSON() json.RawMessage {
	harmonics := make([][2]float64, len(o.harmonics))
	for i, h := range o.harmonics {
		harmonics[i] = [2]float64{h.ratio, h.amplitude}
	}
	return toRawMessage(&oscJSON{
		Kind:      waveKindToString(o.kind),
		Harmonics: harmonics,
	})
}

// set accepts "kind" (or "waveform") and "harmonics" written as "ratio:amp,ratio:amp".
func (o *oscParams) set(key string, value string) error {
	switch key {
	case "kind", "waveform":
		o.kind = waveKindFromString(value)
	case "harmonics":
		harmonics, err := parseHarmonics(value)
		if err != nil {
			return err
		}
		o.harmonics = harmonics
	default:
		return fmt.Errorf("unknown osc param %q", key)
	}
	return nil
}

func parseHarmonics(value string) ([]harmonic, error) {
	var harmonics []harmonic
	for _, item := range strings.Split(value, ",") {
		pair := strings.Split(item, ":")
		if len(pair) != 2 {
			return nil, fmt.Errorf("invalid harmonic %q", item)
		}
		ratio, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, err
		}
		amplitude, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, err
		}
		harmonics = append(harmonics, harmonic{ratio: ratio, amplitude: amplitude})
	}
	if len(harmonics) == 0 {
		return nil, fmt.Errorf("no harmonics")
	}
	return harmonics, nil
}

// ----- OSC ----- //

type osc struct {
	sampleRate float64
	params     *oscParams
}

func newOsc(sampleRate float64, params *oscParams) *osc {
	return &osc{
		sampleRate: sampleRate,
		params:     params,
	}
}

func (o *osc) valueAtPhase(phase float64) float64 {
	value := 0.0
	for _, h := range o.params.harmonics {
		p := phase
		if h.ratio != 1 {
			p = positiveMod(phase*h.ratio, 2.0*math.Pi)
		}
		value += waveAt(o.params.kind, p) * h.amplitude
	}
	return value
}

// generateWave fills out with raw samples for n and advances n.phase.
func (o *osc) generateWave(n *note, out []float64) {
	clear(out)
	o.addWave(&n.phase, n.frequency(), 1, out)
}

// addWave mixes a wave at freq into out, advancing phase.
func (o *osc) addWave(phase *float64, freq float64, level float64, out []float64) {
	delta := 2.0 * math.Pi * freq / o.sampleRate
	p := *phase
	for i := range out {
		out[i] += o.valueAtPhase(p) * level
		p = wrapPhase(p + delta)
	}
	*phase = p
}

func wrapPhase(phase float64) float64 {
	for phase >= 2.0*math.Pi {
		phase -= 2.0 * math.Pi
	}
	return phase
}
