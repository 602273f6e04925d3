package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
)

// ----- Filter Mode ----- //

const (
	filterNone = iota
	filterLowPass
	filterHighPass
	filterBandPass
	filterAll
)

var filterModeNames = [...]string{"none", "low_pass", "high_pass", "band_pass", "all"}

func filterModeFromString(s string) int {
	for mode, name := range filterModeNames {
		if name == s {
			return mode
		}
	}
	return filterNone
}

func filterModeToString(mode int) string {
	if mode < 0 || mode >= len(filterModeNames) {
		return filterModeNames[filterNone]
	}
	return filterModeNames[mode]
}

const (
	minCutoff       = 20.0
	maxResonance    = 0.99
	resonanceGain   = 3.8
	maxFilterInput  = 10.0
	maxResonantPeak = 3.0
)

// ----- Filter Params ----- //

type filterParams struct {
	mode           int
	lowPassCutoff  float64 // Hz
	highPassCutoff float64 // Hz
	resonance      float64 // 0-0.99
}
type filterJSON struct {
	Mode           string  `json:"mode"`
	LowPassCutoff  float64 `json:"lowPassCutoff"`
	HighPassCutoff float64 `json:"highPassCutoff"`
	Resonance      float64 `json:"resonance"`
}

func newFilterParams() *filterParams {
	return &filterParams{
		mode:           filterLowPass,
		lowPassCutoff:  1000,
		highPassCutoff: 100,
		resonance:      0,
	}
}

func (p *filterParams) applyJSON(data json.RawMessage) {
	j := filterJSON{
		Mode:           filterModeToString(p.mode),
		LowPassCutoff:  p.lowPassCutoff,
		HighPassCutoff: p.highPassCutoff,
		Resonance:      p.resonance,
	}
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to filterParams")
		return
	}
	p.mode = filterModeFromString(j.Mode)
	p.lowPassCutoff = j.LowPassCutoff
	p.highPassCutoff = j.HighPassCutoff
	p.resonance = j.Resonance
}
func (p *filterParams) toJSON() json.RawMessage {
	return toRawMessage(&filterJSON{
		Mode:           filterModeToString(p.mode),
		LowPassCutoff:  p.lowPassCutoff,
		HighPassCutoff: p.highPassCutoff,
		Resonance:      p.resonance,
	})
}
func (p *filterParams) set(key string, value string) error {
	if key == "mode" {
		p.mode = filterModeFromString(value)
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "low_pass_cutoff", "cutoff":
		p.lowPassCutoff = v
	case "high_pass_cutoff":
		p.highPassCutoff = v
	case "resonance":
		p.resonance = v
	default:
		return fmt.Errorf("unknown filter param %q", key)
	}
	return nil
}

// ----- Filter ----- //

// filter is a one-pole high-pass followed by a one-pole low-pass with
// resonance feedback on the low-pass stage.
type filter struct {
	sampleRate     float64
	lowPassCutoff  float64
	highPassCutoff float64
	resonance      float64
	feedback       float64
	lowPassAlpha   float64
	highPassAlpha  float64

	lowPassPrevOutput  float64
	highPassPrevInput  float64
	highPassPrevOutput float64
}

func newFilter(sampleRate float64) *filter {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		log.Panicf("invalid sample rate: %v", sampleRate)
	}
	f := &filter{sampleRate: sampleRate}
	f.applyParams(newFilterParams())
	return f
}

func (f *filter) applyParams(p *filterParams) {
	f.setLowPassCutoff(p.lowPassCutoff)
	f.setHighPassCutoff(p.highPassCutoff)
	f.setResonance(p.resonance)
}

func (f *filter) clampCutoff(freq float64) float64 {
	if math.IsNaN(freq) {
		return minCutoff
	}
	return clamp(freq, minCutoff, f.sampleRate/2)
}

func (f *filter) alpha(cutoff float64) float64 {
	rc := 1.0 / (2.0 * math.Pi * cutoff)
	return rc / (rc + 1.0/f.sampleRate)
}

func (f *filter) setLowPassCutoff(freq float64) {
	f.lowPassCutoff = f.clampCutoff(freq)
	f.lowPassAlpha = f.alpha(f.lowPassCutoff)
}

func (f *filter) setHighPassCutoff(freq float64) {
	f.highPassCutoff = f.clampCutoff(freq)
	f.highPassAlpha = f.alpha(f.highPassCutoff)
}

func (f *filter) setResonance(resonance float64) {
	if math.IsNaN(resonance) {
		resonance = 0
	}
	f.resonance = clamp(resonance, 0, maxResonance)
	f.feedback = f.resonance * resonanceGain
}

// copyParams takes cutoffs and resonance from src, keeping f's own history.
func (f *filter) copyParams(src *filter) {
	f.lowPassCutoff = src.lowPassCutoff
	f.highPassCutoff = src.highPassCutoff
	f.resonance = src.resonance
	f.feedback = src.feedback
	f.lowPassAlpha = src.lowPassAlpha
	f.highPassAlpha = src.highPassAlpha
}

func (f *filter) reset() {
	f.lowPassPrevOutput = 0
	f.highPassPrevInput = 0
	f.highPassPrevOutput = 0
}

func (f *filter) lowPass(in float64) float64 {
	in = clampFinite(in, maxFilterInput)
	if f.resonance > 0 {
		fb := f.lowPassPrevOutput * f.feedback
		if !isFinite(fb) {
			fb = 0
		}
		in -= fb
	}
	out := f.lowPassAlpha*in + (1-f.lowPassAlpha)*f.lowPassPrevOutput
	if f.resonance > 0 {
		out = clamp(out, -maxResonantPeak, maxResonantPeak)
	}
	if !isFinite(out) {
		out = 0
	}
	f.lowPassPrevOutput = out
	return out
}

func (f *filter) highPass(in float64) float64 {
	in = clampFinite(in, maxFilterInput)
	out := (1 - f.highPassAlpha) * (f.highPassPrevOutput + in - f.highPassPrevInput)
	if !isFinite(out) {
		out = 0
	}
	f.highPassPrevInput = in
	f.highPassPrevOutput = out
	return out
}

func (f *filter) apply(in float64) float64 {
	return f.lowPass(f.highPass(in))
}

// process filters samples in place.
func (f *filter) process(samples []float64, mode int) {
	switch mode {
	case filterLowPass:
		for i, s := range samples {
			samples[i] = f.lowPass(s)
		}
	case filterHighPass:
		for i, s := range samples {
			samples[i] = f.highPass(s)
		}
	case filterBandPass, filterAll:
		for i, s := range samples {
			samples[i] = f.apply(s)
		}
	}
}

// clampFinite limits v to [-limit, limit] and maps NaN to 0.
func clampFinite(v float64, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -limit, limit)
}
