package audio

import (
	"math"
	"math/rand"

	clone "github.com/huandu/go-clone/generic"
)

// ----- Layered Voice ----- //

type layer struct {
	osc   *osc // nil = the synthesizer's oscillator
	ratio float64
	level float64
}

// layeredVoice sums up to 1+maxSubOscs oscillators at fixed ratios of the
// note frequency. It covers most presets.
type layeredVoice struct {
	layers []layer

	velocityCutoff   float64 // Hz added to the low-pass cutoff at full velocity
	brightness       float64 // cutoff *= 1 + velocity*brightness
	velocityEnvelope bool    // harder notes attack faster and decay longer
}

func (lv *layeredVoice) noteOn(s *Synthesizer, v *voice) {
	cutoff := s.params.filter.lowPassCutoff
	if lv.velocityCutoff > 0 {
		v.filterCutoff = cutoff + v.velocity*lv.velocityCutoff
	}
	if lv.brightness > 0 {
		v.filterCutoff = cutoff * (1 + v.velocity*lv.brightness)
	}
	if lv.velocityEnvelope {
		env := clone.Clone(s.params.adsr)
		env.attack *= 1 - v.velocity*0.3
		env.decay *= 1 + v.velocity*0.5
		v.envelope = env
	}
}

func (lv *layeredVoice) render(s *Synthesizer, v *voice, start int64, out []float64) {
	clear(out)
	freq := v.frequency()
	for i, l := range lv.layers {
		if i > maxSubOscs {
			break
		}
		o := l.osc
		if o == nil {
			o = s.osc
		}
		phase := &v.phase
		if i > 0 {
			phase = &v.sub[i-1]
		}
		o.addWave(phase, freq*l.ratio, l.level, out)
	}
	s.applyEnvelope(v, start, out)
}

// ----- Kick ----- //

// kickVoice is a sine whose pitch falls from pitchRatio times the note
// frequency down to the note frequency within pitchDrop seconds.
type kickVoice struct {
	pitchDrop  float64 // sec
	pitchRatio float64
}

func (k *kickVoice) noteOn(s *Synthesizer, v *voice) {}

func (k *kickVoice) render(s *Synthesizer, v *voice, start int64, out []float64) {
	freq := v.frequency()
	for i := range out {
		t := float64(start+int64(i)-v.noteOnIndex) / s.sampleRate
		ratio := 1.0
		if t < k.pitchDrop {
			ratio = 1.0 + (k.pitchRatio-1.0)*(1.0-t/k.pitchDrop)
		}
		out[i] = math.Sin(v.phase)
		v.phase = wrapPhase(v.phase + 2.0*math.Pi*freq*ratio/s.sampleRate)
	}
	s.applyEnvelope(v, start, out)
}

// ----- Clap ----- //

var (
	clapPulseTimes      = [...]float64{0.0, 0.01, 0.02}
	clapPulseAmplitudes = [...]float64{1.0, 0.7, 0.5}
)

const (
	clapPulseLength = 0.03
	clapShortDecay  = 0.015
	clapLongDecay   = 0.05
	clapTailLength  = 0.1
	clapTailLevel   = 0.3
)

// clapVoice is noise shaped by three quick bursts and a short tail. The
// ADSR only decides the release fade and when the voice is done.
type clapVoice struct{}

func (clapVoice) noteOn(s *Synthesizer, v *voice) {}

func (clapVoice) render(s *Synthesizer, v *voice, start int64, out []float64) {
	release := s.envelopeOf(v).release
	for i := range out {
		index := start + int64(i)
		t := float64(index-v.noteOnIndex) / s.sampleRate
		fade := 1.0
		if v.released() && index >= v.noteOffIndex {
			sinceOff := float64(index-v.noteOffIndex) / s.sampleRate
			if release <= 0 || sinceOff >= release {
				out[i] = 0
				continue
			}
			fade = 1.0 - sinceOff/release
		}
		env := 0.0
		for p, pt := range clapPulseTimes {
			if t >= pt && t < pt+clapPulseLength {
				env += clapPulseAmplitudes[p] * math.Exp(-(t-pt)/clapShortDecay)
			}
		}
		if t < clapTailLength {
			env += clapTailLevel * math.Exp(-t/clapLongDecay)
		}
		if env > 1 {
			env = 1
		}
		out[i] = (rand.Float64()*2 - 1) * env * fade * v.velocity
	}
}

func (clapVoice) finished(s *Synthesizer, v *voice, last int64) bool {
	release := s.envelopeOf(v).release
	sinceOff := float64(last-v.noteOffIndex) / s.sampleRate
	t := float64(last-v.noteOnIndex) / s.sampleRate
	return sinceOff >= release || t >= clapTailLength
}

// ----- Metallic ----- //

var metallicRatios = [...]float64{1.0, 1.4, 1.7, 2.0, 2.5, 3.0}

// metallicVoice mixes slightly detuned square pairs at inharmonic ratios
// with a little white noise, like a closed hi-hat.
type metallicVoice struct{}

func (metallicVoice) noteOn(s *Synthesizer, v *voice) {}

func (metallicVoice) render(s *Synthesizer, v *voice, start int64, out []float64) {
	freq := v.frequency()
	for i := range out {
		t := float64(start+int64(i)-v.noteOnIndex) / s.sampleRate
		value := 0.0
		for _, ratio := range metallicRatios {
			f := freq * ratio * (1.0 + (rand.Float64()*0.02 - 0.01))
			value += (squareAt(2.0*math.Pi*f*t) + squareAt(2.0*math.Pi*f*(t+0.5))) * 0.5
		}
		value /= float64(len(metallicRatios))
		noise := rand.Float64()*0.6 - 0.3
		out[i] = value*0.8 + noise*0.2
	}
	s.applyEnvelope(v, start, out)
}

func squareAt(phase float64) float64 {
	if math.Sin(phase) > 0 {
		return 1
	}
	return -1
}
