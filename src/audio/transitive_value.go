package audio

// ----- Transition Kind ----- //

const (
	transitionNone = iota
	transitionLinear
)

// ----- Transitive Value ----- //

// transitiveValue moves towards a target one sample at a time.
type transitiveValue struct {
	secPerSample float64
	kind         int
	duration     float64 // ms
	initialValue float64
	targetValue  float64
	value        float64
	pos          int
}

func newTransitiveValue(sampleRate float64, value float64) *transitiveValue {
	return &transitiveValue{
		secPerSample: 1 / sampleRate,
		kind:         transitionNone,
		value:        value,
		targetValue:  value,
	}
}

func (tv *transitiveValue) linear(duration float64, targetValue float64) {
	tv.kind = transitionLinear
	tv.duration = duration
	tv.pos = 0
	tv.initialValue = tv.value
	tv.targetValue = targetValue
}
func (tv *transitiveValue) step() bool {
	ended := false
	switch tv.kind {
	case transitionLinear:
		phaseTime := float64(tv.pos) * tv.secPerSample * 1000 // ms
		if phaseTime >= tv.duration {
			tv.end()
			ended = true
		} else {
			t := phaseTime / tv.duration
			tv.value = t*tv.targetValue + (1-t)*tv.initialValue
			tv.pos++
		}
	case transitionNone:

	}
	return ended
}
func (tv *transitiveValue) end() {
	tv.kind = transitionNone
	tv.value = tv.targetValue
	tv.pos = 0
}

// applyTo multiplies samples by the value, stepping once per sample.
func (tv *transitiveValue) applyTo(samples []float64) {
	for i := range samples {
		samples[i] *= tv.value
		tv.step()
	}
}
