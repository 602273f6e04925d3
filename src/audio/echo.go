package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// ----- Master Echo ----- //

const (
	minEchoDelay    = 10.0 // ms
	maxEchoFeedback = 0.95
)

type echoParams struct {
	enabled  bool
	delay    float64 // ms
	feedback float64 // 0-maxEchoFeedback
	mix      float64 // 0-1
}

type echoJSON struct {
	Enabled  bool    `json:"enabled"`
	Delay    float64 `json:"delay"`
	Feedback float64 `json:"feedback"`
	Mix      float64 `json:"mix"`
}

func newEchoParams() *echoParams {
	return &echoParams{delay: 250, feedback: 0.3, mix: 0.3}
}

func (p *echoParams) applyJSON(data json.RawMessage) {
	j := echoJSON{Enabled: p.enabled, Delay: p.delay, Feedback: p.feedback, Mix: p.mix}
	if err := json.Unmarshal(data, &j); err != nil {
		log.Println("failed to apply JSON to echoParams")
		return
	}
	p.enabled = j.Enabled
	p.delay = nonNegative(j.Delay)
	p.feedback = clamp(j.Feedback, 0, maxEchoFeedback)
	p.mix = clamp(j.Mix, 0, 1)
}

func (p *echoParams) toJSON() json.RawMessage {
	return toRawMessage(&echoJSON{Enabled: p.enabled, Delay: p.delay, Feedback: p.feedback, Mix: p.mix})
}

func (p *echoParams) set(key string, value string) error {
	if key == "enabled" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		p.enabled = enabled
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "delay":
		p.delay = nonNegative(v)
	case "feedback":
		p.feedback = clamp(v, 0, maxEchoFeedback)
	case "mix":
		p.mix = clamp(v, 0, 1)
	default:
		return fmt.Errorf("unknown echo param %q", key)
	}
	return nil
}

// echo feeds the master output back through a single delay line.
type echo struct {
	sampleRate float64
	params     echoParams
	line       []float64
	pos        int
}

func newEcho(sampleRate float64) *echo {
	e := &echo{sampleRate: sampleRate}
	e.applyParams(newEchoParams())
	return e
}

// applyParams keeps what is already in the line when the delay only shrinks.
func (e *echo) applyParams(p *echoParams) {
	e.params = *p
	length := int(e.sampleRate * max(p.delay, minEchoDelay) / 1000)
	if cap(e.line) >= length {
		e.line = e.line[:length]
	} else {
		e.line = append(e.line, make([]float64, length-len(e.line))...)
	}
	if e.pos >= length {
		e.pos = 0
	}
}

func (e *echo) process(samples []float64) {
	if !e.params.enabled {
		return
	}
	for i, in := range samples {
		delayed := e.line[e.pos]
		e.line[e.pos] = in + delayed*e.params.feedback
		samples[i] = in + delayed*e.params.mix
		if e.pos++; e.pos == len(e.line) {
			e.pos = 0
		}
	}
}
