package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// ----- ADSR ----- //

/*
  1 +     x
    |    / \
    |   /   \
  s +  /     x------x
    | /              \
    |/                \
  0 +-----+--+------+---
    |a    |d |      |r |
          note-on   note-off
*/
type adsr struct {
	attack  float64 // sec
	decay   float64 // sec
	sustain float64 // 0-1
	release float64 // sec
}
type adsrJSON struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

func newADSR() *adsr {
	return &adsr{attack: 0.01, decay: 0.1, sustain: 0.7, release: 0.5}
}

func (a *adsr) applyJSON(data json.RawMessage) {
	j := adsrJSON{Attack: a.attack, Decay: a.decay, Sustain: a.sustain, Release: a.release}
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to adsr")
		return
	}
	a.attack = nonNegative(j.Attack)
	a.decay = nonNegative(j.Decay)
	a.sustain = clamp(j.Sustain, 0, 1)
	a.release = nonNegative(j.Release)
}
func (a *adsr) toJSON() json.RawMessage {
	return toRawMessage(&adsrJSON{
		Attack:  a.attack,
		Decay:   a.decay,
		Sustain: a.sustain,
		Release: a.release,
	})
}
func (a *adsr) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "attack":
		a.attack = nonNegative(v)
	case "decay":
		a.decay = nonNegative(v)
	case "sustain":
		a.sustain = clamp(v, 0, 1)
	case "release":
		a.release = nonNegative(v)
	default:
		return fmt.Errorf("unknown adsr param %q", key)
	}
	return nil
}

// levelAt returns the attack/decay/sustain level t seconds after note-on.
// Zero-length segments are passed through instantly.
func (a *adsr) levelAt(t float64) float64 {
	if t < a.attack {
		return t / a.attack
	}
	if t < a.attack+a.decay {
		return 1.0 - ((t-a.attack)/a.decay)*(1.0-a.sustain)
	}
	return a.sustain
}

// valueAt returns the gain of n at the absolute sampleIndex.
func (a *adsr) valueAt(n *note, sampleIndex int64, sampleRate float64) float64 {
	if n.noteOnIndex == unsetIndex || sampleIndex < n.noteOnIndex {
		return 0
	}
	if !n.released() {
		t := float64(sampleIndex-n.noteOnIndex) / sampleRate
		return clamp(a.levelAt(t), 0, 1)
	}
	// released notes are never queried before the release starts
	if sampleIndex < n.noteOffIndex {
		return 0
	}
	if a.release <= 0 {
		return 0
	}
	releaseStartLevel := a.levelAt(float64(n.noteOffIndex-n.noteOnIndex) / sampleRate)
	releaseTime := float64(sampleIndex-n.noteOffIndex) / sampleRate
	value := releaseStartLevel * (1.0 - releaseTime/a.release)
	return clamp(value, 0, 1)
}
