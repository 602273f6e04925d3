package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// ----- Sidechain Params ----- //

// SidechainParams configures how hard and how fast a target is ducked.
type SidechainParams struct {
	Threshold float64 `json:"threshold"` // trigger level, 0-1
	Ratio     float64 `json:"ratio"`
	Attack    float64 `json:"attack"`  // sec to duck fully
	Release   float64 `json:"release"` // sec to recover fully
}

// DefaultSidechainParams ...
func DefaultSidechainParams() SidechainParams {
	return SidechainParams{Threshold: 0.3, Ratio: 4.0, Attack: 0.001, Release: 0.2}
}

func (p *SidechainParams) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "threshold":
		p.Threshold = v
	case "ratio":
		p.Ratio = v
	case "attack":
		p.Attack = nonNegative(v)
	case "release":
		p.Release = nonNegative(v)
	default:
		return fmt.Errorf("unknown sidechain param %q", key)
	}
	return nil
}

// ----- Sidechain ----- //

type sidechain struct {
	params   SidechainParams
	envelope float64 // 0-1, 1 = no ducking
}

func newSidechain(p SidechainParams) *sidechain {
	return &sidechain{params: p, envelope: 1}
}

func (s *sidechain) applyJSON(data json.RawMessage) {
	p := s.params
	if err := json.Unmarshal(data, &p); err != nil {
		log.Println("failed to apply JSON to sidechain")
		return
	}
	s.params = p
}

// stepSize converts a full-scale transition time into a per-sample delta.
func stepSize(seconds float64, sampleRate float64) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1 / (seconds * sampleRate)
}

// process ducks target in place while trigger exceeds the threshold.
func (s *sidechain) process(trigger []float64, target []float64, sampleRate float64) {
	n := len(target)
	if len(trigger) < n {
		n = len(trigger)
	}
	attackStep := stepSize(s.params.Attack, sampleRate)
	releaseStep := stepSize(s.params.Release, sampleRate)
	for i := 0; i < n; i++ {
		level := trigger[i]
		if level < 0 {
			level = -level
		}
		if level > s.params.Threshold {
			s.envelope -= attackStep
		} else {
			s.envelope += releaseStep
		}
		s.envelope = clamp(s.envelope, 0, 1)
		target[i] *= s.envelope
	}
}
