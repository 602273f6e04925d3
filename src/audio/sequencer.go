package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultBPM          = 120.0
	defaultStepsPerBar  = 16
	defaultGate         = 0.8
	followSequencerChan = -1
)

// ----- Step ----- //

type step struct {
	active   bool
	note     int
	velocity int
}
type stepJSON struct {
	Active   bool   `json:"active"`
	Note     string `json:"note"`
	Velocity int    `json:"velocity"`
}

func newStep() step {
	return step{note: 60, velocity: 127}
}

// parseNoteName accepts names like "C4", "F#2" or "Bb-1", or a plain MIDI number.
func parseNoteName(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return clampMidiNote(n), nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	semitone := -1
	for i, name := range noteNames {
		if name == strings.ToUpper(s[:1]) {
			semitone = i
			break
		}
	}
	if semitone < 0 {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		semitone++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		semitone--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	return clampMidiNote((octave+1)*12 + semitone), nil
}

// ----- Track ----- //

type track struct {
	channel int // -1 = the groovebox's sequencer channel
	steps   []step
}
type trackJSON struct {
	Channel *int       `json:"channel,omitempty"`
	Steps   []stepJSON `json:"steps"`
}

// ----- Periodic Cue ----- //

// periodicCue wakes up at fixed offsets from its start time, cycling through
// intervals, so that sleeping late never accumulates drift.
type periodicCue struct {
	intervals []time.Duration
	index     int
	next      time.Time
}

func newPeriodicCue(intervals ...time.Duration) *periodicCue {
	return &periodicCue{intervals: intervals}
}

func (c *periodicCue) start(now time.Time) {
	if c.next.IsZero() {
		c.next = now
	}
}

func (c *periodicCue) sync(ctx context.Context) error {
	c.next = c.next.Add(c.intervals[c.index])
	c.index = (c.index + 1) % len(c.intervals)
	timer := time.NewTimer(time.Until(c.next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ----- Sequencer ----- //

type playedNote struct {
	channel int
	note    int
}

// Sequencer plays step patterns into a Groovebox.
type Sequencer struct {
	sync.Mutex
	groovebox *Groovebox
	bpm       float64
	gate      float64
	length    int
	tracks    []*track
	position  int
}

type sequencerJSON struct {
	BPM    float64     `json:"bpm"`
	Gate   float64     `json:"gate"`
	Length int         `json:"length"`
	Tracks []trackJSON `json:"tracks"`
}

// NewSequencer ...
func NewSequencer(g *Groovebox, bpm float64) *Sequencer {
	if bpm <= 0 {
		bpm = defaultBPM
	}
	return &Sequencer{
		groovebox: g,
		bpm:       bpm,
		gate:      defaultGate,
		length:    defaultStepsPerBar,
	}
}

// AddTrack adds an empty track playing into channel (-1 follows the
// sequencer channel) and returns its index.
func (s *Sequencer) AddTrack(channel int) int {
	s.Lock()
	defer s.Unlock()
	s.tracks = append(s.tracks, s.newTrack(channel))
	return len(s.tracks) - 1
}

func (s *Sequencer) newTrack(channel int) *track {
	t := &track{channel: channel, steps: make([]step, s.length)}
	for i := range t.steps {
		t.steps[i] = newStep()
	}
	return t
}

// SetStep activates the step at index with note and velocity.
func (s *Sequencer) SetStep(trackIndex int, index int, note int, velocity int) error {
	s.Lock()
	defer s.Unlock()
	t, err := s.track(trackIndex, index)
	if err != nil {
		return err
	}
	t.steps[index] = step{active: true, note: clampMidiNote(note), velocity: velocity}
	return nil
}

// ClearStep deactivates the step at index, keeping its note.
func (s *Sequencer) ClearStep(trackIndex int, index int) error {
	s.Lock()
	defer s.Unlock()
	t, err := s.track(trackIndex, index)
	if err != nil {
		return err
	}
	t.steps[index].active = false
	return nil
}

func (s *Sequencer) track(trackIndex int, index int) (*track, error) {
	if trackIndex < 0 || trackIndex >= len(s.tracks) {
		return nil, fmt.Errorf("no track %d", trackIndex)
	}
	if index < 0 || index >= s.length {
		return nil, fmt.Errorf("step out of range: %d", index)
	}
	return s.tracks[trackIndex], nil
}

// SetBPM ...
func (s *Sequencer) SetBPM(bpm float64) {
	if bpm <= 0 || math.IsNaN(bpm) {
		return
	}
	s.Lock()
	s.bpm = bpm
	s.Unlock()
}

func (s *Sequencer) stepInterval() float64 {
	return 60.0 / s.bpm / 4
}

// ApplyJSON replaces the pattern.
func (s *Sequencer) ApplyJSON(data []byte) error {
	s.Lock()
	defer s.Unlock()
	j := sequencerJSON{BPM: s.bpm, Gate: s.gate, Length: s.length}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	if j.Length <= 0 {
		return fmt.Errorf("invalid pattern length: %d", j.Length)
	}
	tracks := make([]*track, len(j.Tracks))
	for i, tj := range j.Tracks {
		channel := followSequencerChan
		if tj.Channel != nil {
			channel = *tj.Channel
		}
		t := &track{channel: channel, steps: make([]step, j.Length)}
		for k := range t.steps {
			t.steps[k] = newStep()
		}
		for k, sj := range tj.Steps {
			if k >= j.Length {
				break
			}
			st := newStep()
			st.active = sj.Active
			if sj.Velocity > 0 {
				st.velocity = sj.Velocity
			}
			if sj.Note != "" {
				n, err := parseNoteName(sj.Note)
				if err != nil {
					return fmt.Errorf("track %d step %d: %w", i, k, err)
				}
				st.note = n
			}
			t.steps[k] = st
		}
		tracks[i] = t
	}
	if j.BPM > 0 {
		s.bpm = j.BPM
	}
	s.gate = clamp(j.Gate, 0.01, 1)
	s.length = j.Length
	s.tracks = tracks
	s.position = 0
	return nil
}

// ToJSON ...
func (s *Sequencer) ToJSON() json.RawMessage {
	s.Lock()
	defer s.Unlock()
	j := sequencerJSON{BPM: s.bpm, Gate: s.gate, Length: s.length, Tracks: make([]trackJSON, len(s.tracks))}
	for i, t := range s.tracks {
		channel := t.channel
		j.Tracks[i] = trackJSON{Channel: &channel, Steps: make([]stepJSON, len(t.steps))}
		for k, st := range t.steps {
			j.Tracks[i].Steps[k] = stepJSON{Active: st.active, Note: noteName(st.note), Velocity: st.velocity}
		}
	}
	return toRawMessage(&j)
}

// noteOn plays the current step and returns what should be released.
func (s *Sequencer) noteOn() []playedNote {
	s.Lock()
	defer s.Unlock()
	var played []playedNote
	for _, t := range s.tracks {
		if s.position >= len(t.steps) {
			continue
		}
		st := t.steps[s.position]
		if !st.active {
			continue
		}
		if t.channel == followSequencerChan {
			s.groovebox.SequencerNoteOn(st.note, st.velocity)
		} else {
			s.groovebox.ChannelNoteOn(t.channel, st.note, st.velocity)
		}
		played = append(played, playedNote{channel: t.channel, note: st.note})
	}
	return played
}

func (s *Sequencer) noteOff(played []playedNote) {
	for _, p := range played {
		if p.channel == followSequencerChan {
			s.groovebox.SequencerNoteOff(p.note)
		} else {
			s.groovebox.ChannelNoteOff(p.channel, p.note)
		}
	}
}

func (s *Sequencer) advance() {
	s.Lock()
	s.position = (s.position + 1) % s.length
	s.Unlock()
}

func (s *Sequencer) timing() (onSec float64, offSec float64) {
	s.Lock()
	defer s.Unlock()
	interval := s.stepInterval()
	return interval * s.gate, interval * (1 - s.gate)
}

// Run plays the pattern in real time until ctx is done.
func (s *Sequencer) Run(ctx context.Context) error {
	on, off := s.timing()
	cue := newPeriodicCue(seconds(on), seconds(off))
	cue.start(time.Now())
	log.Println("start sequencer...")
	for {
		played := s.noteOn()
		err := cue.sync(ctx)
		s.noteOff(played)
		if err != nil {
			log.Println("sequencer stopped.")
			return nil
		}
		if err := cue.sync(ctx); err != nil {
			log.Println("sequencer stopped.")
			return nil
		}
		s.advance()
		if on2, off2 := s.timing(); on2 != on || off2 != off {
			on, off = on2, off2
			cue.intervals = []time.Duration{seconds(on), seconds(off)}
		}
	}
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// RenderLength returns the number of samples Render produces for loops.
func (s *Sequencer) RenderLength(loops int) int64 {
	sampleRate := s.groovebox.SampleRate()
	on, off := s.timing()
	s.Lock()
	total := loops * s.length
	s.Unlock()
	var clock float64
	for i := 0; i < total; i++ {
		clock += on * sampleRate
		clock += off * sampleRate
	}
	return int64(math.Round(clock))
}

// Render plays the pattern loops times on the sample clock, passing every
// generated block of at most blockSize samples to sink.
func (s *Sequencer) Render(loops int, blockSize int, sink func(block []float64) error) error {
	if blockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", blockSize)
	}
	sampleRate := s.groovebox.SampleRate()
	block := make([]float64, blockSize)
	var clock float64 // samples, fractional
	var rendered int64
	renderUntil := func(target float64) error {
		for rendered < int64(math.Round(target)) {
			n := int(int64(math.Round(target)) - rendered)
			if n > blockSize {
				n = blockSize
			}
			s.groovebox.Generate(block[:n])
			rendered += int64(n)
			if err := sink(block[:n]); err != nil {
				return err
			}
		}
		return nil
	}
	s.Lock()
	total := loops * s.length
	s.position = 0
	s.Unlock()
	for i := 0; i < total; i++ {
		on, off := s.timing()
		played := s.noteOn()
		clock += on * sampleRate
		if err := renderUntil(clock); err != nil {
			return err
		}
		s.noteOff(played)
		clock += off * sampleRate
		if err := renderUntil(clock); err != nil {
			return err
		}
		s.advance()
	}
	return nil
}
