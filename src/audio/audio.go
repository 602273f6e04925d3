package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"sync"

	"github.com/hajimehoshi/oto"
)

const (
	defaultSampleRate = 48000
	channelNum        = 2
	bitDepthInBytes   = 2
	samplesPerCycle   = 1024
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const baseFreq = 440.0
const (
	defaultVolume    = 0.8
	volumeTransition = 20.0 // ms
)

// ----- Utility ----- //

func positiveMod(a float64, b float64) float64 {
	if b < 0 {
		panic("b should not be negative")
	}
	for a < 0 {
		a += b
	}
	return math.Mod(a, b)
}
func clamp(v float64, min float64, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

// mixInto adds src*gain to dst and reports whether src had any non-zero sample.
func mixInto(dst []float64, src []float64, gain float64) bool {
	audible := false
	for i, v := range src {
		if v != 0 {
			audible = true
			dst[i] += v * gain
		}
	}
	return audible
}
func scaleInPlace(samples []float64, gain float64) {
	for i := range samples {
		samples[i] *= gain
	}
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// ----- Changes ----- //

// Changes ...
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- Audio ----- //

// Audio pulls blocks from a Groovebox for the audio device and applies
// live commands to it.
type Audio struct {
	sync.Mutex
	ctx        context.Context
	sampleRate float64
	otoContext *oto.Context
	CommandCh  chan []string
	Changes    *Changes
	groovebox  *Groovebox
	sequencer  *Sequencer
	presets    *presetManager
	echoParams *echoParams
	echo       *echo
	volume     *transitiveValue
	spectrum   *spectrum
	block      []float64
	pos        int64
	out        []float64 // length: fftSize
	fftResult  []float64 // length: fftSize
}

var _ io.Reader = (*Audio)(nil)

type audioJSON struct {
	Volume    float64         `json:"volume"`
	Echo      json.RawMessage `json:"echo"`
	Groovebox json.RawMessage `json:"groovebox,omitempty"`
	Sequencer json.RawMessage `json:"sequencer,omitempty"`
}

// NewAudio wraps g. The device is opened by Start, so an Audio can also be
// read directly. seq and presetDir are optional.
func NewAudio(g *Groovebox, seq *Sequencer, presetDir string) *Audio {
	sampleRate := g.SampleRate()
	commandCh := make(chan []string, 256)
	audio := &Audio{
		ctx:        context.Background(),
		sampleRate: sampleRate,
		CommandCh:  commandCh,
		Changes: &Changes{
			dict: make(map[string]struct{}),
		},
		groovebox:  g,
		sequencer:  seq,
		echoParams: newEchoParams(),
		echo:       newEcho(sampleRate),
		volume:     newTransitiveValue(sampleRate, defaultVolume),
		spectrum:   newSpectrum(sampleRate, fftSize),
		block:      make([]float64, samplesPerCycle),
		out:        make([]float64, fftSize),
		fftResult:  make([]float64, fftSize),
	}
	if presetDir != "" {
		audio.presets = newPresetManager(presetDir)
	}
	go processCommands(audio, commandCh)
	return audio
}

// ApplyJSON applies volume and echo settings.
func (a *Audio) ApplyJSON(data []byte) {
	a.Lock()
	defer a.Unlock()
	j := audioJSON{Volume: a.volume.targetValue}
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to Audio", err)
		return
	}
	a.volume.linear(volumeTransition, clamp(j.Volume, 0, 1))
	if j.Echo != nil {
		a.echoParams.applyJSON(j.Echo)
		a.echo.applyParams(a.echoParams)
	}
}

// ToJSON ...
func (a *Audio) ToJSON() []byte {
	bytes, err := json.Marshal(a.toJSON())
	if err != nil {
		panic(err)
	}
	return bytes
}

func (a *Audio) toJSON() json.RawMessage {
	a.Lock()
	j := audioJSON{
		Volume: a.volume.targetValue,
		Echo:   a.echoParams.toJSON(),
	}
	a.Unlock()
	j.Groovebox = a.groovebox.ToJSON()
	if a.sequencer != nil {
		j.Sequencer = a.sequencer.ToJSON()
	}
	return toRawMessage(&j)
}

func (a *Audio) Read(buf []byte) (int, error) {
	a.Lock()
	defer a.Unlock()
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
	}
	total := len(buf) / bytesPerSample
	for done := 0; done < total; {
		n := total - done
		if n > samplesPerCycle {
			n = samplesPerCycle
		}
		block := a.block[:n]
		a.render(block)
		dst := buf[done*bytesPerSample : (done+n)*bytesPerSample]
		writeBuffer(block, 0, dst, 0)
		writeBuffer(block, 0, dst, 1)
		done += n
	}
	return total * bytesPerSample, nil
}

// render produces the master output: mix, echo, then volume.
func (a *Audio) render(block []float64) {
	a.groovebox.Generate(block)
	a.echo.process(block)
	a.volume.applyTo(block)
	for _, v := range block {
		a.out[a.pos%fftSize] = v
		a.pos++
	}
}

// writeBuffer converts out to 16-bit samples of channel ch, clipping to [-1, 1].
func writeBuffer(out []float64, outOffset int64, buf []byte, ch int) {
	sampleLength := int(len(buf) / bytesPerSample)
	for i := 0; i < sampleLength; i++ {
		b := toInt16(out[outOffset+int64(i)])
		buf[bytesPerSample*i+2*ch] = byte(b)
		buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
	}
}

func toInt16(value float64) int16 {
	if !isFinite(value) {
		return 0
	}
	const max = 32767
	return int16(clamp(value, -1, 1) * max)
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("command %v failed: %v", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func parseInts(args []string) ([]int, error) {
	values := make([]int, len(args))
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func expectArgs(command []string, n int) error {
	if len(command) != n {
		return fmt.Errorf("%s expects %d arguments but got %v", command[0], n-1, command[1:])
	}
	return nil
}

func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	switch command[0] {
	case "set":
		// set <channel> <path...> <value>
		if len(command) < 4 {
			return fmt.Errorf("invalid set command %v", command)
		}
		instrument, err := a.instrument(command[1])
		if err != nil {
			return err
		}
		path := command[2 : len(command)-1]
		if err := instrument.Set(path, command[len(command)-1]); err != nil {
			return err
		}
		a.Changes.Add("data")
	case "preset":
		// preset <channel> <name>
		if err := expectArgs(command, 3); err != nil {
			return err
		}
		if a.presets == nil {
			return fmt.Errorf("no preset directory")
		}
		instrument, err := a.instrument(command[1])
		if err != nil {
			return err
		}
		if err := a.presets.applyTo(command[2], instrument); err != nil {
			return err
		}
		a.Changes.Add("data")
	case "note_on":
		if len(command) != 2 && len(command) != 3 {
			return fmt.Errorf("invalid note_on command %v", command)
		}
		values, err := parseInts(command[1:])
		if err != nil {
			return err
		}
		velocity := 127
		if len(values) == 2 {
			velocity = values[1]
		}
		a.groovebox.NoteOn(values[0], velocity)
	case "note_off":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		note, err := strconv.Atoi(command[1])
		if err != nil {
			return err
		}
		a.groovebox.NoteOff(note)
	case "channel", "sequencer_channel":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		channel, err := strconv.Atoi(command[1])
		if err != nil {
			return err
		}
		if command[0] == "channel" {
			a.groovebox.ChangeChannel(channel)
		} else {
			a.groovebox.ChangeSequencerChannel(channel)
		}
		a.Changes.Add("data")
	case "sidechain":
		if err := a.updateSidechain(command[1:]); err != nil {
			return err
		}
		a.Changes.Add("data")
	case "volume":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(command[1], 64)
		if err != nil {
			return err
		}
		a.Lock()
		a.volume.linear(volumeTransition, clamp(v, 0, 1))
		a.Unlock()
		a.Changes.Add("data")
	case "echo":
		if err := expectArgs(command, 3); err != nil {
			return err
		}
		a.Lock()
		err := a.echoParams.set(command[1], command[2])
		if err == nil {
			a.echo.applyParams(a.echoParams)
		}
		a.Unlock()
		if err != nil {
			return err
		}
		a.Changes.Add("data")
	case "seq":
		if a.sequencer == nil {
			return fmt.Errorf("sequencer is not running")
		}
		if err := a.updateSequencer(command[1:]); err != nil {
			return err
		}
		a.Changes.Add("pattern")
	case "spectrum":
		// spectrum window <name>
		if err := expectArgs(command, 3); err != nil {
			return err
		}
		w, ok := windowFuncs[command[2]]
		if command[1] != "window" || !ok {
			return fmt.Errorf("invalid spectrum command %v", command)
		}
		a.Lock()
		a.spectrum.window = w
		a.Unlock()
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

func (a *Audio) instrument(channel string) (Instrument, error) {
	index, err := strconv.Atoi(channel)
	if err != nil {
		return nil, err
	}
	instrument, ok := a.groovebox.Instrument(index)
	if !ok {
		return nil, fmt.Errorf("no instrument at channel %d", index)
	}
	return instrument, nil
}

// updateSidechain handles "<trigger> <target>", "set <target> <key> <value>" and "off <target>".
func (a *Audio) updateSidechain(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty sidechain command")
	}
	switch args[0] {
	case "set":
		if len(args) != 4 {
			return fmt.Errorf("invalid sidechain command %v", args)
		}
		target, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		return a.groovebox.setSidechainParam(target, args[2], args[3])
	case "off":
		if len(args) != 2 {
			return fmt.Errorf("invalid sidechain command %v", args)
		}
		target, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		a.groovebox.RemoveSidechain(target)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("invalid sidechain command %v", args)
	}
	values, err := parseInts(args)
	if err != nil {
		return err
	}
	a.groovebox.SetupSidechain(values[0], values[1], DefaultSidechainParams())
	return nil
}

// updateSequencer handles "step <track> <index> <note> <velocity>",
// "clear <track> <index>" and "bpm <value>".
func (a *Audio) updateSequencer(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty seq command")
	}
	switch args[0] {
	case "step":
		if len(args) != 5 {
			return fmt.Errorf("invalid seq command %v", args)
		}
		note, err := parseNoteName(args[3])
		if err != nil {
			return err
		}
		values, err := parseInts([]string{args[1], args[2], args[4]})
		if err != nil {
			return err
		}
		return a.sequencer.SetStep(values[0], values[1], note, values[2])
	case "clear":
		if len(args) != 3 {
			return fmt.Errorf("invalid seq command %v", args)
		}
		values, err := parseInts(args[1:])
		if err != nil {
			return err
		}
		return a.sequencer.ClearStep(values[0], values[1])
	case "bpm":
		if len(args) != 2 {
			return fmt.Errorf("invalid seq command %v", args)
		}
		bpm, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		a.sequencer.SetBPM(bpm)
		return nil
	}
	return fmt.Errorf("unknown seq command %v", args[0])
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	if a.otoContext == nil {
		return nil
	}
	return a.otoContext.Close()
}

// Start opens the audio device and blocks until ctx is done.
func (a *Audio) Start(ctx context.Context) error {
	otoContext, err := oto.NewContext(int(a.sampleRate), channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return err
	}
	a.otoContext = otoContext
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.Lock()
	a.ctx = ctx
	a.Unlock()

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// GetFFT returns the spectrum of the last fftSize output samples.
func (a *Audio) GetFFT() []float64 {
	a.Lock()
	defer a.Unlock()
	// out:       | 4 | 1 | 2 | 3 |
	// offset:        ^
	// fftResult: | 1 | 2 | 3 | 4 |
	offset := a.pos % fftSize
	copy(a.fftResult, a.out[offset:])
	copy(a.fftResult[fftSize-offset:], a.out[:offset])
	return a.spectrum.magnitudes(a.fftResult)
}

// GetLevels returns the peak and RMS level of the last fftSize output samples.
func (a *Audio) GetLevels() (float64, float64) {
	a.Lock()
	defer a.Unlock()
	return peak(a.out), rms(a.out)
}

// AddMidiEvent applies a raw MIDI message.
func (a *Audio) AddMidiEvent(data []byte) {
	m := parseMidiMessage(data)
	switch m.kind {
	case midiNoteOn:
		log.Printf("got note-on: %s %d\n", noteName(m.note), m.velocity)
		a.groovebox.NoteOn(m.note, m.velocity)
	case midiNoteOff:
		log.Printf("got note-off: %s\n", noteName(m.note))
		a.groovebox.NoteOff(m.note)
	case midiProgramChange:
		log.Printf("got program change: %d\n", m.program)
		a.groovebox.ChangeChannel(m.program)
		a.Changes.Add("data")
	case midiControlChange:
		key := ""
		switch m.control {
		case ccLowPassCutoff:
			key = "low_pass_cutoff"
		case ccHighPassCutoff:
			key = "high_pass_cutoff"
		default:
			return
		}
		delta := -cutoffNudge
		if m.value == ccIncrement {
			delta = cutoffNudge
		}
		cutoff, err := a.groovebox.NudgeCutoff(key, delta)
		if err != nil {
			log.Printf("control change %d ignored: %v\n", m.control, err)
			return
		}
		log.Printf("%s: %.2f Hz\n", key, cutoff)
		a.Changes.Add("data")
	}
}
