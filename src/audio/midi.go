package audio

import (
	"context"
	"log"

	"gitlab.com/gomidi/rtmididrv"
)

// ----- MIDI Message ----- //

const (
	midiUnknown = iota
	midiNoteOn
	midiNoteOff
	midiProgramChange
	midiControlChange
)

// relative encoders send 127 to turn up and anything else to turn down
const (
	ccLowPassCutoff  = 71
	ccHighPassCutoff = 74
	ccIncrement      = 127
	cutoffNudge      = 10.0 // Hz
)

type midiMessage struct {
	kind     int
	channel  int
	note     int
	velocity int
	program  int
	control  int
	value    int
}

// parseMidiMessage understands note-on, note-off, control change and program change.
// A note-on with velocity 0 is a note-off.
func parseMidiMessage(data []byte) midiMessage {
	if len(data) == 0 {
		return midiMessage{kind: midiUnknown}
	}
	status := data[0] >> 4
	m := midiMessage{kind: midiUnknown, channel: int(data[0] & 0x0f)}
	switch {
	case status == 0x8 && len(data) >= 3:
		m.kind = midiNoteOff
		m.note = int(data[1])
	case status == 0x9 && len(data) >= 3 && data[2] == 0:
		m.kind = midiNoteOff
		m.note = int(data[1])
	case status == 0x9 && len(data) >= 3:
		m.kind = midiNoteOn
		m.note = int(data[1])
		m.velocity = int(data[2])
	case status == 0xb && len(data) >= 3:
		m.kind = midiControlChange
		m.control = int(data[1])
		m.value = int(data[2])
	case status == 0xc && len(data) >= 2:
		m.kind = midiProgramChange
		m.program = int(data[1])
	}
	return m
}

// ----- MIDI IN ----- //

// ListenToMidiIn forwards raw messages of the port-th MIDI input until ctx is done.
func ListenToMidiIn(ctx context.Context, port int) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		if port < 0 || port >= len(ins) {
			log.Printf("WARN: MIDI IN %d not found\n", port)
			return
		}
		in := ins[port]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := make([]byte, len(data))
			copy(msg, data)
			select {
			case ch <- msg:
			default:
				log.Println("MIDI IN buffer is full")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}
