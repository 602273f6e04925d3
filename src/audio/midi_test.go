package audio

import "testing"

func TestParseMidiMessage(t *testing.T) {
	m := parseMidiMessage([]byte{0x92, 60, 100})
	expectEqual(t, m.kind, midiNoteOn)
	expectEqual(t, m.channel, 2)
	expectEqual(t, m.note, 60)
	expectEqual(t, m.velocity, 100)

	m = parseMidiMessage([]byte{0x90, 60, 0})
	expectEqual(t, m.kind, midiNoteOff)
	expectEqual(t, m.note, 60)

	m = parseMidiMessage([]byte{0x80, 61, 64})
	expectEqual(t, m.kind, midiNoteOff)
	expectEqual(t, m.note, 61)

	m = parseMidiMessage([]byte{0xc0, 3})
	expectEqual(t, m.kind, midiProgramChange)
	expectEqual(t, m.program, 3)

	expectEqual(t, parseMidiMessage(nil).kind, midiUnknown)
	expectEqual(t, parseMidiMessage([]byte{0x90, 60}).kind, midiUnknown)
	m = parseMidiMessage([]byte{0xb1, 71, 127})
	expectEqual(t, m.kind, midiControlChange)
	expectEqual(t, m.channel, 1)
	expectEqual(t, m.control, 71)
	expectEqual(t, m.value, 127)
	expectEqual(t, parseMidiMessage([]byte{0xb0, 74}).kind, midiUnknown)
	expectEqual(t, parseMidiMessage([]byte{0xe0, 0, 64}).kind, midiUnknown)
}
