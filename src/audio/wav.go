package audio

import (
	"bufio"
	"fmt"
	"io"

	wav "github.com/youpy/go-wav"
)

// ----- WAVE ----- //

// WAVWriter writes mono blocks as 16-bit stereo PCM. The header carries the
// sample count, so it has to be known before the first block.
type WAVWriter struct {
	bw        *bufio.Writer
	w         *wav.Writer
	samples   []wav.Sample
	remaining int64
}

// NewWAVWriter writes the header for numSamples frames.
func NewWAVWriter(w io.Writer, sampleRate int, numSamples int64) *WAVWriter {
	bw := bufio.NewWriter(w)
	return &WAVWriter{
		bw:        bw,
		w:         wav.NewWriter(bw, uint32(numSamples), channelNum, uint32(sampleRate), bitDepthInBytes*8),
		remaining: numSamples,
	}
}

// Write appends block to both channels, clipping to [-1, 1].
func (w *WAVWriter) Write(block []float64) error {
	if int64(len(block)) > w.remaining {
		return fmt.Errorf("too many samples: %d left, got %d", w.remaining, len(block))
	}
	if cap(w.samples) < len(block) {
		w.samples = make([]wav.Sample, len(block))
	}
	samples := w.samples[:len(block)]
	for i, v := range block {
		b := int(toInt16(v))
		samples[i] = wav.Sample{Values: [2]int{b, b}}
	}
	w.remaining -= int64(len(block))
	return w.w.WriteSamples(samples)
}

// Finish pads the data chunk with silence up to the declared length and flushes.
func (w *WAVWriter) Finish() error {
	if w.remaining > 0 {
		silence := make([]float64, samplesPerCycle)
		for w.remaining > 0 {
			n := int64(len(silence))
			if n > w.remaining {
				n = w.remaining
			}
			if err := w.Write(silence[:n]); err != nil {
				return err
			}
		}
	}
	return w.bw.Flush()
}
