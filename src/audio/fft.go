package audio

import (
	"log"
	"math"
	"math/cmplx"
)

const fftSize = 2048 // multiple of samplesPerCycle

// ----- FFT ----- //

type fft struct {
	bitReverseTable []int
	wTable          []complex128
	inverse         bool
	buf             []complex128
}

func newFFT(length int, inverse bool) *fft {
	if length <= 0 || length&(length-1) != 0 {
		log.Panicf("length should be a power of 2: %v", length)
	}
	return &fft{
		bitReverseTable: makeBitReverseTable(length),
		wTable:          makeWTable(length),
		inverse:         inverse,
		buf:             make([]complex128, length),
	}
}
func makeBitReverseTable(n int) []int {
	array := make([]int, n)
	for i := 0; i < n; i++ {
		array[i] = bitReverse(i, n)
	}
	return array
}
func bitReverse(k, n int) int {
	m := 0
	for ; n > 1; n = n >> 1 {
		m = m<<1 + k&1
		k = k >> 1
	}
	return m
}
func makeWTable(n int) []complex128 {
	array := make([]complex128, n)
	w := -2.0 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		array[i] = cmplx.Exp(complex(0, w*float64(i)))
	}
	return array
}

func (f *fft) calc(x []complex128) {
	n := len(x)
	if n != len(f.bitReverseTable) {
		log.Panicf("length should be %v", len(f.bitReverseTable))
	}
	for i := 0; i < n; i++ {
		rev := f.bitReverseTable[i]
		if i < rev {
			x[i], x[rev] = x[rev], x[i]
		}
	}
	for m := 1; m < n; m = m << 1 {
		step := m << 1
		for k := 0; k < m; k++ {
			idx := n / step * k
			w := f.wTable[idx]
			if f.inverse {
				w = cmplx.Conj(w)
			}
			for i := k; i < n; i += step {
				j := i + m
				tmp := x[j] * w
				x[j] = x[i] - tmp
				x[i] = x[i] + tmp
			}
		}
	}
	if f.inverse {
		for i := 0; i < n; i++ {
			x[i] /= complex(float64(n), 0)
		}
	}
}

func (f *fft) load(x []float64) {
	for i, v := range x {
		f.buf[i] = complex(v, 0)
	}
}

// calcReal replaces x with the real part of its transform.
func (f *fft) calcReal(x []float64) {
	f.load(x)
	f.calc(f.buf)
	for i := range x {
		x[i] = real(f.buf[i])
	}
}

// calcAbs replaces x with the magnitude of its transform.
func (f *fft) calcAbs(x []float64) {
	f.load(x)
	f.calc(f.buf)
	for i := range x {
		x[i] = cmplx.Abs(f.buf[i])
	}
}

// ----- Spectrum ----- //

// spectrum measures rendered blocks. It is used by the spectrum reports of
// the live host and by tests.
type spectrum struct {
	sampleRate float64
	fft        *fft
	window     windowFunc
	data       []float64
}

func newSpectrum(sampleRate float64, size int) *spectrum {
	return &spectrum{
		sampleRate: sampleRate,
		fft:        newFFT(size, false),
		window:     han,
		data:       make([]float64, size),
	}
}

// magnitudes returns the normalized magnitudes of the first len/2 bins.
// Short input is zero padded.
func (s *spectrum) magnitudes(samples []float64) []float64 {
	n := len(s.data)
	clear(s.data)
	copy(s.data, samples)
	s.window(s.data)
	s.fft.calcAbs(s.data)
	for i := range s.data {
		s.data[i] = s.data[i] * 2 / float64(n)
	}
	return s.data[:n/2]
}

func (s *spectrum) binFrequency(bin int) float64 {
	return float64(bin) * s.sampleRate / float64(len(s.data))
}

func peak(samples []float64) float64 {
	p := 0.0
	for _, v := range samples {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
