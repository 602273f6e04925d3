package audio

import (
	"math"
)

type windowFunc func(data []float64)

func han(data []float64) {
	n := len(data)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		w := 0.5 - 0.5*math.Cos(2.0*math.Pi*x)
		data[i] = data[i] * w
	}
}

func blackman(data []float64) {
	n := len(data)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		w := 0.42 - 0.5*math.Cos(2.0*math.Pi*x) + 0.08*math.Cos(4.0*math.Pi*x)
		data[i] = data[i] * w
	}
}

var windowFuncs = map[string]windowFunc{
	"han":      han,
	"blackman": blackman,
}
