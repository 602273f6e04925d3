package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jinjor/groovebox/src/audio"
	"golang.org/x/sync/errgroup"
)

var (
	configFile  = flag.String("config", "", "groovebox setup JSON (default setup if empty)")
	patternFile = flag.String("pattern", "", "step pattern JSON (demo beat if empty)")
	bpm         = flag.Float64("bpm", 120, "tempo")
	loops       = flag.Int("loops", 4, "number of times the pattern is played")
	sampleRate  = flag.Int("sample-rate", 44100, "output sample rate")
	blockSize   = flag.Int("block", 128, "samples per generate call")
)

func main() {
	flag.Parse()
	out := flag.Arg(0)
	if out == "" {
		log.Fatalln("usage: render [flags] out.wav")
	}
	log.SetFlags(log.Lshortfile)

	groovebox, err := loadGroovebox(float64(*sampleRate), *configFile)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	sequencer := audio.NewSequencer(groovebox, *bpm)
	if *patternFile != "" {
		data, err := os.ReadFile(*patternFile)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
		if err := sequencer.ApplyJSON(data); err != nil {
			log.Fatalf("error: %v\n", err)
		}
	} else if err := demoPattern(sequencer); err != nil {
		log.Fatalf("error: %v\n", err)
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer f.Close()
	length := sequencer.RenderLength(*loops)
	w := audio.NewWAVWriter(f, *sampleRate, length)

	blocks := make(chan []float64, 64)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(blocks)
		return sequencer.Render(*loops, *blockSize, func(block []float64) error {
			b := make([]float64, len(block))
			copy(b, block)
			select {
			case blocks <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	g.Go(func() error {
		for b := range blocks {
			if err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	if err := w.Finish(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Printf("wrote %s (%d samples)\n", out, length)
}

func loadGroovebox(sampleRate float64, path string) (*audio.Groovebox, error) {
	if path == "" {
		return audio.DefaultGroovebox(sampleRate), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return audio.NewGrooveboxFromJSON(sampleRate, data)
}

// demoPattern plays drums on channel 0 and a bass line on channel 1.
func demoPattern(s *audio.Sequencer) error {
	kick := s.AddTrack(0)
	snare := s.AddTrack(0)
	hats := s.AddTrack(0)
	bass := s.AddTrack(1)
	for i := 0; i < 16; i++ {
		if i%4 == 0 {
			if err := s.SetStep(kick, i, 36, 120); err != nil {
				return err
			}
		}
		if i%8 == 4 {
			if err := s.SetStep(snare, i, 38, 100); err != nil {
				return err
			}
		}
		if i%2 == 0 {
			if err := s.SetStep(hats, i, 42, 80); err != nil {
				return err
			}
		}
	}
	for i, note := range map[int]int{0: 48, 3: 48, 6: 51, 10: 46} {
		if err := s.SetStep(bass, i, note, 100); err != nil {
			return err
		}
	}
	return nil
}
