package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/groovebox/src/audio"
	"golang.org/x/sync/errgroup"
)

var (
	sockFileName = flag.String("sock", "/tmp/groovebox.sock", "unix socket for commands and reports")
	configFile   = flag.String("config", "", "groovebox setup JSON (default setup if empty)")
	presetDir    = flag.String("presets", "", "directory of preset JSON files")
	patternFile  = flag.String("sequencer", "", "step pattern JSON to play")
	bpm          = flag.Float64("bpm", 120, "sequencer tempo")
	midiIn       = flag.Int("midi-in", 0, "MIDI IN port (-1 to disable)")
	sampleRate   = flag.Int("sample-rate", 48000, "output sample rate")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	groovebox, err := loadGroovebox(float64(*sampleRate), *configFile)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	var sequencer *audio.Sequencer
	if *patternFile != "" {
		sequencer = audio.NewSequencer(groovebox, *bpm)
		data, err := os.ReadFile(*patternFile)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
		if err := sequencer.ApplyJSON(data); err != nil {
			log.Fatalf("error: %v\n", err)
		}
	}
	a := audio.NewAudio(groovebox, sequencer, *presetDir)
	defer a.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Start(ctx)
	})
	if *midiIn >= 0 {
		g.Go(func() error {
			return forwardMidiIn(ctx, *midiIn, a)
		})
	}
	if sequencer != nil {
		g.Go(func() error {
			return sequencer.Run(ctx)
		})
	}
	g.Go(func() error {
		return withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return receiveCommands(ctx, conn, a.CommandCh)
			})
			g.Go(func() error {
				return sendReports(ctx, conn, a)
			})
			return g.Wait()
		})
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
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

func forwardMidiIn(ctx context.Context, port int, a *audio.Audio) error {
	for data := range audio.ListenToMidiIn(ctx, port) {
		a.AddMidiEvent(data)
	}
	log.Println("forwardMidiIn() ended.")
	return nil
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	log.Printf("start listening...\n")
	conn, err := listener.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return nil
		default:
			return err
		}
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			select {
			case <-ctx.Done():
				break loop
			default:
				return err
			}
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			log.Printf("invalid command %q: %v\n", string(line), err)
			line = []byte{}
			continue
		}
		commandCh <- command
		log.Printf("received: %s\n", string(line))
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func sendReports(ctx context.Context, conn net.Conn, a *audio.Audio) error {
	t := time.NewTicker(time.Second / 30)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if a.Changes.Has("data") || a.Changes.Has("pattern") {
				a.Changes.Delete("data")
				a.Changes.Delete("pattern")
				if _, err := conn.Write(append([]byte("data "), append(a.ToJSON(), '\n')...)); err != nil {
					return err
				}
			}
			result := a.GetFFT()
			s := "fft"
			for _, value := range result {
				s += " " + strconv.FormatFloat(value, 'f', 6, 64)
			}
			peak, rms := a.GetLevels()
			s += "\nlevel " + strconv.FormatFloat(peak, 'f', 6, 64) + " " + strconv.FormatFloat(rms, 'f', 6, 64)
			if _, err := conn.Write([]byte(s + "\n")); err != nil {
				select {
				case <-ctx.Done():
					break loop
				default:
					return err
				}
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
