// Command retune_live runs the correction engine between the default
// input and output devices: microphone in, corrected signal out. The
// capture callback feeds the engine's input ring, a worker drains blocks
// through the pipeline, and the playback side reads the output ring.
package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/cbegin/retune-go"
)

// CLI defines the command-line interface.
type CLI struct {
	SampleRate int     `default:"44100" help:"Sample rate in Hz"`
	Scale      string  `default:"major" help:"Scale: chromatic|major|minor|pentatonic|blues|dorian|mixolydian"`
	Key        int     `default:"60" help:"Key center as a MIDI note (60 = middle C)"`
	Strength   float64 `default:"1.0" help:"Correction strength 0..1"`
	Mode       string  `default:"full_autotune" help:"Mode: bypass|pitch_correction|quantization|full_autotune"`
	Config     string  `help:"YAML parameter file (overrides the flags above)" type:"existingfile" optional:""`
	Verbose    bool    `short:"v" help:"Log every voiced block"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("retune_live"),
		kong.Description("Real-time pitch correction from microphone to speakers"),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if cli.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	params, err := resolveParams(cli)
	if err != nil {
		logger.Fatal("invalid parameters", "err", err)
	}
	params.Channels = 1

	engine, err := retune.NewWithParams(params)
	if err != nil {
		logger.Fatal("engine construction failed", "err", err)
	}

	if err := portaudio.Initialize(); err != nil {
		logger.Fatal("portaudio init failed", "err", err)
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(params.SampleRate), params.BufferSize,
		func(in, out []float32) {
			engine.Feed(in, len(in))
			n := engine.Drain(out, len(out))
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
		})
	if err != nil {
		logger.Fatal("open stream failed", "err", err)
	}
	defer stream.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	quit := make(chan struct{})
	go processLoop(engine, logger, quit)

	if err := stream.Start(); err != nil {
		logger.Fatal("start stream failed", "err", err)
	}
	logger.Info("running", "mode", params.Mode, "scale", params.Scale, "key", params.KeyCenter,
		"buffer", params.BufferSize, "rate", params.SampleRate)

	<-sig
	close(quit)
	if err := stream.Stop(); err != nil {
		logger.Error("stop stream failed", "err", err)
	}
	m := engine.PerformanceMetrics()
	logger.Info("stopped", "avg_latency_ms", m.AverageLatencyMS,
		"cpu_percent", m.CPUUsagePercent, "frames", m.FramesProcessed)
}

// processLoop drains buffered blocks through the pipeline until quit is
// closed.
func processLoop(engine *retune.Engine, logger *log.Logger, quit <-chan struct{}) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			for {
				res, ok := engine.ProcessPending()
				if !ok {
					break
				}
				if res.DetectedPitchHz > 0 {
					note := engine.NearestNote(res.DetectedPitchHz)
					logger.Debug("block",
						"detected_hz", res.DetectedPitchHz,
						"target_hz", res.CorrectedPitchHz,
						"midi", note.MIDINote,
						"cents", note.Cents,
						"confidence", res.Confidence)
				}
			}
		}
	}
}

func resolveParams(cli *CLI) (retune.Params, error) {
	if cli.Config != "" {
		return retune.LoadParams(cli.Config)
	}
	p := retune.DefaultParams(cli.SampleRate)
	p.Scale = retune.Scale(strings.ToLower(cli.Scale))
	p.KeyCenter = cli.Key
	p.CorrectionStrength = cli.Strength
	p.QuantizeStrength = cli.Strength
	p.Mode = retune.Mode(strings.ToLower(cli.Mode))
	return p, nil
}
