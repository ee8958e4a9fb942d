// Command retune_demo synthesizes an out-of-tune test signal, runs it
// through the correction engine offline, and writes or plays the result.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cbegin/retune-go"
	"github.com/cbegin/retune-go/internal/audio"
	"github.com/cbegin/retune-go/internal/osc"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "sample rate in Hz")
		seconds    = flag.Float64("seconds", 3, "signal length")
		freq       = flag.Float64("freq", 452, "base frequency in Hz (452 sits sharp of A4)")
		vibrato    = flag.Float64("vibrato", 12, "vibrato depth in Hz (0 = none)")
		glideTo    = flag.Float64("glide-to", 0, "glide target frequency in Hz (0 = none)")
		scaleName  = flag.String("scale", "chromatic", "scale: chromatic|major|minor|pentatonic|blues|dorian|mixolydian")
		key        = flag.Int("key", 60, "key center as a MIDI note (60 = middle C)")
		strength   = flag.Float64("strength", 1.0, "correction strength 0..1")
		modeName   = flag.String("mode", "full_autotune", "mode: bypass|pitch_correction|quantization|full_autotune")
		configPath = flag.String("config", "", "YAML parameter file (overrides the flags above)")
		wavPath    = flag.String("wav", "", "write the corrected signal to this WAV file")
		play       = flag.Bool("play", false, "play the corrected signal on the default device")
	)
	flag.Parse()

	params, err := resolveParams(*configPath, *sampleRate, *scaleName, *key, *strength, *modeName)
	if err != nil {
		log.Fatal(err)
	}

	gen := osc.New(float64(params.SampleRate), *freq, 0.5)
	if *vibrato > 0 {
		gen.SetVibrato(5, *vibrato)
	}
	if *glideTo > 0 {
		gen.GlideTo(*glideTo, *seconds)
	}
	input := make([]float32, int(float64(params.SampleRate)*(*seconds)))
	gen.Fill(input)

	output, results, err := retune.ProcessBuffer(input, params)
	if err != nil {
		log.Fatal(err)
	}
	printSummary(results, params)

	if *wavPath != "" {
		f, err := os.Create(*wavPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := retune.WriteWAV(f, output, params.SampleRate, params.Channels); err != nil {
			f.Close()
			log.Fatal(err)
		}
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *wavPath)
	}

	if *play {
		src := &bufferSource{samples: output}
		out, err := audio.NewOutput(params.SampleRate, src)
		if err != nil {
			log.Fatal(err)
		}
		out.Play()
		for out.IsPlaying() && !src.Finished() {
			time.Sleep(50 * time.Millisecond)
		}
		out.Stop()
	}
}

func resolveParams(configPath string, sampleRate int, scaleName string, key int, strength float64, modeName string) (retune.Params, error) {
	if configPath != "" {
		return retune.LoadParams(configPath)
	}
	p := retune.DefaultParams(sampleRate)
	p.Scale = retune.Scale(strings.ToLower(scaleName))
	p.KeyCenter = key
	p.CorrectionStrength = strength
	p.QuantizeStrength = strength
	p.Mode = retune.Mode(strings.ToLower(modeName))
	return p, nil
}

func printSummary(results []retune.Result, params retune.Params) {
	var voiced int
	var sumDet, sumCorr float64
	for _, r := range results {
		if r.DetectedPitchHz > 0 {
			voiced++
			sumDet += r.DetectedPitchHz
			sumCorr += r.CorrectedPitchHz
		}
	}
	fmt.Printf("%d blocks processed, %d voiced\n", len(results), voiced)
	if voiced > 0 {
		fmt.Printf("mean detected %.1f Hz -> mean target %.1f Hz (%s, key %d)\n",
			sumDet/float64(voiced), sumCorr/float64(voiced), params.Scale, params.KeyCenter)
	}
}

// bufferSource feeds a prerendered mono buffer to the audio device and
// reports when it runs out.
type bufferSource struct {
	samples []float32
	pos     int
}

func (b *bufferSource) Fill(dst []float32) {
	n := copy(dst, b.samples[b.pos:])
	b.pos += n
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (b *bufferSource) Finished() bool { return b.pos >= len(b.samples) }
