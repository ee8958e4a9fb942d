// Package osc generates test signals for the demos and tests: a sine
// oscillator with optional vibrato and a linear glide between
// frequencies. Output is mono float32.
package osc

import "math"

const twoPi = math.Pi * 2

// Generator produces a sine wave whose frequency can wobble (vibrato) and
// slide (glide). The zero value is unusable; create one with New.
type Generator struct {
	sampleRate float64
	freq       float64
	amplitude  float64

	vibratoRate  float64 // Hz
	vibratoDepth float64 // Hz, peak deviation

	glideTarget float64
	glideStep   float64 // Hz per sample, 0 when idle

	phase    float64
	vibPhase float64
}

// New creates a generator at the given sample rate, frequency and
// amplitude.
func New(sampleRate, freqHz, amplitude float64) *Generator {
	return &Generator{
		sampleRate: sampleRate,
		freq:       freqHz,
		amplitude:  amplitude,
	}
}

// SetFrequency jumps immediately to freqHz and cancels any glide.
func (g *Generator) SetFrequency(freqHz float64) {
	g.freq = freqHz
	g.glideStep = 0
}

// Frequency returns the current base frequency in Hz.
func (g *Generator) Frequency() float64 { return g.freq }

// SetVibrato configures a sinusoidal frequency wobble: rate in Hz, depth
// as peak deviation in Hz. Zero depth disables it.
func (g *Generator) SetVibrato(rateHz, depthHz float64) {
	g.vibratoRate = rateHz
	g.vibratoDepth = depthHz
}

// GlideTo slides the base frequency linearly to freqHz over the given
// number of seconds.
func (g *Generator) GlideTo(freqHz, seconds float64) {
	if seconds <= 0 {
		g.SetFrequency(freqHz)
		return
	}
	g.glideTarget = freqHz
	g.glideStep = (freqHz - g.freq) / (seconds * g.sampleRate)
}

// Fill writes len(dst) mono samples.
func (g *Generator) Fill(dst []float32) {
	for i := range dst {
		if g.glideStep != 0 {
			g.freq += g.glideStep
			if (g.glideStep > 0 && g.freq >= g.glideTarget) ||
				(g.glideStep < 0 && g.freq <= g.glideTarget) {
				g.freq = g.glideTarget
				g.glideStep = 0
			}
		}
		f := g.freq
		if g.vibratoDepth != 0 {
			f += g.vibratoDepth * math.Sin(g.vibPhase)
			g.vibPhase += twoPi * g.vibratoRate / g.sampleRate
			if g.vibPhase >= twoPi {
				g.vibPhase -= twoPi
			}
		}
		dst[i] = float32(g.amplitude * math.Sin(g.phase))
		g.phase += twoPi * f / g.sampleRate
		if g.phase >= twoPi {
			g.phase -= twoPi
		}
	}
}
