// Package shift implements a time-domain pitch shifter. A fractional read
// index resamples each block from the detected period toward the target
// period, and an attack/release envelope follower keeps the output level
// tracking the input.
package shift

import "math"

// Ratio bounds: a full octave in either direction. Detected/target pairs
// asking for more are clamped rather than rejected.
const (
	minRatio = 0.5
	maxRatio = 2.0
)

// shiftConfidence is the fixed confidence reported for a resampled block;
// the linear interpolator has no quality measure of its own.
const shiftConfidence = 0.8

// Shifter rewrites a block so that its apparent fundamental moves from the
// detected frequency toward a target frequency. Two registers persist
// across blocks: the fractional read phase and the amplitude envelope.
// Not safe for concurrent use.
type Shifter struct {
	sampleRate  float64
	attackTime  float64
	releaseTime float64
	attackCoef  float32
	releaseCoef float32

	preserveFormants bool

	phase float64
	env   float32
}

// New creates a shifter with 10 ms attack and 100 ms release envelope
// times.
func New(sampleRate float64) *Shifter {
	s := &Shifter{sampleRate: sampleRate}
	s.SetEnvelopeTimes(0.01, 0.1)
	return s
}

// SetEnvelopeTimes sets the envelope follower attack and release times in
// seconds and recomputes the per-sample coefficients.
func (s *Shifter) SetEnvelopeTimes(attack, release float64) {
	if attack <= 0 {
		attack = 0.001
	}
	if release <= 0 {
		release = 0.001
	}
	s.attackTime = attack
	s.releaseTime = release
	s.attackCoef = float32(1 - math.Exp(-1/(attack*s.sampleRate)))
	s.releaseCoef = float32(1 - math.Exp(-1/(release*s.sampleRate)))
}

// EnvelopeTimes returns the configured attack and release times in
// seconds.
func (s *Shifter) EnvelopeTimes() (attack, release float64) {
	return s.attackTime, s.releaseTime
}

// SetPreserveFormants stores the formant flag. The time-domain algorithm
// shifts formants along with the fundamental; the flag is persisted for
// callers and alternative back ends that honor it.
func (s *Shifter) SetPreserveFormants(enabled bool) {
	s.preserveFormants = enabled
}

// PreserveFormants returns the stored formant flag.
func (s *Shifter) PreserveFormants() bool { return s.preserveFormants }

// Process shifts input toward targetHz and writes the result to output,
// which must be a distinct slice of equal length. When detectedHz is
// non-positive or strength is zero the input is copied through untouched,
// no state is updated, and the confidence is 0. A shifted block reports a
// fixed confidence and a latency of half the block length, the overlap
// region of the resampler.
func (s *Shifter) Process(input, output []float32, detectedHz, targetHz, strength float32) (confidence float32, latencySamples int) {
	n := len(input)
	if n == 0 {
		return 0, 0
	}
	if detectedHz <= 0 || strength <= 0 {
		copy(output, input)
		return 0, 0
	}

	ratio := float64(1 + strength*(targetHz/detectedHz-1))
	if ratio < minRatio {
		ratio = minRatio
	}
	if ratio > maxRatio {
		ratio = maxRatio
	}

	for j := 0; j < n; j++ {
		k := int(s.phase)
		t := float32(s.phase - float64(k))

		var y float32
		switch {
		case k < n-1:
			y = (1-t)*input[k] + t*input[k+1]
		case k < n:
			y = input[k]
		}

		s.phase += ratio
		if s.phase >= float64(n) {
			s.phase = 0
		}

		target := input[j]
		if target < 0 {
			target = -target
		}
		if target > s.env {
			s.env += s.attackCoef * (target - s.env)
		} else {
			s.env += s.releaseCoef * (target - s.env)
		}

		output[j] = y * s.env
	}
	return shiftConfidence, n / 2
}

// ProcessFrame shifts a single multi-channel frame. Channel 0 carries the
// analysis signal; the shifted sample is broadcast to every output
// channel.
func (s *Shifter) ProcessFrame(input, output []float32, detectedHz, targetHz, strength float32) {
	if len(input) == 0 || len(output) == 0 {
		return
	}
	var out [1]float32
	s.Process(input[:1], out[:], detectedHz, targetHz, strength)
	for ch := range output {
		output[ch] = out[0]
	}
}

// Reset clears the read phase and envelope registers.
func (s *Shifter) Reset() {
	s.phase = 0
	s.env = 0
}
