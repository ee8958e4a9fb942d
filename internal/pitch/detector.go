// Package pitch estimates the fundamental frequency of a mono sample block
// using windowed time-domain autocorrelation.
package pitch

import "math"

const (
	// DefaultMinFrequency and DefaultMaxFrequency bound the search range.
	// 80 Hz reaches below a bass vocal; 2 kHz covers the top of a whistle
	// register.
	DefaultMinFrequency = 80
	DefaultMaxFrequency = 2000

	// DefaultConfidenceThreshold rejects estimates whose normalized
	// autocorrelation peak is too weak to trust.
	DefaultConfidenceThreshold = 0.3

	// DefaultSmoothing is the one-pole coefficient applied to successive
	// estimates. Higher values track more slowly but jitter less.
	DefaultSmoothing = 0.8
)

// Detector extracts a pitch estimate and a confidence from sample blocks
// up to its window size. It keeps one register of the previous smoothed
// pitch; it is not safe for concurrent use.
type Detector struct {
	sampleRate          float32
	windowSize          int
	minFrequency        float32
	maxFrequency        float32
	confidenceThreshold float32
	smoothing           float32

	window   []float32 // Hann coefficients, precomputed
	windowed []float32 // scratch: windowed input
	corr     []float32 // scratch: autocorrelation

	prevPitch float32
}

// New creates a detector for blocks of at most windowSize samples. The
// maximum detectable frequency is capped at Nyquist.
func New(sampleRate float64, windowSize int) *Detector {
	if windowSize < 2 {
		windowSize = 2
	}
	d := &Detector{
		sampleRate:          float32(sampleRate),
		windowSize:          windowSize,
		minFrequency:        DefaultMinFrequency,
		maxFrequency:        DefaultMaxFrequency,
		confidenceThreshold: DefaultConfidenceThreshold,
		smoothing:           DefaultSmoothing,
		window:              make([]float32, windowSize),
		windowed:            make([]float32, windowSize),
		corr:                make([]float32, windowSize),
	}
	if nyquist := d.sampleRate / 2; d.maxFrequency > nyquist {
		d.maxFrequency = nyquist
	}
	for i := range d.window {
		d.window[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize-1))))
	}
	return d
}

// SetFrequencyRange adjusts the valid pitch range. The maximum is capped
// at Nyquist; non-positive values keep the current setting.
func (d *Detector) SetFrequencyRange(minHz, maxHz float64) {
	if minHz > 0 {
		d.minFrequency = float32(minHz)
	}
	if maxHz > 0 {
		d.maxFrequency = float32(maxHz)
	}
	if nyquist := d.sampleRate / 2; d.maxFrequency > nyquist {
		d.maxFrequency = nyquist
	}
}

// SetConfidenceThreshold sets the minimum normalized peak height for an
// estimate to be reported.
func (d *Detector) SetConfidenceThreshold(threshold float64) {
	d.confidenceThreshold = float32(threshold)
}

// SetSmoothing sets the one-pole smoothing coefficient in [0, 1).
func (d *Detector) SetSmoothing(alpha float64) {
	if alpha < 0 {
		alpha = 0
	}
	if alpha >= 1 {
		alpha = 0.99
	}
	d.smoothing = float32(alpha)
}

// WindowSize returns the maximum block length Detect accepts.
func (d *Detector) WindowSize() int { return d.windowSize }

// Detect estimates the fundamental frequency of samples and returns the
// smoothed pitch in Hz together with a confidence in [0, 1]. It returns
// (0, 0) when the block is longer than the window, the signal is silent
// or aperiodic, or the detected period falls outside the configured
// frequency range.
func (d *Detector) Detect(samples []float32) (pitchHz, confidence float32) {
	n := len(samples)
	if n == 0 || n > d.windowSize {
		return 0, 0
	}

	for i := 0; i < n; i++ {
		d.windowed[i] = samples[i] * d.window[i]
	}

	corr := d.corr[:n]
	for lag := 0; lag < n; lag++ {
		var sum float32
		for i := 0; i < n-lag; i++ {
			sum += d.windowed[i] * d.windowed[i+lag]
		}
		corr[lag] = sum
	}

	lagMin := int(d.sampleRate / d.maxFrequency)
	if lagMin < 1 {
		lagMin = 1
	}
	lagMax := int(d.sampleRate / d.minFrequency)
	if lagMax > n-1 {
		lagMax = n - 1
	}
	if lagMin >= lagMax {
		return 0, 0
	}

	bestLag := lagMin
	for lag := lagMin + 1; lag <= lagMax; lag++ {
		if corr[lag] > corr[bestLag] {
			bestLag = lag
		}
	}

	if corr[0] <= 0 {
		return 0, 0
	}
	c := corr[bestLag] / corr[0]
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	if c < d.confidenceThreshold {
		return 0, 0
	}

	f := d.sampleRate / float32(bestLag)
	if f < d.minFrequency || f > d.maxFrequency {
		return 0, 0
	}

	if d.prevPitch == 0 {
		d.prevPitch = f
	} else {
		d.prevPitch = d.smoothing*d.prevPitch + (1-d.smoothing)*f
	}
	return d.prevPitch, c
}

// Reset clears the smoothing history so the next estimate starts cold.
func (d *Detector) Reset() {
	d.prevPitch = 0
}
