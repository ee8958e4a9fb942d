// Package retune is a real-time monophonic pitch-correction engine. An
// Engine consumes interleaved float32 frames, estimates the fundamental
// of each block, maps it to a target drawn from the active musical scale,
// and resynthesizes the block so its perceived pitch lands on the target.
//
// Process and ProcessFrame are synchronous, allocation-free after the
// first block, and intended to be driven from a single (real-time) audio
// thread. The Feed/ProcessPending/Drain ring-buffer seam decouples an I/O
// thread delivering frames from the processing thread.
package retune

import (
	"errors"
	"fmt"
	"time"

	"github.com/cbegin/retune-go/internal/pitch"
	"github.com/cbegin/retune-go/internal/ring"
	"github.com/cbegin/retune-go/internal/scale"
	"github.com/cbegin/retune-go/internal/shift"
)

// latencyHistorySize bounds the rolling window of per-block processing
// times used for the performance metrics.
const latencyHistorySize = 100

// ringBlocks is how many analysis blocks the streaming rings hold.
const ringBlocks = 8

// Result reports the outcome of processing one block or frame.
type Result struct {
	Success          bool
	DetectedPitchHz  float64
	CorrectedPitchHz float64
	Confidence       float64
	LatencySamples   int
}

// Metrics is a read-only snapshot of the engine's rolling performance
// counters.
type Metrics struct {
	AverageLatencyMS float64
	CPUUsagePercent  float64
	FramesProcessed  uint64
}

// Note is a quantized pitch: the in-scale frequency, its MIDI number,
// and the input's deviation from it in cents.
type Note struct {
	FrequencyHz float64
	MIDINote    int
	Cents       float64
}

// Engine owns the pitch estimator, quantizer, resynthesizer and streaming
// ring buffers. Create one per independent stream; instances share no
// mutable state. Configuration setters must not interleave with Process;
// call them from the processing thread or fence externally.
type Engine struct {
	params Params

	detector  *pitch.Detector
	shifter   *shift.Shifter
	quantizer *scale.Quantizer
	in        *ring.Buffer
	out       *ring.Buffer

	mono     []float32 // downmixed analysis block
	monoOut  []float32 // resynthesized block
	blockIn  []float32 // streaming scratch, interleaved
	blockOut []float32

	latencies    [latencyHistorySize]float64
	latencyCount int
	latencyNext  int

	framesProcessed uint64
	initialized     bool

	mlModel   MLProcessor
	mlEnabled bool
	mlBuf     []float32
}

// New creates an engine with DefaultParams at the given shape.
func New(sampleRate, bufferSize, channels int) (*Engine, error) {
	p := DefaultParams(sampleRate)
	p.BufferSize = bufferSize
	p.Channels = channels
	return NewWithParams(p)
}

// NewWithParams creates an engine from a full parameter set. SampleRate,
// BufferSize and Channels are fixed for the engine's lifetime. All
// working buffers are allocated here.
func NewWithParams(p Params) (*Engine, error) {
	if p.SampleRate <= 0 {
		return nil, errors.New("retune: sample rate must be positive")
	}
	if p.BufferSize <= 0 {
		return nil, errors.New("retune: buffer size must be positive")
	}
	if p.Channels < 1 {
		return nil, errors.New("retune: channels must be at least 1")
	}

	inRing, err := ring.New(p.BufferSize*ringBlocks+1, p.Channels)
	if err != nil {
		return nil, fmt.Errorf("retune: input ring: %w", err)
	}
	outRing, err := ring.New(p.BufferSize*ringBlocks+1, p.Channels)
	if err != nil {
		return nil, fmt.Errorf("retune: output ring: %w", err)
	}

	e := &Engine{
		params:    p,
		detector:  pitch.New(float64(p.SampleRate), p.BufferSize),
		shifter:   shift.New(float64(p.SampleRate)),
		quantizer: scale.NewQuantizer(float64(p.SampleRate)),
		in:        inRing,
		out:       outRing,
		mono:      make([]float32, p.BufferSize),
		monoOut:   make([]float32, p.BufferSize),
		blockIn:   make([]float32, p.BufferSize*p.Channels),
		blockOut:  make([]float32, p.BufferSize*p.Channels),
		mlBuf:     make([]float32, mlWindowSize),
	}
	e.shifter.SetEnvelopeTimes(p.AttackTime, p.ReleaseTime)
	e.shifter.SetPreserveFormants(p.PreserveFormants)
	e.quantizer.SetTempo(p.TempoBPM)
	e.initialized = true
	return e, nil
}

// IsInitialized reports whether construction completed. A false value
// means every Process call will fail in-band.
func (e *Engine) IsInitialized() bool { return e != nil && e.initialized }

// Params returns a copy of the current parameter set.
func (e *Engine) Params() Params { return e.params }

// RecommendedBufferSize returns a block size suited to the sample rate:
// small enough for interactive latency, large enough for a stable pitch
// estimate.
func RecommendedBufferSize(sampleRate int) int {
	switch {
	case sampleRate <= 22050:
		return 128
	case sampleRate <= 44100:
		return 256
	case sampleRate <= 48000:
		return 512
	case sampleRate <= 96000:
		return 1024
	default:
		return 2048
	}
}

// Process runs one block of frameCount interleaved frames through the
// active pipeline. input and output must each hold at least
// frameCount*Channels samples and frameCount must not exceed the
// configured buffer size; violations return Success=false with output
// untouched. input and output may be the same slice.
func (e *Engine) Process(input, output []float32, frameCount int) Result {
	if !e.IsInitialized() {
		return Result{}
	}
	ch := e.params.Channels
	if frameCount <= 0 || frameCount > e.params.BufferSize {
		return Result{}
	}
	if len(input) < frameCount*ch || len(output) < frameCount*ch {
		return Result{}
	}

	start := time.Now()
	var res Result

	switch e.params.Mode {
	case ModeBypass:
		copy(output[:frameCount*ch], input[:frameCount*ch])
		res = Result{Success: true}

	case ModeQuantization:
		// Audio passes through; only the report carries the analysis.
		e.downmix(input, frameCount)
		detected, conf := e.detector.Detect(e.mono[:frameCount])
		copy(output[:frameCount*ch], input[:frameCount*ch])
		corrected := float64(detected)
		if detected > 0 {
			corrected = e.quantizer.QuantizePitch(float64(detected),
				e.params.Scale.internal(), e.params.KeyCenter, e.params.QuantizeStrength)
		}
		res = Result{
			Success:          true,
			DetectedPitchHz:  float64(detected),
			CorrectedPitchHz: corrected,
			Confidence:       float64(conf),
		}

	case ModePitchCorrection:
		res = e.correctBlock(input, output, frameCount, false)

	case ModeFullAutotune:
		res = e.correctBlock(input, output, frameCount, true)

	default:
		copy(output[:frameCount*ch], input[:frameCount*ch])
		res = Result{Success: true}
	}

	if e.mlEnabled && e.mlModel != nil && res.Success && e.params.Mode != ModeBypass {
		e.delegateFirstFrame(output, frameCount, res)
	}

	e.recordLatency(time.Since(start))
	e.framesProcessed += uint64(e.params.BufferSize)
	return res
}

// correctBlock is the shared detect→(quantize)→resynthesize path for the
// correction modes. The mono downmix is analyzed and shifted, and the
// corrected mono block is broadcast to every output channel; with no
// usable pitch the input passes through verbatim.
func (e *Engine) correctBlock(input, output []float32, frameCount int, quantize bool) Result {
	ch := e.params.Channels
	e.downmix(input, frameCount)
	detected, conf := e.detector.Detect(e.mono[:frameCount])
	if detected <= 0 {
		copy(output[:frameCount*ch], input[:frameCount*ch])
		return Result{Success: true}
	}

	target := float64(detected)
	if quantize {
		target = e.quantizer.QuantizePitch(float64(detected),
			e.params.Scale.internal(), e.params.KeyCenter, e.params.QuantizeStrength)
	}

	_, latency := e.shifter.Process(
		e.mono[:frameCount], e.monoOut[:frameCount],
		detected, float32(target), float32(e.params.CorrectionStrength))

	for i := 0; i < frameCount; i++ {
		for c := 0; c < ch; c++ {
			output[i*ch+c] = e.monoOut[i]
		}
	}
	return Result{
		Success:          true,
		DetectedPitchHz:  float64(detected),
		CorrectedPitchHz: target,
		Confidence:       float64(conf),
		LatencySamples:   latency,
	}
}

// ProcessFrame processes a single frame; equivalent to Process with a
// frame count of 1.
func (e *Engine) ProcessFrame(input, output []float32) Result {
	return e.Process(input, output, 1)
}

// downmix fills e.mono with the analysis signal: channel 0 for mono
// input, the mean of channels 0 and 1 otherwise.
func (e *Engine) downmix(input []float32, frameCount int) {
	ch := e.params.Channels
	if ch == 1 {
		copy(e.mono[:frameCount], input[:frameCount])
		return
	}
	for i := 0; i < frameCount; i++ {
		e.mono[i] = (input[i*ch] + input[i*ch+1]) / 2
	}
}

// SetParameters applies the mutable fields of p between blocks. The
// constructed SampleRate, BufferSize and Channels are kept; strengths are
// clamped to [0, 1] and the tempo to its valid range.
func (e *Engine) SetParameters(p Params) {
	p.SampleRate = e.params.SampleRate
	p.BufferSize = e.params.BufferSize
	p.Channels = e.params.Channels
	p.CorrectionStrength = clampUnit(p.CorrectionStrength)
	p.QuantizeStrength = clampUnit(p.QuantizeStrength)
	e.params = p
	e.shifter.SetEnvelopeTimes(p.AttackTime, p.ReleaseTime)
	e.shifter.SetPreserveFormants(p.PreserveFormants)
	e.quantizer.SetTempo(p.TempoBPM)
	e.params.TempoBPM = e.quantizer.Tempo()
}

// SetMode switches the processing pipeline at the next block boundary.
func (e *Engine) SetMode(m Mode) { e.params.Mode = m }

// Mode returns the active processing mode.
func (e *Engine) Mode() Mode { return e.params.Mode }

// SetScale selects the active scale and its root MIDI note.
func (e *Engine) SetScale(s Scale, keyCenter int) {
	if keyCenter < 0 {
		keyCenter = 0
	}
	if keyCenter > 127 {
		keyCenter = 127
	}
	e.params.Scale = s
	e.params.KeyCenter = keyCenter
}

// SetCustomScale installs a client-supplied interval set and activates
// the custom scale. Intervals are reduced mod 12, deduplicated and
// sorted.
func (e *Engine) SetCustomScale(intervals []int) {
	e.quantizer.SetCustomScale(intervals)
	e.params.Scale = ScaleCustom
}

// SetTempo sets the timing-quantization tempo, clamped to [60, 200] BPM.
func (e *Engine) SetTempo(bpm float64) {
	e.quantizer.SetTempo(bpm)
	e.params.TempoBPM = e.quantizer.Tempo()
}

// SetTimeSignature sets the meter used by timing quantization.
func (e *Engine) SetTimeSignature(beatsPerBar, beatUnit int) {
	e.quantizer.SetTimeSignature(beatsPerBar, beatUnit)
}

// ConfigureFeatures derives the mode from feature switches: correction
// and quantization together select full autotune, one alone selects its
// mode, neither selects bypass.
func (e *Engine) ConfigureFeatures(enableCorrection, enableQuantization, enableFormants bool) {
	switch {
	case enableCorrection && enableQuantization:
		e.params.Mode = ModeFullAutotune
	case enableCorrection:
		e.params.Mode = ModePitchCorrection
	case enableQuantization:
		e.params.Mode = ModeQuantization
	default:
		e.params.Mode = ModeBypass
	}
	e.params.PreserveFormants = enableFormants
	e.shifter.SetPreserveFormants(enableFormants)
}

// QuantizePitch snaps a frequency to the active scale using the current
// quantize strength.
func (e *Engine) QuantizePitch(hz float64) float64 {
	return e.quantizer.QuantizePitch(hz, e.params.Scale.internal(),
		e.params.KeyCenter, e.params.QuantizeStrength)
}

// NearestNote returns the nearest in-scale pitch for a frequency.
func (e *Engine) NearestNote(hz float64) Note {
	n := e.quantizer.NearestNote(hz, e.params.Scale.internal(), e.params.KeyCenter)
	return Note{FrequencyHz: n.FrequencyHz, MIDINote: n.MIDINote, Cents: n.Cents}
}

// QuantizeTiming snaps a time position in samples toward the nearest
// grid line at the current tempo and time signature.
func (e *Engine) QuantizeTiming(timeSamples float64, g Grid, strength float64) float64 {
	return e.quantizer.QuantizeTiming(timeSamples, g.internal(), strength)
}

// FrequencyToMIDI converts Hz to a fractional MIDI number.
func FrequencyToMIDI(hz float64) float64 { return scale.FrequencyToMIDI(hz) }

// MIDIToFrequency converts a fractional MIDI number to Hz.
func MIDIToFrequency(midi float64) float64 { return scale.MIDIToFrequency(midi) }

// Feed writes interleaved frames into the input ring buffer. Safe to call
// from one producer thread concurrently with the processing thread.
// Returns the number of frames accepted.
func (e *Engine) Feed(samples []float32, frameCount int) int {
	return e.in.Write(samples, frameCount)
}

// PendingFrames returns how many fed frames await processing.
func (e *Engine) PendingFrames() int { return e.in.Available() }

// ProcessPending dequeues one full analysis block from the input ring,
// processes it, and enqueues the result on the output ring. It reports
// false without touching anything when fewer than BufferSize frames are
// buffered or the output ring cannot take a full block.
func (e *Engine) ProcessPending() (Result, bool) {
	n := e.params.BufferSize
	if e.in.Available() < n || e.out.Space() < n {
		return Result{}, false
	}
	e.in.Read(e.blockIn, n)
	res := e.Process(e.blockIn, e.blockOut, n)
	e.out.Write(e.blockOut, n)
	return res, true
}

// Drain reads processed frames from the output ring buffer. Safe to call
// from one consumer thread concurrently with the processing thread.
// Returns the number of frames delivered.
func (e *Engine) Drain(samples []float32, frameCount int) int {
	return e.out.Read(samples, frameCount)
}

// PerformanceMetrics returns the rolling latency average, the derived CPU
// load, and the cumulative frame counter. The frame counter advances by
// the configured buffer size per Process call regardless of the actual
// frame count, matching the engine's historical accounting.
func (e *Engine) PerformanceMetrics() Metrics {
	var sum float64
	for i := 0; i < e.latencyCount; i++ {
		sum += e.latencies[i]
	}
	m := Metrics{FramesProcessed: e.framesProcessed}
	if e.latencyCount > 0 {
		m.AverageLatencyMS = sum / float64(e.latencyCount)
		blockMS := 1000 * float64(e.params.BufferSize) / float64(e.params.SampleRate)
		if blockMS > 0 {
			m.CPUUsagePercent = 100 * m.AverageLatencyMS / blockMS
		}
	}
	return m
}

// Reset clears all stateful components: estimator history, resynthesizer
// phase and envelope, both ring buffers, and the performance counters.
func (e *Engine) Reset() {
	e.detector.Reset()
	e.shifter.Reset()
	e.in.Clear()
	e.out.Clear()
	e.latencyCount = 0
	e.latencyNext = 0
	e.framesProcessed = 0
}

func (e *Engine) recordLatency(d time.Duration) {
	e.latencies[e.latencyNext] = float64(d) / float64(time.Millisecond)
	e.latencyNext = (e.latencyNext + 1) % latencyHistorySize
	if e.latencyCount < latencyHistorySize {
		e.latencyCount++
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
