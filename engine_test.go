package retune

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func newTestEngine(t *testing.T, mode Mode) *Engine {
	t.Helper()
	p := DefaultParams(44100)
	p.BufferSize = 512
	p.Channels = 1
	p.Mode = mode
	e, err := NewWithParams(p)
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	return e
}

func TestConstructionValidation(t *testing.T) {
	if _, err := New(0, 512, 1); err == nil {
		t.Error("zero sample rate accepted")
	}
	if _, err := New(44100, 0, 1); err == nil {
		t.Error("zero buffer size accepted")
	}
	if _, err := New(44100, 512, 0); err == nil {
		t.Error("zero channels accepted")
	}
	e, err := New(44100, 512, 2)
	if err != nil {
		t.Fatalf("valid construction failed: %v", err)
	}
	if !e.IsInitialized() {
		t.Error("constructed engine reports uninitialized")
	}
}

func TestBypassIsBitExact(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	in := sine(440, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	if !res.Success {
		t.Fatal("bypass block failed")
	}
	if res.DetectedPitchHz != 0 {
		t.Fatalf("bypass reported pitch %f", res.DetectedPitchHz)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: %f != %f", i, out[i], in[i])
		}
	}
}

func TestPreconditionViolationsFailInBand(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	buf := make([]float32, 512)
	if res := e.Process(buf, buf, 0); res.Success {
		t.Error("zero frame count accepted")
	}
	if res := e.Process(buf, buf, 1024); res.Success {
		t.Error("frame count above buffer size accepted")
	}
	if res := e.Process(buf[:10], buf, 512); res.Success {
		t.Error("short input accepted")
	}
	var nilEngine *Engine
	if res := nilEngine.Process(buf, buf, 512); res.Success {
		t.Error("nil engine processed")
	}
}

func TestFullAutotuneSnapsToCMajor(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	e.SetScale(ScaleMajor, 60)
	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	if !res.Success {
		t.Fatal("block failed")
	}
	if math.Abs(res.DetectedPitchHz-260) > 10 {
		t.Fatalf("detected %f Hz, want near 260", res.DetectedPitchHz)
	}
	if math.Abs(res.CorrectedPitchHz-261.63) > 2 {
		t.Fatalf("target %f Hz, want near middle C", res.CorrectedPitchHz)
	}
	if res.Confidence < 0.3 {
		t.Fatalf("confidence %f below detection threshold", res.Confidence)
	}
	if res.LatencySamples != 256 {
		t.Fatalf("latency %d, want half the block", res.LatencySamples)
	}
}

func TestPitchCorrectionReportsNoQuantization(t *testing.T) {
	e := newTestEngine(t, ModePitchCorrection)
	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	if !res.Success {
		t.Fatal("block failed")
	}
	if res.CorrectedPitchHz != res.DetectedPitchHz {
		t.Fatalf("correction mode quantized: %f -> %f",
			res.DetectedPitchHz, res.CorrectedPitchHz)
	}
}

func TestQuantizationModePassesAudioThrough(t *testing.T) {
	e := newTestEngine(t, ModeQuantization)
	e.SetScale(ScaleMajor, 60)
	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	if !res.Success {
		t.Fatal("block failed")
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("audio altered at %d", i)
		}
	}
	if res.DetectedPitchHz == 0 {
		t.Fatal("no pitch reported")
	}
	if math.Abs(res.CorrectedPitchHz-261.63) > 2 {
		t.Fatalf("reported target %f, want near middle C", res.CorrectedPitchHz)
	}
}

func TestSilenceIsPassthroughWithZeroPitch(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	in := make([]float32, 512)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	if !res.Success {
		t.Fatal("silent block failed")
	}
	if res.DetectedPitchHz != 0 || res.Confidence != 0 {
		t.Fatalf("silence reported (%f, %f)", res.DetectedPitchHz, res.Confidence)
	}
	for i := range out {
		if out[i] != 0 {
			t.Fatalf("silence produced output at %d", i)
		}
	}
}

func TestStereoDownmixAndBroadcast(t *testing.T) {
	p := DefaultParams(44100)
	p.BufferSize = 512
	p.Channels = 2
	p.Mode = ModeFullAutotune
	e, err := NewWithParams(p)
	if err != nil {
		t.Fatal(err)
	}
	mono := sine(260, 44100, 512, 0.5)
	in := make([]float32, 1024)
	for i := 0; i < 512; i++ {
		in[2*i] = mono[i]
		in[2*i+1] = mono[i]
	}
	out := make([]float32, 1024)
	res := e.Process(in, out, 512)
	if !res.Success || res.DetectedPitchHz == 0 {
		t.Fatalf("stereo block not analyzed: %+v", res)
	}
	for i := 0; i < 512; i++ {
		if out[2*i] != out[2*i+1] {
			t.Fatalf("frame %d channels differ", i)
		}
	}
}

func TestProcessFrameMatchesSingleFrameProcess(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	in := []float32{0.25}
	out := []float32{0}
	res := e.ProcessFrame(in, out)
	if !res.Success {
		t.Fatal("frame failed")
	}
	if out[0] != in[0] {
		t.Fatalf("bypass frame altered: %f", out[0])
	}
}

func TestConfigureFeaturesDerivesMode(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	cases := []struct {
		correction, quantization bool
		want                     Mode
	}{
		{true, true, ModeFullAutotune},
		{true, false, ModePitchCorrection},
		{false, true, ModeQuantization},
		{false, false, ModeBypass},
	}
	for _, c := range cases {
		e.ConfigureFeatures(c.correction, c.quantization, false)
		if e.Mode() != c.want {
			t.Errorf("(%v, %v) -> %s, want %s", c.correction, c.quantization, e.Mode(), c.want)
		}
	}
}

func TestSetParametersClampsAndKeepsShape(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	p := e.Params()
	p.SampleRate = 96000
	p.BufferSize = 64
	p.Channels = 8
	p.CorrectionStrength = 3
	p.QuantizeStrength = -1
	p.TempoBPM = 500
	e.SetParameters(p)

	got := e.Params()
	if got.SampleRate != 44100 || got.BufferSize != 512 || got.Channels != 1 {
		t.Fatalf("immutable shape changed: %+v", got)
	}
	if got.CorrectionStrength != 1 || got.QuantizeStrength != 0 {
		t.Fatalf("strengths not clamped: %+v", got)
	}
	if got.TempoBPM != 200 {
		t.Fatalf("tempo %f, want clamped to 200", got.TempoBPM)
	}
}

func TestMetricsAccumulateBufferSizePerCall(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	buf := make([]float32, 512)
	e.Process(buf, buf, 512)
	e.Process(buf, buf, 100)
	e.ProcessFrame(buf[:1], buf[:1])

	m := e.PerformanceMetrics()
	if m.FramesProcessed != 3*512 {
		t.Fatalf("frames processed %d, want %d", m.FramesProcessed, 3*512)
	}
	if m.AverageLatencyMS < 0 {
		t.Fatalf("negative latency %f", m.AverageLatencyMS)
	}
}

func TestResetClearsEverything(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	in := sine(440, 44100, 512, 0.5)
	out := make([]float32, 512)
	e.Process(in, out, 512)
	e.Feed(in, 512)
	e.Reset()

	m := e.PerformanceMetrics()
	if m.FramesProcessed != 0 || m.AverageLatencyMS != 0 {
		t.Fatalf("metrics survived reset: %+v", m)
	}
	if e.PendingFrames() != 0 {
		t.Fatal("ring survived reset")
	}
	// Post-reset estimate must be unaffected by the 440 Hz history.
	res := e.Process(sine(660, 44100, 512, 0.5), out, 512)
	if math.Abs(res.DetectedPitchHz-660) > 15 {
		t.Fatalf("post-reset estimate %f dragged by history", res.DetectedPitchHz)
	}
}

func TestStreamingSeamRoundTrips(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	in := sine(440, 44100, 512, 0.5)

	if _, ok := e.ProcessPending(); ok {
		t.Fatal("processed with an empty ring")
	}
	if n := e.Feed(in, 512); n != 512 {
		t.Fatalf("fed %d frames", n)
	}
	res, ok := e.ProcessPending()
	if !ok || !res.Success {
		t.Fatalf("pending block not processed: %+v", res)
	}
	out := make([]float32, 512)
	if n := e.Drain(out, 512); n != 512 {
		t.Fatalf("drained %d frames", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("bypass stream altered sample %d", i)
		}
	}
}

func TestStreamingPartialBlockWaits(t *testing.T) {
	e := newTestEngine(t, ModeBypass)
	e.Feed(make([]float32, 100), 100)
	if _, ok := e.ProcessPending(); ok {
		t.Fatal("processed a partial block")
	}
	if e.PendingFrames() != 100 {
		t.Fatalf("pending %d, want 100", e.PendingFrames())
	}
}

func TestRecommendedBufferSize(t *testing.T) {
	cases := []struct{ rate, want int }{
		{8000, 128},
		{22050, 128},
		{44100, 256},
		{48000, 512},
		{96000, 1024},
		{192000, 2048},
	}
	for _, c := range cases {
		if got := RecommendedBufferSize(c.rate); got != c.want {
			t.Errorf("RecommendedBufferSize(%d) = %d, want %d", c.rate, got, c.want)
		}
	}
}

func TestNearestNoteAndMIDIHelpers(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	e.SetScale(ScaleChromatic, 60)
	n := e.NearestNote(445)
	if n.MIDINote != 69 {
		t.Fatalf("nearest MIDI %d, want 69", n.MIDINote)
	}
	if math.Abs(FrequencyToMIDI(440)-69) > 1e-9 {
		t.Fatal("frequency_to_midi anchor broken")
	}
	if math.Abs(MIDIToFrequency(69)-440) > 1e-9 {
		t.Fatal("midi_to_frequency anchor broken")
	}
}

func TestCustomScaleActivates(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	e.SetCustomScale([]int{0, 7})
	if e.Params().Scale != ScaleCustom {
		t.Fatalf("scale %s after SetCustomScale", e.Params().Scale)
	}
	got := e.QuantizePitch(MIDIToFrequency(64))
	want := MIDIToFrequency(67)
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("custom quantize %f, want %f", got, want)
	}
}

func TestQuantizeTimingThroughEngine(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	e.SetTempo(120)
	got := e.QuantizeTiming(30000, GridQuarter, 1)
	if math.Abs(got-22050) > 1e-6 {
		t.Fatalf("snapped to %f, want 22050", got)
	}
}
