package retune

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	out   []float32
	err   error
	calls int
}

func (f *fakeModel) Process(window []float32, detectedPitchHz, strength float32) ([]float32, float32, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.out, 0.9, nil
}

func (f *fakeModel) Info() string { return "fake v1" }

func TestLoadModelWithoutBackendFails(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	assert.False(t, e.LoadModel("model.onnx"))
	assert.False(t, e.IsMLProcessingEnabled())
	assert.Contains(t, e.MLModelInfo(), "no model loaded")
}

func TestEnableWithoutModelIsIgnored(t *testing.T) {
	e := newTestEngine(t, ModeFullAutotune)
	e.SetMLProcessingEnabled(true)
	assert.False(t, e.IsMLProcessingEnabled())
}

func TestModelLoaderHook(t *testing.T) {
	model := &fakeModel{out: make([]float32, mlWindowSize)}
	ModelLoader = func(path string) (MLProcessor, error) {
		if strings.HasSuffix(path, ".onnx") {
			return model, nil
		}
		return nil, errors.New("unsupported")
	}
	defer func() { ModelLoader = nil }()

	e := newTestEngine(t, ModeFullAutotune)
	assert.False(t, e.LoadModel("weights.bin"))
	require.True(t, e.LoadModel("weights.onnx"))
	e.SetMLProcessingEnabled(true)
	assert.True(t, e.IsMLProcessingEnabled())
	assert.Contains(t, e.MLModelInfo(), "fake v1")
	assert.Contains(t, e.MLModelInfo(), "enabled")
}

func TestFirstFrameDelegation(t *testing.T) {
	out512 := make([]float32, mlWindowSize)
	out512[0] = 0.123
	model := &fakeModel{out: out512}

	e := newTestEngine(t, ModeFullAutotune)
	e.SetMLProcessor(model)
	e.SetMLProcessingEnabled(true)

	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	require.True(t, res.Success)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, float32(0.123), out[0])
}

func TestDelegationSkipsBypass(t *testing.T) {
	model := &fakeModel{out: make([]float32, mlWindowSize)}
	e := newTestEngine(t, ModeBypass)
	e.SetMLProcessor(model)
	e.SetMLProcessingEnabled(true)

	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	e.Process(in, out, 512)
	assert.Equal(t, 0, model.calls)
	assert.Equal(t, in[0], out[0])
}

func TestInferenceErrorLeavesBlockIntact(t *testing.T) {
	model := &fakeModel{err: errors.New("inference failed")}
	e := newTestEngine(t, ModeQuantization)
	e.SetMLProcessor(model)
	e.SetMLProcessingEnabled(true)

	in := sine(260, 44100, 512, 0.5)
	out := make([]float32, 512)
	res := e.Process(in, out, 512)
	require.True(t, res.Success)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, in[0], out[0])
}

func TestClearingProcessorDisables(t *testing.T) {
	model := &fakeModel{out: make([]float32, mlWindowSize)}
	e := newTestEngine(t, ModeFullAutotune)
	e.SetMLProcessor(model)
	e.SetMLProcessingEnabled(true)
	e.SetMLProcessor(nil)
	assert.False(t, e.IsMLProcessingEnabled())
	assert.Contains(t, e.MLModelInfo(), "no model loaded")
}
