package retune

import "fmt"

// mlWindowSize is the fixed analysis window an inference model consumes.
const mlWindowSize = 512

// MLProcessor is the contract an external inference back end fulfils.
// The engine hands it a 512-sample mono window (zero-padded when the
// block is shorter) plus the detected pitch and correction strength, and
// expects a corrected window of the same length back.
//
// Tensor mapping for model authors:
//
//	audio_buffer        [1, 512] float32  input samples
//	target_pitch        [1, 1]   float32  detected frequency in Hz (optional)
//	correction_strength [1, 1]   float32  in [0, 1] (optional)
//	corrected_audio     [1, 512] float32  output samples
//	confidence          [1, 1]   float32  in [0, 1] (optional)
type MLProcessor interface {
	Process(window []float32, detectedPitchHz, correctionStrength float32) (corrected []float32, confidence float32, err error)
	Info() string
}

// ModelLoader, when set by an inference back end, turns a model path into
// an MLProcessor. It is nil in the base build, so LoadModel reports
// failure and the traditional pipeline stays active.
var ModelLoader func(path string) (MLProcessor, error)

// LoadModel attempts to load an inference model from path and reports
// whether the load succeeded. Without a registered ModelLoader it always
// returns false.
func (e *Engine) LoadModel(path string) bool {
	if ModelLoader == nil {
		e.mlModel = nil
		e.mlEnabled = false
		return false
	}
	model, err := ModelLoader(path)
	if err != nil {
		e.mlModel = nil
		e.mlEnabled = false
		return false
	}
	e.mlModel = model
	return true
}

// SetMLProcessor installs an already-constructed inference back end,
// bypassing ModelLoader.
func (e *Engine) SetMLProcessor(p MLProcessor) {
	e.mlModel = p
	if p == nil {
		e.mlEnabled = false
	}
}

// SetMLProcessingEnabled toggles inference. Enabling is silently ignored
// while no model is loaded.
func (e *Engine) SetMLProcessingEnabled(enabled bool) {
	if enabled && e.mlModel == nil {
		return
	}
	e.mlEnabled = enabled
}

// IsMLProcessingEnabled reports whether inference is active.
func (e *Engine) IsMLProcessingEnabled() bool {
	return e.mlEnabled && e.mlModel != nil
}

// MLModelInfo returns a human-readable description of the inference
// state.
func (e *Engine) MLModelInfo() string {
	if e.mlModel == nil {
		return "no model loaded; traditional pipeline active"
	}
	state := "disabled"
	if e.mlEnabled {
		state = "enabled"
	}
	return fmt.Sprintf("%s (%s)", e.mlModel.Info(), state)
}

// delegateFirstFrame lets the model rewrite the first frame of the block;
// the remaining frames keep the traditional pipeline's output. Inference
// errors leave the block untouched.
func (e *Engine) delegateFirstFrame(output []float32, frameCount int, res Result) {
	for i := range e.mlBuf {
		e.mlBuf[i] = 0
	}
	n := frameCount
	if n > mlWindowSize {
		n = mlWindowSize
	}
	copy(e.mlBuf[:n], e.mono[:n])

	corrected, _, err := e.mlModel.Process(e.mlBuf,
		float32(res.DetectedPitchHz), float32(e.params.CorrectionStrength))
	if err != nil || len(corrected) == 0 {
		return
	}
	for c := 0; c < e.params.Channels; c++ {
		output[c] = corrected[0]
	}
}
