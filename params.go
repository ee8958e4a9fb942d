package retune

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/retune-go/internal/scale"
)

// Mode selects the per-block processing pipeline.
type Mode string

const (
	// ModeBypass copies input to output untouched.
	ModeBypass Mode = "bypass"
	// ModePitchCorrection smooths the detected pitch without snapping it
	// to a scale.
	ModePitchCorrection Mode = "pitch_correction"
	// ModeQuantization reports the detected and scale-snapped pitches but
	// passes audio through.
	ModeQuantization Mode = "quantization"
	// ModeFullAutotune detects, snaps to the active scale and resynthesizes.
	ModeFullAutotune Mode = "full_autotune"
)

// Scale names the interval set used for pitch quantization.
type Scale string

const (
	ScaleChromatic  Scale = "chromatic"
	ScaleMajor      Scale = "major"
	ScaleMinor      Scale = "minor"
	ScalePentatonic Scale = "pentatonic"
	ScaleBlues      Scale = "blues"
	ScaleDorian     Scale = "dorian"
	ScaleMixolydian Scale = "mixolydian"
	ScaleCustom     Scale = "custom"
)

func (s Scale) internal() scale.Scale {
	switch s {
	case ScaleMajor:
		return scale.Major
	case ScaleMinor:
		return scale.Minor
	case ScalePentatonic:
		return scale.Pentatonic
	case ScaleBlues:
		return scale.Blues
	case ScaleDorian:
		return scale.Dorian
	case ScaleMixolydian:
		return scale.Mixolydian
	case ScaleCustom:
		return scale.Custom
	default:
		return scale.Chromatic
	}
}

// Grid names a rhythmic subdivision for timing quantization.
type Grid string

const (
	GridQuarter   Grid = "quarter"
	GridEighth    Grid = "eighth"
	GridSixteenth Grid = "sixteenth"
	GridTriplet   Grid = "triplet"
	GridDotted    Grid = "dotted"
)

func (g Grid) internal() scale.Grid {
	switch g {
	case GridEighth:
		return scale.GridEighth
	case GridSixteenth:
		return scale.GridSixteenth
	case GridTriplet:
		return scale.GridTriplet
	case GridDotted:
		return scale.GridDotted
	default:
		return scale.GridQuarter
	}
}

// Params configures an Engine. SampleRate, BufferSize and Channels are
// fixed at construction; everything else can be updated between blocks
// via the engine setters or SetParameters.
type Params struct {
	SampleRate int `yaml:"sample_rate"`
	BufferSize int `yaml:"buffer_size"`
	Channels   int `yaml:"channels"`

	CorrectionStrength float64 `yaml:"correction_strength"`
	QuantizeStrength   float64 `yaml:"quantize_strength"`

	AttackTime  float64 `yaml:"attack_time"`
	ReleaseTime float64 `yaml:"release_time"`

	Scale     Scale `yaml:"scale"`
	KeyCenter int   `yaml:"key_center"`

	Mode             Mode    `yaml:"mode"`
	PreserveFormants bool    `yaml:"preserve_formants"`
	TempoBPM         float64 `yaml:"tempo_bpm"`
}

// DefaultParams returns full-autotune defaults for the given sample rate:
// chromatic scale rooted at middle C, full correction, 10 ms attack and
// 100 ms release, 120 BPM.
func DefaultParams(sampleRate int) Params {
	return Params{
		SampleRate:         sampleRate,
		BufferSize:         RecommendedBufferSize(sampleRate),
		Channels:           1,
		CorrectionStrength: 1,
		QuantizeStrength:   1,
		AttackTime:         0.01,
		ReleaseTime:        0.1,
		Scale:              ScaleChromatic,
		KeyCenter:          60,
		Mode:               ModeFullAutotune,
		PreserveFormants:   false,
		TempoBPM:           120,
	}
}

// LoadParams reads a YAML parameter file. Fields absent from the file
// keep the DefaultParams values for the file's sample rate (or 44.1 kHz
// when the file does not set one).
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read params: %w", err)
	}
	var loaded Params
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Params{}, fmt.Errorf("parse params: %w", err)
	}
	if loaded.SampleRate == 0 {
		loaded.SampleRate = 44100
	}
	p := DefaultParams(loaded.SampleRate)
	if loaded.BufferSize != 0 {
		p.BufferSize = loaded.BufferSize
	}
	if loaded.Channels != 0 {
		p.Channels = loaded.Channels
	}
	if loaded.CorrectionStrength != 0 {
		p.CorrectionStrength = loaded.CorrectionStrength
	}
	if loaded.QuantizeStrength != 0 {
		p.QuantizeStrength = loaded.QuantizeStrength
	}
	if loaded.AttackTime != 0 {
		p.AttackTime = loaded.AttackTime
	}
	if loaded.ReleaseTime != 0 {
		p.ReleaseTime = loaded.ReleaseTime
	}
	if loaded.Scale != "" {
		p.Scale = loaded.Scale
	}
	if loaded.KeyCenter != 0 {
		p.KeyCenter = loaded.KeyCenter
	}
	if loaded.Mode != "" {
		p.Mode = loaded.Mode
	}
	p.PreserveFormants = loaded.PreserveFormants
	if loaded.TempoBPM != 0 {
		p.TempoBPM = loaded.TempoBPM
	}
	return p, nil
}
