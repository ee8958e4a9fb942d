// Package scale maps continuous frequencies onto musical pitch grids. It
// provides MIDI/Hz conversions, nearest-note lookup against a set of scale
// intervals, and rhythmic grid snapping driven by tempo and time signature.
package scale

import "math"

// Scale selects one of the built-in interval sets, or Custom for a
// client-supplied set stored on the Quantizer.
type Scale int

const (
	Chromatic Scale = iota
	Major
	Minor
	Pentatonic
	Blues
	Dorian
	Mixolydian
	Custom
)

// builtinIntervals holds the semitone offsets from the root for each
// built-in scale. Shared read-only data; never mutated after init.
var builtinIntervals = [...][]int{
	Chromatic:  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	Major:      {0, 2, 4, 5, 7, 9, 11},
	Minor:      {0, 2, 3, 5, 7, 8, 10},
	Pentatonic: {0, 2, 4, 7, 9},
	Blues:      {0, 3, 5, 6, 7, 10},
	Dorian:     {0, 2, 3, 5, 7, 9, 10},
	Mixolydian: {0, 2, 4, 5, 7, 9, 10},
}

func (s Scale) String() string {
	switch s {
	case Chromatic:
		return "chromatic"
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Pentatonic:
		return "pentatonic"
	case Blues:
		return "blues"
	case Dorian:
		return "dorian"
	case Mixolydian:
		return "mixolydian"
	case Custom:
		return "custom"
	}
	return "unknown"
}

// Note describes a quantized pitch: the in-scale frequency, its rounded
// MIDI number, and how far the original input sat from it in cents.
type Note struct {
	FrequencyHz float64
	MIDINote    int
	Cents       float64
}

// FrequencyToMIDI converts a frequency in Hz to a fractional MIDI number
// (69 = A4 = 440 Hz). Non-positive input returns 0.
func FrequencyToMIDI(hz float64) float64 {
	if hz <= 0 {
		return 0
	}
	return 69 + 12*math.Log2(hz/440)
}

// MIDIToFrequency converts a fractional MIDI number to Hz.
func MIDIToFrequency(midi float64) float64 {
	return 440 * math.Pow(2, (midi-69)/12)
}
