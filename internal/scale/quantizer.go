package scale

import (
	"math"
	"sort"
)

const (
	minTempoBPM = 60
	maxTempoBPM = 200
)

// Quantizer snaps frequencies to the nearest in-scale pitch and times to
// the nearest rhythmic grid line. It holds the tempo, time signature and
// any client-supplied custom interval set; the built-in interval table is
// shared across all instances.
type Quantizer struct {
	sampleRate     float64
	tempoBPM       float64
	samplesPerBeat float64
	beatsPerBar    int
	beatUnit       int
	custom         []int
}

// NewQuantizer creates a quantizer at the given sample rate with a default
// tempo of 120 BPM in 4/4.
func NewQuantizer(sampleRate float64) *Quantizer {
	q := &Quantizer{
		sampleRate:  sampleRate,
		beatsPerBar: 4,
		beatUnit:    4,
	}
	q.SetTempo(120)
	return q
}

// SetTempo sets the tempo, clamped to [60, 200] BPM, and recomputes the
// grid resolution.
func (q *Quantizer) SetTempo(bpm float64) {
	if bpm < minTempoBPM {
		bpm = minTempoBPM
	}
	if bpm > maxTempoBPM {
		bpm = maxTempoBPM
	}
	q.tempoBPM = bpm
	q.updateGrid()
}

// Tempo returns the current tempo in BPM.
func (q *Quantizer) Tempo() float64 { return q.tempoBPM }

// SetTimeSignature sets the meter and recomputes the grid. In compound
// meters (6/8 and 12/8) the eighth note carries the beat, so the samples
// per beat are halved.
func (q *Quantizer) SetTimeSignature(beatsPerBar, beatUnit int) {
	if beatsPerBar > 0 {
		q.beatsPerBar = beatsPerBar
	}
	if beatUnit > 0 {
		q.beatUnit = beatUnit
	}
	q.updateGrid()
}

func (q *Quantizer) updateGrid() {
	q.samplesPerBeat = 60 / q.tempoBPM * q.sampleRate
	if q.beatUnit == 8 && (q.beatsPerBar == 6 || q.beatsPerBar == 12) {
		q.samplesPerBeat /= 2
	}
}

// SetCustomScale stores a client-supplied interval set for the Custom
// scale. Values are reduced mod 12, deduplicated and sorted ascending. An
// empty result falls back to chromatic.
func (q *Quantizer) SetCustomScale(intervals []int) {
	seen := [12]bool{}
	cleaned := make([]int, 0, len(intervals))
	for _, iv := range intervals {
		iv = ((iv % 12) + 12) % 12
		if !seen[iv] {
			seen[iv] = true
			cleaned = append(cleaned, iv)
		}
	}
	sort.Ints(cleaned)
	q.custom = cleaned
}

// CustomScale returns the stored custom interval set.
func (q *Quantizer) CustomScale() []int { return q.custom }

func (q *Quantizer) intervalsFor(s Scale) []int {
	if s == Custom {
		if len(q.custom) == 0 {
			return builtinIntervals[Chromatic]
		}
		return q.custom
	}
	if s < Chromatic || int(s) >= len(builtinIntervals) {
		return builtinIntervals[Chromatic]
	}
	return builtinIntervals[s]
}

// QuantizePitch maps inputHz to the nearest pitch of the scale rooted at
// keyCenter, blended in MIDI space by strength. Strength 0 (or
// non-positive input) returns the input unchanged; strength 1 lands
// exactly on the scale note.
func (q *Quantizer) QuantizePitch(inputHz float64, s Scale, keyCenter int, strength float64) float64 {
	if inputHz <= 0 || strength <= 0 {
		return inputHz
	}
	mIn := FrequencyToMIDI(inputHz)
	mQ := q.nearestScaleMIDI(mIn, s, keyCenter)
	return MIDIToFrequency(mIn + strength*(mQ-mIn))
}

// NearestNote returns the full quantized pitch for inputHz: the in-scale
// frequency, its MIDI number, and the input's deviation from it in cents.
func (q *Quantizer) NearestNote(inputHz float64, s Scale, keyCenter int) Note {
	if inputHz <= 0 {
		return Note{}
	}
	mQ := q.nearestScaleMIDI(FrequencyToMIDI(inputHz), s, keyCenter)
	hz := MIDIToFrequency(mQ)
	cents := 1200 * math.Log2(inputHz/hz)
	if cents > 1200 {
		cents = 1200
	}
	if cents < -1200 {
		cents = -1200
	}
	return Note{
		FrequencyHz: hz,
		MIDINote:    int(math.Round(mQ)),
		Cents:       cents,
	}
}

// nearestScaleMIDI finds the scale member closest to the fractional MIDI
// number m. Candidates are each interval in the octave below m's offset
// and its copy one octave up; on a tie the interval scanned first wins.
func (q *Quantizer) nearestScaleMIDI(m float64, s Scale, keyCenter int) float64 {
	intervals := q.intervalsFor(s)
	d := m - float64(keyCenter)
	octave := math.Floor(d / 12)
	rem := d - 12*octave

	best := intervals[0]
	bestDist := math.Inf(1)
	for _, iv := range intervals {
		for _, cand := range [2]int{iv, iv + 12} {
			dist := math.Abs(rem - float64(cand))
			if dist < bestDist {
				bestDist = dist
				best = cand
			}
		}
	}
	return float64(keyCenter) + 12*octave + float64(best)
}
