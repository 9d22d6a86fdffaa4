package filter

import "math"

// Type selects which tap of the state-variable filter is output.
type Type int

const (
	TypeLowPass Type = iota
	TypeBandPass
	TypeHighPass
)

// CutoffLUT maps an EG cutoff 0..128 (plus a possibly-out-of-range user
// offset) to the SVF's per-sample coefficient, built once per sample rate.
// cutoffToCoeff(i) = tan(pi * min(0.499, freq(i)/sampleRate)), grounded on
// the one-pole TPT-SVF coefficient shape used for digital state-variable
// filters.
type CutoffLUT struct {
	coeff [129]float64
}

// BuildCutoffLUT constructs a cutoff lookup table for sampleRate, mapping
// cutoff index 0..128 onto an exponential 20 Hz..16 kHz frequency sweep.
func BuildCutoffLUT(sampleRate int) *CutoffLUT {
	lut := &CutoffLUT{}
	for i := 0; i <= 128; i++ {
		freq := 20.0 * math.Exp2(float64(i)/128.0*9.64) // 20Hz .. ~16kHz
		ratio := freq / float64(sampleRate)
		if ratio > 0.499 {
			ratio = 0.499
		}
		lut.coeff[i] = math.Tan(math.Pi * ratio)
	}
	return lut
}

// Coeff returns the filter coefficient for a cutoff index, clamping the
// index (not the offset-composed value) to the table's valid range.
func (l *CutoffLUT) Coeff(index int) float64 {
	if index < 0 {
		index = 0
	}
	if index > 128 {
		index = 128
	}
	return l.coeff[index]
}

// SVF is a 12 dB/octave state-variable filter with four per-sample taps:
// v0 (high), band, low, and a resonance feedback path (spec §4.6).
type SVF struct {
	EG           EG
	Kind         Type
	Resonance    float64 // 0..~2, higher = more resonant
	CutoffOffset float64 // user-controllable additive offset (spec glossary)

	// Active is false until the first mailbox write touches this channel's
	// filter. A lightweight cutoff/resonance-only update against an inactive
	// filter bootstraps it (Bootstrap) before applying the value; a full
	// stamp activates it unconditionally (spec §4.1 "Filter update merging").
	Active bool

	lut *CutoffLUT

	low, band   float64
	lowR, bandR float64 // right-leg state for ProcessStereo; unused by mono Process callers
}

// NewSVF creates an SVF bound to the given cutoff LUT. The LUT is shared
// across all channels at one sample rate (spec §3: reference tables are
// process-wide and immutable during playback).
func NewSVF(lut *CutoffLUT) *SVF {
	return &SVF{lut: lut}
}

// Bootstrap activates the filter with a default type/EG when a partial
// (cutoff- or resonance-only) update arrives before any full stamp has run.
func (f *SVF) Bootstrap(defaultType Type) {
	if f.Active {
		return
	}
	f.Kind = defaultType
	f.EG.Attack = Stage{Target: 128, Rate: 1}
	f.EG.Decay1 = Stage{Target: 128, Rate: 0}
	f.EG.Decay2 = Stage{Target: 128, Rate: 0}
	f.EG.Release = Stage{Target: 0, Rate: 1}
	f.EG.NoteOn(128)
	f.Active = true
}

// ApplyFullStamp replaces the EG stages and filter type wholesale and
// restarts the EG from attack, unconditionally marking the filter active
// (spec §4.1: "A full-stamp write ... always restamps and restarts the EG").
func (f *SVF) ApplyFullStamp(filterType Type, attack, decay1, decay2, release Stage, resonance, cutoffOffset float64) {
	f.Kind = filterType
	f.Resonance = resonance
	f.CutoffOffset = cutoffOffset
	f.EG.Attack = attack
	f.EG.Decay1 = decay1
	f.EG.Decay2 = decay2
	f.EG.Release = release
	f.EG.NoteOn(attack.Target)
	f.Active = true
}

// Reset clears filter state (used on voice steal / full restamp).
func (f *SVF) Reset() {
	f.low = 0
	f.band = 0
	f.lowR = 0
	f.bandR = 0
}

// ProcessBlock advances the EG by n samples (amortized, spec §4.6) then
// returns the per-sample coefficient to use for the block; callers step
// sample-by-sample via Process using this coefficient held constant for the
// block, matching the teacher's one-pole-per-block smoothing idiom.
func (f *SVF) ProcessBlock(n int) float64 {
	f.EG.Advance(n)
	idx := f.EG.Cutoff() + int(f.CutoffOffset)
	return f.lut.Coeff(idx)
}

// Process runs one sample through the SVF at the given coefficient,
// returning the tap selected by Kind.
func (f *SVF) Process(input float64, coeff float64) float64 {
	v0 := input - f.low - f.band*f.Resonance
	f.band += v0 * coeff
	f.low += f.band * coeff
	switch f.Kind {
	case TypeLowPass:
		return f.low
	case TypeBandPass:
		return f.band
	default: // TypeHighPass
		return v0
	}
}

// ProcessStereo runs independent left/right samples through the filter,
// keeping separate low/band state per leg so a true-stereo source (the
// sampler channel's stereo sample data, spec §4.4) isn't smeared through a
// single shared state carried over from whichever leg ran last.
func (f *SVF) ProcessStereo(left, right, coeff float64) (outL, outR float64) {
	v0L := left - f.low - f.band*f.Resonance
	f.band += v0L * coeff
	f.low += f.band * coeff

	v0R := right - f.lowR - f.bandR*f.Resonance
	f.bandR += v0R * coeff
	f.lowR += f.bandR * coeff

	switch f.Kind {
	case TypeLowPass:
		return f.low, f.lowR
	case TypeBandPass:
		return f.band, f.bandR
	default: // TypeHighPass
		return v0L, v0R
	}
}
