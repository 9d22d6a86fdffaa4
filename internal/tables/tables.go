// Package tables holds the process-wide reference tables the synthesis core
// reads from but never mutates during playback: waveform/log LUTs, pitch
// tables, envelope rate tables, key-scaling tables, the pan cosine table, LFO
// waveform tables, and PCM noise tables. They are built once per sample rate
// via Get and torn down only at process shutdown.
package tables

import (
	"math"
	"sync"
)

const (
	// PhaseBits sizes the sine/log wavetables: 2^PhaseBits entries per cycle.
	PhaseBits = 10
	PhaseSize = 1 << PhaseBits
	PhaseMask = PhaseSize - 1

	// LogBits sizes the logarithmic amplitude table. A composed operator index
	// (wave + envelope + AM) can span up to 3 tables' worth of range under
	// heavy modulation; see Tables.LogTable and ClampLogIndex.
	LogBits   = 8
	LogSize   = 1 << LogBits
	LogMax    = 3*LogSize - 1
	EnvBottom = 1024 // envelope-bottom: the numeric floor of the EG level domain
	EnvTop    = 0    // envelope-top: full output

	// PanTableSize is the number of entries in the pan cosine table (0..128).
	PanTableSize = 129

	// LFOTableSize is the number of entries in one LFO waveform cycle.
	LFOTableSize = 256

	// RateLevels is the number of distinct envelope rate levels (64), matching
	// the historical attack/decay/sustain/release rate encoding.
	RateLevels = 64
)

// Set is the full collection of reference tables for one sample rate.
type Set struct {
	SampleRate int

	// SineTable[i] is sin(2*pi*i/PhaseSize) scaled to [-1,1].
	SineTable [PhaseSize]float64

	// LogTable converts a linear-domain amplitude index into a log-amplitude
	// multiplier. Indexing is clamped (never wrapped) to [0, LogMax] to match
	// historical driver behavior under heavy modulation (spec: "Safe log
	// lookup").
	LogTable [3 * LogSize]float64

	// KeyScaleTable[note] is a 0..1 key-scaling multiplier applied to envelope
	// rates so higher notes decay faster.
	KeyScaleTable [128]float64

	// PanTable[i] for i in [0,128] gives (left, right) gain for pan position i
	// (0 = hard left, 64 = center, 128 = hard right), built from cos/sin so
	// left^2+right^2 stays constant (equal-power panning).
	PanTable [PanTableSize][2]float64

	// AttackIncrement[level] and ReleaseIncrement[level] are per-tick integer
	// envelope steps indexed by a 0..63 rate level, precomputed for SampleRate.
	AttackIncrement  [RateLevels]int32
	ReleaseIncrement [RateLevels]int32

	// AttackShift[level] is the right-shift applied to the remaining attack
	// distance each tick (level -= 1 + (level >> shift)); lower rate levels
	// get a larger shift, producing the characteristic slow exponential-style
	// attack curve (spec §4.2).
	AttackShift [RateLevels]int32

	// TimerStep[level] is the per-tick timer decrement for a 0..63 rate level;
	// advancing the EG happens when the running timer goes negative (spec §4.2).
	TimerStep [RateLevels]int32

	// LFOWave[w] holds a waveform's 256-entry table; w indexes
	// triangle/saw/square/noise in that order.
	LFOWave [4][LFOTableSize]float64

	// NoiseTable is a precomputed PCM noise table driven by a 17-bit LFSR,
	// used by the noise pulse-generator waveform and sample/hold LFO noise.
	NoiseTable [PhaseSize]float64
}

var (
	mu    sync.Mutex
	cache = map[int]*Set{}
)

// Get returns the (lazily built, cached) reference table set for sampleRate.
// Safe for concurrent use; the returned *Set is never mutated after first
// build so callers may read it without further synchronization.
func Get(sampleRate int) *Set {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := cache[sampleRate]; ok {
		return s
	}
	s := build(sampleRate)
	cache[sampleRate] = s
	return s
}

// Reset discards all cached table sets. Intended for tests and for process
// shutdown; playback must not be in progress when this is called.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cache = map[int]*Set{}
}

func build(sampleRate int) *Set {
	s := &Set{SampleRate: sampleRate}
	buildSineTable(s)
	buildLogTable(s)
	buildKeyScaleTable(s)
	buildPanTable(s)
	buildEnvelopeRateTables(s)
	buildLFOWaveTables(s)
	buildNoiseTable(s)
	return s
}

func buildSineTable(s *Set) {
	for i := 0; i < PhaseSize; i++ {
		s.SineTable[i] = math.Sin(2 * math.Pi * float64(i) / PhaseSize)
	}
}

// buildLogTable fills a monotonically decreasing log-amplitude curve over
// 3*LogSize entries; index 0 is full scale, LogMax is silence. Composed
// indices beyond LogSize (wave + envelope + AM can each contribute up to
// LogSize) still land on a valid, clamped multiplier.
func buildLogTable(s *Set) {
	n := len(s.LogTable)
	for i := 0; i < n; i++ {
		// -96dB floor spread across the full index range.
		db := -96.0 * float64(i) / float64(n-1)
		s.LogTable[i] = math.Pow(10, db/20)
	}
}

func buildKeyScaleTable(s *Set) {
	for note := 0; note < 128; note++ {
		// Higher notes scale rates up (faster decay); centered at middle C (60).
		s.KeyScaleTable[note] = math.Pow(2, float64(note-60)/24.0)
	}
}

func buildPanTable(s *Set) {
	for i := 0; i < PanTableSize; i++ {
		angle := (math.Pi / 2) * float64(i) / float64(PanTableSize-1)
		s.PanTable[i] = [2]float64{math.Cos(angle), math.Sin(angle)}
	}
}

// buildEnvelopeRateTables derives per-tick integer increments and timer steps
// for the 64 rate levels, scaled to sampleRate so identical rate levels
// produce the same wall-clock envelope shape at 44100 and 48000 Hz.
func buildEnvelopeRateTables(s *Set) {
	ratio := float64(s.SampleRate) / 44100.0
	for level := 0; level < RateLevels; level++ {
		// Rate 0 means "hold" (no movement); rate 63 is the fastest.
		if level == 0 {
			s.AttackIncrement[level] = 0
			s.ReleaseIncrement[level] = 0
			s.TimerStep[level] = 1
			continue
		}
		shape := float64(level) / float64(RateLevels-1)
		s.AttackIncrement[level] = int32(math.Max(1, shape*shape*64*ratio))
		s.ReleaseIncrement[level] = int32(math.Max(1, shape*shape*32*ratio))
		s.TimerStep[level] = int32(math.Max(1, shape*63*ratio))
		// Fastest rate (63) shifts by 0 (level -= 1 + level, i.e. halves each
		// tick); slowest live rate shifts by up to 13, giving a near-linear
		// creep for low attack rates.
		s.AttackShift[level] = int32(math.Round(13 * (1 - shape)))
	}
}

func buildLFOWaveTables(s *Set) {
	for i := 0; i < LFOTableSize; i++ {
		phase := float64(i) / LFOTableSize
		// 0 = triangle
		if phase < 0.5 {
			s.LFOWave[0][i] = 4*phase - 1
		} else {
			s.LFOWave[0][i] = 3 - 4*phase
		}
		// 1 = saw
		s.LFOWave[1][i] = 1 - 2*phase
		// 2 = square
		if phase < 0.5 {
			s.LFOWave[2][i] = 1
		} else {
			s.LFOWave[2][i] = -1
		}
	}
	// 3 = noise, filled from the shared LFSR noise sequence below.
	lfsr := uint32(0x1FFFF)
	for i := 0; i < LFOTableSize; i++ {
		lfsr = (lfsr >> 1) ^ (-(lfsr & 1) & 0x12000)
		s.LFOWave[3][i] = float64(lfsr&0xFFFF)/32768.0 - 1.0
	}
}

func buildNoiseTable(s *Set) {
	lfsr := uint32(0x7FFF)
	for i := 0; i < PhaseSize; i++ {
		lfsr = (lfsr >> 1) ^ (-(lfsr & 1) & 0xB400)
		s.NoiseTable[i] = float64(lfsr&0x7FFF)/16384.0 - 1.0
	}
}

// ClampLogIndex clamps a composed (wave + envelope + AM) log-table index to
// the valid range instead of wrapping, matching historical driver behavior
// under heavy modulation (spec §4.2 "Safe log lookup").
func ClampLogIndex(idx int) int {
	if idx < 0 {
		return 0
	}
	if idx > LogMax {
		return LogMax
	}
	return idx
}

// PitchStep returns the phase increment (in PhaseSize units per sample) for a
// MIDI note number at the given multiple, at this table set's sample rate.
func (s *Set) PitchStep(note int, multiple float64) float64 {
	freq := 440 * math.Pow(2, float64(note-69)/12) * multiple
	return freq * PhaseSize / float64(s.SampleRate)
}
