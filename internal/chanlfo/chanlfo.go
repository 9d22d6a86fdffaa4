// Package chanlfo implements the per-channel low-frequency oscillator (spec
// §3 "LFO state"): a 256-entry waveform table lookup driven by an integer
// timer, with optional BPM-synced timer-step recomputation. Every FM,
// sampler, and streaming channel owns one instance; this supersedes the
// teacher's internal/lfo, which modeled a single LFO shared across an
// entire engine rather than one per channel.
package chanlfo

import "github.com/cbegin/sionfm-go/internal/tables"

// Waveform selects which of the table set's four LFO tables to read.
type Waveform int

const (
	WaveTriangle Waveform = iota
	WaveSaw
	WaveSquare
	WaveNoise
)

// TimeMode selects how the timer step is derived: either a fixed rate in Hz
// or one synced to the current BPM and a musical beat division.
type TimeMode int

const (
	// TimeModeFree: rate is a fixed Hz value set directly.
	TimeModeFree TimeMode = iota
	// TimeModeSynced: period = one beat at the given division.
	TimeModeSynced
	// TimeModeDotted: period = 1.5x the synced period (spec §11 Open
	// Question: dotted/triplet are period multipliers, matching source).
	TimeModeDotted
	// TimeModeTriplet: period = 2/3 the synced period.
	TimeModeTriplet
)

// LFO is one channel's low-frequency oscillator: 256-entry waveform table,
// phase index 0..255, and an integer timer that decrements once per sample
// by timerStep, wrapping with timerInitial on underflow.
type LFO struct {
	tables *tables.Set

	waveform Waveform
	depth    float64

	phase        int
	timer        int
	timerInitial int
	timerStep    int

	mode       TimeMode
	beatDiv    float64 // beats per cycle, e.g. 0.25 = 16th note
	sampleRate int
	bpm        float64
}

// New creates a channel LFO bound to the given table set and sample rate.
func New(ts *tables.Set, sampleRate int) *LFO {
	return &LFO{
		tables:       ts,
		sampleRate:   sampleRate,
		timerInitial: 1,
		timerStep:    1,
		beatDiv:      0.25,
		bpm:          120,
	}
}

// SetWaveform selects the LFO waveform table.
func (l *LFO) SetWaveform(w Waveform) {
	if w < WaveTriangle || w > WaveNoise {
		w = WaveTriangle
	}
	l.waveform = w
}

// SetDepth sets the modulation depth multiplier applied to the table
// lookup (units depend on target: semitones for PM, linear for AM/filter).
func (l *LFO) SetDepth(depth float64) {
	l.depth = depth
}

// SetRateHz configures a free-running rate in Hz and switches to
// TimeModeFree, recomputing the timer step immediately.
func (l *LFO) SetRateHz(hz float64) {
	l.mode = TimeModeFree
	if hz <= 0 {
		l.timerStep = 0
		l.timerInitial = 1
		return
	}
	period := float64(l.sampleRate) / hz
	l.recomputeFromPeriod(period)
}

// SetSynced configures a BPM-synced mode and beat division (beats per
// cycle, e.g. 0.25 = a sixteenth note) and recomputes the timer step.
func (l *LFO) SetSynced(mode TimeMode, beatDiv float64) {
	l.mode = mode
	l.beatDiv = beatDiv
	l.recomputeSynced()
}

// SetBPM updates the tempo; if the LFO is in a synced mode this recomputes
// the timer step (spec §3: "whenever either the mode or the BPM changes").
func (l *LFO) SetBPM(bpm float64) {
	l.bpm = bpm
	if l.mode != TimeModeFree {
		l.recomputeSynced()
	}
}

func (l *LFO) recomputeSynced() {
	if l.bpm <= 0 {
		return
	}
	secondsPerBeat := 60.0 / l.bpm
	period := secondsPerBeat * l.beatDiv * float64(l.sampleRate)
	switch l.mode {
	case TimeModeDotted:
		period *= 1.5
	case TimeModeTriplet:
		period *= 2.0 / 3.0
	}
	l.recomputeFromPeriod(period)
}

func (l *LFO) recomputeFromPeriod(periodSamples float64) {
	if periodSamples <= 0 {
		l.timerStep = 0
		l.timerInitial = 1
		return
	}
	// 256 phase steps per cycle; timerInitial samples elapse per phase step.
	step := periodSamples / 256.0
	if step < 1 {
		step = 1
	}
	l.timerInitial = int(step)
	if l.timerInitial < 1 {
		l.timerInitial = 1
	}
	l.timerStep = 1
	l.timer = l.timerInitial
}

// Value returns the current waveform sample scaled by depth, without
// advancing state.
func (l *LFO) Value() float64 {
	if l.tables == nil || l.depth == 0 {
		return 0
	}
	return l.tables.LFOWave[l.waveform][l.phase&(tables.LFOTableSize-1)] * l.depth
}

// Advance steps the timer by one sample; on underflow it advances the
// phase by one table entry (wrapping mod 256) and reloads the timer from
// timerInitial (spec §3's "wrap-refill"). Call once per sample.
func (l *LFO) Advance() {
	if l.timerStep == 0 {
		return
	}
	l.timer -= l.timerStep
	for l.timer < 0 {
		l.phase = (l.phase + 1) & (tables.LFOTableSize - 1)
		l.timer += l.timerInitial
	}
}

// Active reports whether this LFO currently contributes any modulation.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.timerStep != 0
}

// Reset rewinds phase and timer to the start of a cycle; used on voice
// retrigger so the LFO restarts deterministically.
func (l *LFO) Reset() {
	l.phase = 0
	l.timer = l.timerInitial
}
