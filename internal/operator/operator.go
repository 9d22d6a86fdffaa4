package operator

import (
	"math"
	"math/rand"

	"github.com/cbegin/sionfm-go/internal/tables"
)

// maxSuperVoices bounds the supersaw sub-voice count (spec glossary
// "supersaw").
const maxSuperVoices = 8

// SSGMode selects one of the classic AY-style SSG envelope shapes layered on
// top of the normal amplitude envelope, or SSGOff to disable it.
type SSGMode int

const (
	SSGOff SSGMode = iota
	SSGSawUp
	SSGSawDown
	SSGTriangle
	SSGHoldHigh
)

// Op is one FM operator: a phase-accumulating pulse generator driving its
// own amplitude envelope, with optional supersaw sub-voice detuning (spec
// §4.2).
type Op struct {
	Tables *tables.Set

	Note     int
	Multiple float64 // frequency ratio applied to the channel's base pitch
	Detune   float64 // additive semitone offset
	InputLevel int // 0..7, left-shift applied to the incoming FM sample before summation

	TotalLevel int // 0..127, attenuation in tables.LogSize units
	Mute       bool

	SSG SSGMode

	SuperCount  int     // 1..maxSuperVoices live supersaw voices
	SuperSpread float64 // cents of detune spread across sub-voices

	KeyOnPhaseReset bool // true: reset phase to 0 on note-on; false: PRNG reset

	Env Envelope

	phaseStep float64
	subPhase  [maxSuperVoices]float64
	rng       uint32
}

// NewOp returns an operator bound to t, with sane single-voice defaults.
func NewOp(t *tables.Set) *Op {
	return &Op{Tables: t, Multiple: 1, SuperCount: 1, KeyOnPhaseReset: true, rng: 0x1}
}

func (o *Op) superCount() int {
	n := o.SuperCount
	if n < 1 {
		n = 1
	}
	if n > maxSuperVoices {
		n = maxSuperVoices
	}
	return n
}

// NoteOn starts the operator's envelope for note, honoring the voice-steal
// discipline: stealHint forces a fast release and defers attack (and the
// accompanying phase reset) until the release has decayed to near-silence
// (spec §4.2).
func (o *Op) NoteOn(note int, stealHint bool) {
	o.Note = note
	o.phaseStep = o.Tables.PitchStep(note, o.Multiple) * detuneRatio(o.Detune)
	if o.Env.NoteOn(stealHint) {
		o.resetPhase()
	}
}

// NoteOff releases the envelope.
func (o *Op) NoteOff() {
	o.Env.NoteOff()
}

func (o *Op) resetPhase() {
	n := o.superCount()
	for i := 0; i < n; i++ {
		if o.KeyOnPhaseReset {
			o.subPhase[i] = 0
			continue
		}
		o.rng = o.rng*1664525 + 1013904223
		o.subPhase[i] = float64(o.rng>>16&tables.PhaseMask) * float64(tables.PhaseMask) / float64(1<<16)
	}
}

func detuneRatio(semitones float64) float64 {
	if semitones == 0 {
		return 1
	}
	return math.Pow(2, semitones/12)
}

// Advance advances every live sub-voice's phase by one sample, honoring an
// optional hard-sync addend (extraPhase, in PhaseSize units; 0 for no sync).
func (o *Op) Advance(extraPhase float64) {
	n := o.superCount()
	step := o.phaseStep
	for i := 0; i < n; i++ {
		spread := subVoiceDetune(i, n, o.SuperSpread)
		o.subPhase[i] += step*spread + extraPhase
		if o.subPhase[i] >= tables.PhaseSize {
			o.subPhase[i] -= tables.PhaseSize * math.Floor(o.subPhase[i]/tables.PhaseSize)
		} else if o.subPhase[i] < 0 {
			o.subPhase[i] += tables.PhaseSize * math.Ceil(-o.subPhase[i]/tables.PhaseSize)
		}
	}
}

// subVoiceDetune returns the frequency ratio for sub-voice i of n, spread
// symmetrically around 1.0 by spreadCents total width (classic supersaw
// detune fan).
func subVoiceDetune(i, n int, spreadCents float64) float64 {
	if n <= 1 || spreadCents == 0 {
		return 1
	}
	pos := float64(i)/float64(n-1)*2 - 1 // -1..1
	cents := pos * spreadCents / 2
	return math.Pow(2, cents/1200)
}

// Tick advances the amplitude envelope by one sample and resets phase if
// this tick performed the deferred post-steal attack entry.
func (o *Op) Tick() int {
	r := o.Env.Tick(o.Tables)
	if r.EnteredAttack {
		o.resetPhase()
	}
	return r.Level
}

// envLogIndex scales the envelope's 0..tables.EnvBottom level domain into
// tables.LogSize units for composition into the safe log lookup.
func (o *Op) envLogIndex() int {
	return o.Env.Level() * (tables.LogSize - 1) / tables.EnvBottom
}

func (o *Op) totalLevelIndex() int {
	tl := o.TotalLevel
	if tl < 0 {
		tl = 0
	}
	if tl > 127 {
		tl = 127
	}
	return tl * (tables.LogSize - 1) / 127
}

// ssgLevelIndex applies the SSG envelope shape on top of the normal
// amplitude envelope's raw level, producing an independent attenuation
// contribution in tables.LogSize units.
func (o *Op) ssgLevelIndex() int {
	if o.SSG == SSGOff {
		return 0
	}
	phase := float64(o.Env.Level()) / float64(tables.EnvBottom) // 0..1 over one envelope pass
	switch o.SSG {
	case SSGSawUp:
		return int(phase * float64(tables.LogSize-1))
	case SSGSawDown:
		return int((1 - phase) * float64(tables.LogSize-1))
	case SSGTriangle:
		if phase < 0.5 {
			return int(phase * 2 * float64(tables.LogSize-1))
		}
		return int((1 - phase) * 2 * float64(tables.LogSize-1))
	case SSGHoldHigh:
		return 0
	default:
		return 0
	}
}

// waveLogIndex samples the sine table at idx and returns its attenuation in
// tables.LogSize units plus the waveform's sign, matching the classic
// log-domain sine storage these FM cores use instead of linear samples.
func (o *Op) waveLogIndex(idx int) (atten int, sign float64) {
	s := o.Tables.SineTable[idx&tables.PhaseMask]
	mag := math.Abs(s)
	if mag < 1e-9 {
		return tables.LogSize - 1, 1
	}
	db := -20 * math.Log10(mag)
	i := int(db / 96.0 * float64(tables.LogSize-1))
	if i < 0 {
		i = 0
	}
	if i > tables.LogSize-1 {
		i = tables.LogSize - 1
	}
	if s < 0 {
		return i, -1
	}
	return i, 1
}

// Process produces one mono sample, RMS-normalizing across live supersaw
// sub-voices. fmInput is the incoming phase-modulation sample (already in
// phase-index domain); amLevel is the channel/LFO-driven AM contribution in
// tables.LogSize units (spec §4.2).
func (o *Op) Process(fmInput int, amLevel int) float64 {
	if o.Mute {
		return 0
	}
	t := o.Tables
	n := o.superCount()
	envIdx := o.envLogIndex() + o.ssgLevelIndex()
	tlIdx := o.totalLevelIndex()
	shifted := fmInput << uint(clampShift(o.InputLevel))

	sum := 0.0
	for i := 0; i < n; i++ {
		idx := (int(o.subPhase[i]) + shifted) & tables.PhaseMask
		waveIdx, sign := o.waveLogIndex(idx)
		composed := tables.ClampLogIndex(waveIdx + envIdx + tlIdx + amLevel)
		sum += t.LogTable[composed] * sign
	}
	if n > 1 {
		sum /= math.Sqrt(float64(n))
	}
	return sum
}

// ProcessStereo is Process's stereo counterpart: each sub-voice is panned
// via the cosine pan table, spread symmetrically across the stereo field,
// before summing (spec §4.2 "for stereo super mode each sub-voice is
// panned").
func (o *Op) ProcessStereo(fmInput int, amLevel int) (left, right float64) {
	if o.Mute {
		return 0, 0
	}
	t := o.Tables
	n := o.superCount()
	envIdx := o.envLogIndex() + o.ssgLevelIndex()
	tlIdx := o.totalLevelIndex()
	shifted := fmInput << uint(clampShift(o.InputLevel))

	for i := 0; i < n; i++ {
		idx := (int(o.subPhase[i]) + shifted) & tables.PhaseMask
		waveIdx, sign := o.waveLogIndex(idx)
		composed := tables.ClampLogIndex(waveIdx + envIdx + tlIdx + amLevel)
		sample := t.LogTable[composed] * sign

		panPos := subVoicePan(i, n)
		l, r := t.PanTable[panPos][0], t.PanTable[panPos][1]
		left += sample * l
		right += sample * r
	}
	return left, right
}

// subVoicePan maps sub-voice i of n onto the 0..128 pan table domain,
// spreading voices symmetrically from hard left to hard right.
func subVoicePan(i, n int) int {
	if n <= 1 {
		return 64
	}
	return i * 128 / (n - 1)
}

func clampShift(v int) int {
	if v < 0 {
		return 0
	}
	if v > 7 {
		return 7
	}
	return v
}

// RandomizeSeed reseeds the PRNG used for non-deterministic phase reset; a
// seed of 0 is replaced with a random odd seed from math/rand.
func (o *Op) RandomizeSeed(seed uint32) {
	if seed == 0 {
		seed = uint32(rand.Int31()) | 1
	}
	o.rng = seed
}
