// Package operator implements the FM pulse generator: phase accumulation,
// supersaw sub-voices, the per-operator amplitude envelope, SSG envelope
// mode, and the click-free voice-steal handoff (spec §4.2).
package operator

import "github.com/cbegin/sionfm-go/internal/tables"

// EGState is one of the amplitude envelope's five live states, plus Off.
type EGState int

// StateOff is the zero value so an un-started Envelope reads as inaudible
// (spec §4.2 voice-steal discipline consults Audible() before the first
// NoteOn ever runs).
const (
	StateOff EGState = iota
	StateAttack
	StateDecay1
	StateDecay2
	StateSustain
	StateRelease
)

// Rates holds the four 0..63 rate-level indices and the two breakpoint
// levels (0..tables.EnvBottom, where 0 is full output) that drive the
// amplitude envelope.
type Rates struct {
	AttackRate   int
	Decay1Rate   int
	Decay2Rate   int
	ReleaseRate  int
	Decay1Level  int // level decay1 moves toward before decay2 takes over
	SustainLevel int // level decay2 moves toward and sustain holds at
}

// Envelope is the operator's 5-state-plus-off amplitude envelope generator
// (spec §4.2). It advances by a per-tick timer/increment pattern rather than
// the block-amortized stepping used by the filter EG, matching the original
// hardware-driver cadence the spec calls out.
type Envelope struct {
	Rates Rates

	state          EGState
	level          int // 0 (full output) .. tables.EnvBottom (silence)
	timer          int32
	deferredAttack bool // steal in progress: jump to attack once release nears silence
}

// TickResult reports the post-tick level and whether this tick performed the
// deferred, post-steal transition into attack, so the operator can reset its
// phase at exactly that instant (spec §4.2 "Voice-stealing discipline").
type TickResult struct {
	Level         int
	EnteredAttack bool
}

// Audible reports whether the envelope has not yet decayed to silence,
// matching the spec's voice-steal test ("the EG is still audible").
func (e *Envelope) Audible() bool {
	return e.state != StateOff && e.level < tables.EnvBottom-80
}

// State returns the current envelope state.
func (e *Envelope) State() EGState { return e.state }

// Level returns the current level, 0 (full output) .. tables.EnvBottom
// (silence).
func (e *Envelope) Level() int { return e.level }

// NoteOn starts a new note. If the envelope is still audible, or stealHint
// is set by the channel, the envelope is forced into a fast release instead
// of restarting immediately; attack begins only once the release has decayed
// to near-silence (spec §4.2). Otherwise attack starts immediately.
func (e *Envelope) NoteOn(stealHint bool) (enteredAttackNow bool) {
	if e.Audible() || stealHint {
		e.state = StateRelease
		e.deferredAttack = true
		e.timer = 0
		return false
	}
	e.level = tables.EnvBottom
	e.enterAttack()
	return true
}

// NoteOff releases the envelope unconditionally.
func (e *Envelope) NoteOff() {
	if e.state == StateOff {
		return
	}
	e.state = StateRelease
	e.deferredAttack = false
	e.timer = 0
}

func (e *Envelope) enterAttack() {
	e.deferredAttack = false
	if e.Rates.AttackRate == 0 {
		e.level = 0
		e.enterDecay1()
		return
	}
	e.state = StateAttack
	e.timer = 0
}

func (e *Envelope) enterDecay1() {
	if e.Rates.Decay1Rate == 0 || e.level >= e.Rates.Decay1Level {
		e.level = clampLevel(e.Rates.Decay1Level)
		e.enterDecay2()
		return
	}
	e.state = StateDecay1
	e.timer = 0
}

func (e *Envelope) enterDecay2() {
	if e.Rates.Decay2Rate == 0 || e.level >= e.Rates.SustainLevel {
		e.level = clampLevel(e.Rates.SustainLevel)
		e.state = StateSustain
		return
	}
	e.state = StateDecay2
	e.timer = 0
}

func (e *Envelope) currentRate() int {
	switch e.state {
	case StateAttack:
		return clampRate(e.Rates.AttackRate)
	case StateDecay1:
		return clampRate(e.Rates.Decay1Rate)
	case StateDecay2:
		return clampRate(e.Rates.Decay2Rate)
	case StateRelease:
		if e.deferredAttack {
			return tables.RateLevels - 1
		}
		return clampRate(e.Rates.ReleaseRate)
	default:
		return 0
	}
}

// Tick advances the envelope by one sample. t is snapshot-read fresh each
// call (both the increment and level tables) so a concurrent table swap
// mid-tick cannot tear a read (spec §4.2).
func (e *Envelope) Tick(t *tables.Set) TickResult {
	if e.state == StateSustain || e.state == StateOff {
		return TickResult{Level: e.level}
	}
	rate := e.currentRate()
	e.timer -= t.TimerStep[rate]
	entered := false
	for e.timer < 0 {
		if e.step(t, rate) {
			entered = true
		}
		if e.state == StateSustain || e.state == StateOff {
			break
		}
		rate = e.currentRate()
		e.timer += t.TimerStep[rate]
	}
	return TickResult{Level: e.level, EnteredAttack: entered}
}

func (e *Envelope) step(t *tables.Set, rate int) (enteredAttack bool) {
	switch e.state {
	case StateAttack:
		shift := uint(t.AttackShift[rate])
		e.level -= 1 + (e.level >> shift)
		if e.level <= 0 {
			e.level = 0
			e.enterDecay1()
		}
	case StateDecay1:
		e.level += int(t.ReleaseIncrement[rate])
		if e.level >= e.Rates.Decay1Level {
			e.level = e.Rates.Decay1Level
			e.enterDecay2()
		}
	case StateDecay2:
		e.level += int(t.ReleaseIncrement[rate])
		if e.level >= e.Rates.SustainLevel {
			e.level = e.Rates.SustainLevel
			e.state = StateSustain
		}
	case StateRelease:
		e.level += int(t.ReleaseIncrement[rate])
		if e.deferredAttack && e.level >= tables.EnvBottom-80 {
			e.level = clampLevel(e.level)
			e.enterAttack()
			return true
		}
		if e.level >= tables.EnvBottom {
			e.level = tables.EnvBottom
			e.state = StateOff
		}
	}
	e.level = clampLevel(e.level)
	return false
}

func clampLevel(v int) int {
	if v < tables.EnvTop {
		return tables.EnvTop
	}
	if v > tables.EnvBottom {
		return tables.EnvBottom
	}
	return v
}

func clampRate(v int) int {
	if v < 0 {
		return 0
	}
	if v > tables.RateLevels-1 {
		return tables.RateLevels - 1
	}
	return v
}
