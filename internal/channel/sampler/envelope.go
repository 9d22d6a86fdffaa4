package sampler

import "github.com/cbegin/sionfm-go/internal/tables"

// State is one of the sampler voice's four live ADSR stages, plus Idle.
type State int

const (
	StateIdle State = iota
	StateAttack
	StateDecay
	StateSustain
	StateRelease
)

// clickGuardSamples is the short fade multiplied in once the envelope
// reaches idle, smoothing the exact silence transition (spec §4.4
// "reaching idle triggers a short (~512-sample at 48 kHz) click-guard
// envelope multiplication").
const clickGuardSamples = 512

// forceReleaseRate is the release rate used for voice-steal declick: the
// fastest of the 64 rate levels (spec §4.4 "forced into release with rate
// 63 (fastest)").
const forceReleaseRate = tables.RateLevels - 1

// ADSR is the sampler channel's linear-domain amplitude envelope (spec
// §4.4). Unlike internal/operator's log-domain EG, level runs 0 (silence)
// to 1 (full output) directly, matching the spec's literal "attack targets
// 1.0; decay targets sustain/128; release targets 0" wording.
type ADSR struct {
	AttackRate   int     // 0..63; 0 holds the stage indefinitely
	DecayRate    int     // 0..63
	ReleaseRate  int     // 0..63
	SustainLevel float64 // 0..1, target for decay and the level sustain holds at
	FreqRatio    float64 // env_freq_ratio/100; scales stage sample counts, 1 = no scaling

	state     State
	level     float64
	target    float64
	increment float64
	timer     int64 // -1 means "hold": never advance this stage via the timer

	clickGuardRemaining int
}

// NewADSR returns an envelope with sane defaults (no scaling, full sustain).
func NewADSR() *ADSR {
	return &ADSR{FreqRatio: 1, SustainLevel: 1}
}

func (e *ADSR) State() State     { return e.state }
func (e *ADSR) Level() float64   { return e.level }
func (e *ADSR) Idle() bool       { return e.state == StateIdle }
func (e *ADSR) Audible() bool    { return e.state != StateIdle && e.level > 0.1 }

// NoteOn starts attack from silence. Callers handle voice-steal declick
// themselves by checking Audible() and calling ForceFastRelease instead when
// a voice is still sounding (spec §4.4 "Voice-steal declick").
func (e *ADSR) NoteOn() {
	e.level = 0
	e.clickGuardRemaining = 0
	e.enterStage(StateAttack, 1.0, e.AttackRate)
}

// NoteOff releases at the configured release rate.
func (e *ADSR) NoteOff() {
	if e.state == StateIdle {
		return
	}
	e.enterStage(StateRelease, 0, e.ReleaseRate)
}

// ForceFastRelease forces an immediate release at the fastest rate,
// regardless of the configured ReleaseRate, for voice-steal declick (spec
// §4.4: "the current amp stage is forced into release with rate 63").
func (e *ADSR) ForceFastRelease() {
	e.enterStage(StateRelease, 0, forceReleaseRate)
}

func (e *ADSR) enterStage(s State, target float64, rate int) {
	e.state = s
	e.target = target
	samples := stageSamples(rate, e.ratio())
	if samples < 0 {
		e.timer = -1
		e.increment = 0
		return
	}
	e.timer = int64(samples)
	e.increment = (target - e.level) / float64(samples)
}

func (e *ADSR) ratio() float64 {
	if e.FreqRatio <= 0 {
		return 1
	}
	return e.FreqRatio
}

// Tick advances the envelope by one sample and returns the level, with the
// post-idle click-guard fade applied on top.
func (e *ADSR) Tick() float64 {
	switch e.state {
	case StateIdle:
		return e.tickClickGuard(0)
	case StateSustain:
		return e.level
	}
	if e.timer >= 0 {
		e.level += e.increment
		e.timer--
		if e.timer < 0 {
			e.level = e.target
			e.advanceStage()
		}
	}
	return e.tickClickGuard(e.level)
}

func (e *ADSR) advanceStage() {
	switch e.state {
	case StateAttack:
		e.enterStage(StateDecay, e.SustainLevel, e.DecayRate)
	case StateDecay:
		e.state = StateSustain
	case StateRelease:
		e.state = StateIdle
		e.clickGuardRemaining = clickGuardSamples
	}
}

func (e *ADSR) tickClickGuard(level float64) float64 {
	if e.clickGuardRemaining <= 0 {
		return level
	}
	fade := float64(e.clickGuardRemaining) / float64(clickGuardSamples)
	e.clickGuardRemaining--
	return level * fade
}

// stageSamples derives a stage's sample count from its 0..63 rate level,
// mirroring internal/tables' buildEnvelopeRateTables shape-squared curve
// (spec §4.4: "derived from a reference envelope-rate table scaled by
// env_freq_ratio/100"). Rate 0 returns -1 ("hold indefinitely"), matching
// the original engine's convention that a zero rate parks a stage rather
// than completing it instantly.
func stageSamples(rate int, ratio float64) int {
	if rate <= 0 {
		return -1
	}
	if rate > tables.RateLevels-1 {
		rate = tables.RateLevels - 1
	}
	shape := float64(rate) / float64(tables.RateLevels-1)
	base := 2.0 * 48000.0 * (1 - shape) * (1 - shape)
	samples := base / ratio
	if samples < 1 {
		samples = 1
	}
	return int(samples)
}
