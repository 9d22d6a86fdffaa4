// Package fm implements the FM voice channel (spec §4.2): up to 4
// pre-allocated operators wired per one of 16 algorithm topologies, routed
// through the chip's shared pipes, with a per-channel SVF filter, LFO, and
// kill-fade declick. Grounded on
// _examples/original_source/src/chip/channels/siopm_channel_fm.cpp's
// set_algorithm/set_pipes dispatch, translated into the data-driven
// algorithm.go wiring tables and adapted onto this module's
// internal/operator, internal/pipe, internal/filter, and internal/chanlfo
// packages.
package fm

import (
	"math"

	"github.com/cbegin/sionfm-go/internal/chanlfo"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/operator"
	"github.com/cbegin/sionfm-go/internal/pipe"
	"github.com/cbegin/sionfm-go/internal/tables"
)

// OutputMode selects how the channel's carrier sum is written into the
// chip's destination accumulator (spec §3 "Channel").
type OutputMode int

const (
	OutputStandard OutputMode = iota // sum (same as OutputAdd)
	OutputAdd                        // sum
	OutputRing                       // ring-modulate with existing content
	OutputReplace                    // overwrite; idle channels still write nothing
)

// InputMode selects what an idle/unwired pipe reads as its input.
type InputMode int

const (
	InputZero InputMode = iota
	InputPipe
	InputFeedback
)

// idleMargin: a carrier whose envelope level is within this many units of
// tables.EnvBottom (the envelope's quietest value; lower Level() values are
// louder) is treated as contributing silence (spec §3: "idle channels (all
// carriers below the idle threshold) skip DSP entirely").
const idleMargin = 4

// fmScale converts an operator's normalized float output into the pipe's
// integer phase-modulation domain. Chosen so a unity-amplitude modulator at
// InputLevel 0 nudges the carrier's phase index by a musically useful
// fraction of one table cycle; deeper InputLevel values (1-7, left-shifted
// in operator.Op.Process) scale this up further.
const fmScale = tables.PhaseSize / 8

// Channel is one FM voice: up to 4 operators, 2 shared pipes, and the
// ambient per-channel state every channel kind carries (spec §3).
type Channel struct {
	tables *tables.Set

	operators     [4]*operator.Op
	wiring        algorithmTable
	operatorCount int
	algorithm     int
	analogLike    bool
	activeOp      int

	pipe0, pipe1 *pipe.Pipe
	firstWrite   [4]bool // which operators establish (Write) vs. sum (Add) into their output pipe

	feedbackLevel int // 0..7, user feedback amount on the designated feedback operator
	feedbackOp    int // index of the operator that self-modulates
	feedbackLast  float64

	Filter   filter.SVF
	LFO      *chanlfo.LFO
	KillFade filter.KillFade

	SendLevels [4]float64
	Pan        int // 0..128, 64 = center
	GainDB     float64

	OutputMode OutputMode
	InputMode  InputMode

	idle bool

	// Per-block scratch, grown like pipe.Resize (never shrunk, never
	// reallocated mid-block): the AM contribution for each sample in the
	// block (the channel's one LFO drives every operator equally) and the
	// running carrier sum, since operators are now processed one at a time
	// across the whole block rather than interleaved per sample.
	amBuf      []float64
	carrierBuf []float64
}

// New creates an FM channel with operators pre-allocated for the channel's
// lifetime; operator count and wiring are selected later via SetAlgorithm,
// never by allocating new operators (spec §4.2 "fixed pre-allocated
// 4-operator slots").
func New(ts *tables.Set, sampleRate, blockLen int, cutoffLUT *filter.CutoffLUT) *Channel {
	c := &Channel{
		tables:     ts,
		pipe0:      pipe.New(blockLen),
		pipe1:      pipe.New(blockLen),
		SendLevels: [4]float64{1, 0, 0, 0},
		Pan:        64,
		idle:       true,
	}
	for i := range c.operators {
		c.operators[i] = operator.NewOp(ts)
	}
	c.Filter = *filter.NewSVF(cutoffLUT)
	c.LFO = chanlfo.New(ts, sampleRate)
	c.SetAlgorithm(1, false, 0)
	return c
}

// SetAlgorithm reconfigures operator count and wiring. It short-circuits
// when the requested configuration matches the current one, preventing
// redundant pipe rewiring mid-note (spec: "set_algorithm short-circuit
// gating on (analog_like, operator_count, algorithm) unchanged").
func (c *Channel) SetAlgorithm(operatorCount int, analogLike bool, algorithm int) {
	if operatorCount == c.operatorCount && analogLike == c.analogLike && algorithm == c.algorithm {
		return
	}
	if operatorCount < 1 {
		operatorCount = 1
	}
	if operatorCount > 4 {
		operatorCount = 4
	}
	c.operatorCount = operatorCount
	c.analogLike = analogLike
	c.algorithm = algorithm
	c.wiring = wiringFor(operatorCount, algorithm)
	c.firstWrite = firstWriteFlags(c.wiring, operatorCount)
	c.activeOp = operatorCount - 1
	if c.InputMode == InputFeedback {
		c.SetFeedback(c.feedbackLevel, 0)
	}
}

// SetFeedback sets the self-modulation amount (0..7) and which operator
// index self-feeds.
func (c *Channel) SetFeedback(level, opIndex int) {
	if level < 0 {
		level = 0
	} else if level > 7 {
		level = 7
	}
	if opIndex < 0 || opIndex >= c.operatorCount {
		opIndex = 0
	}
	c.feedbackLevel = level
	c.feedbackOp = opIndex
}

// ActiveOperator returns the operator currently designated for per-operator
// parameter writes (spec §3: "only one operator at a time is designated
// active").
func (c *Channel) ActiveOperator() *operator.Op {
	return c.operators[c.activeOp]
}

// SetActiveOperator selects which operator index (0..operatorCount-1)
// subsequent per-operator parameter writes target.
func (c *Channel) SetActiveOperator(i int) {
	if i >= 0 && i < c.operatorCount {
		c.activeOp = i
	}
}

// NoteOn triggers every operator and unwinds any running kill fade.
func (c *Channel) NoteOn(note int, stealHint bool) {
	for i := 0; i < c.operatorCount; i++ {
		c.operators[i].NoteOn(note, stealHint)
	}
	c.KillFade.Start(0)
	c.idle = false
}

// NoteOff releases every operator's envelope.
func (c *Channel) NoteOff() {
	for i := 0; i < c.operatorCount; i++ {
		c.operators[i].NoteOff()
	}
}

// Kill starts the kill-fade declick and will reset the channel to idle once
// the fade completes (spec §4.6 "Kill fade").
func (c *Channel) Kill(fadeSamples int) {
	c.KillFade.Start(fadeSamples)
}

// Idle reports whether this voice is free for reallocation to a new note
// (spec §7 "Resource exhaustion": voice-pool allocation needs to tell idle
// channels from ones still sounding).
func (c *Channel) Idle() bool { return c.idle }

func (c *Channel) growScratch(length int) {
	if cap(c.amBuf) < length {
		c.amBuf = make([]float64, length)
		c.carrierBuf = make([]float64, length)
	} else {
		c.amBuf = c.amBuf[:length]
		c.carrierBuf = c.carrierBuf[:length]
	}
}

// runOperator processes operator opIdx across the entire block, reading its
// wired input pipe (if any) and writing its wired output pipe (if any),
// before the next operator index runs. Operators are processed in ascending
// index order, which every algorithm table wires so a modulator's full
// block output is already resident in its pipe before the consuming
// operator's pass begins (spec §3 "Pipe").
func (c *Channel) runOperator(opIdx, length int) {
	// Each operator makes its own full-block pass over the pipes.
	c.pipe0.Reset()
	c.pipe1.Reset()
	w := c.wiring[opIdx]
	op := c.operators[opIdx]
	rmw := w.in != pipeNone && w.in == w.out
	isFeedback := opIdx == c.feedbackOp && c.feedbackLevel > 0
	fb := c.feedbackLast

	for i := 0; i < length; i++ {
		var inVal int
		switch {
		case rmw:
			inVal = int(c.pipeAt(w.in).Peek())
		case w.in != pipeNone:
			inVal = int(c.pipeAt(w.in).Read())
		case isFeedback:
			inVal = int(fb*fmScale) << uint(c.feedbackLevel-1)
		}

		amLevel := 0
		if c.LFO.Active() {
			amLevel = int(c.amBuf[i] * float64(tables.LogSize-1))
		}
		op.Tick()
		sample := op.Process(inVal, amLevel)

		if isFeedback {
			fb = sample
		}
		if rmw {
			c.pipeAt(w.out).Write(int32(sample * fmScale))
		} else if w.out != pipeNone {
			if c.firstWrite[opIdx] {
				c.pipeAt(w.out).Write(int32(sample * fmScale))
			} else {
				c.pipeAt(w.out).Add(int32(sample * fmScale))
			}
		}
		if w.carrier {
			c.carrierBuf[i] += sample
		}
	}
	if isFeedback {
		c.feedbackLast = fb
	}
}

func (c *Channel) pipeAt(k wireKind) *pipe.Pipe {
	if k == pipe1 {
		return c.pipe1
	}
	return c.pipe0
}

// Process renders length samples starting at start into buf (interleaved,
// channels-wide), summing this channel's carrier output with level gain.
// Idle channels (all carriers below the idle threshold) skip DSP entirely
// (spec §3 invariant).
func (c *Channel) Process(buf []float32, channels, start, length int) {
	if c.idle {
		return
	}
	if c.allCarriersIdle() {
		c.idle = true
		return
	}

	c.pipe0.Resize(length)
	c.pipe1.Resize(length)
	c.pipe0.Reset()
	c.pipe1.Reset()
	c.growScratch(length)
	for i := range c.carrierBuf {
		c.carrierBuf[i] = 0
	}
	for i := 0; i < length; i++ {
		c.LFO.Advance()
		c.amBuf[i] = c.LFO.Value()
	}

	for opIdx := 0; opIdx < c.operatorCount; opIdx++ {
		c.runOperator(opIdx, length)
	}

	panL, panR := 1.0, 1.0
	if c.tables != nil {
		panL, panR = c.tables.PanTable[c.Pan][0], c.tables.PanTable[c.Pan][1]
	}
	gain := dbToLinear(c.GainDB)
	coeff := c.Filter.ProcessBlock(length)

	killing := c.KillFade.Active()
	for i := 0; i < length; i++ {
		filtered := c.Filter.Process(c.carrierBuf[i], coeff)
		killGain := c.KillFade.Step()
		if killing && !c.KillFade.Active() {
			killGain = 0
		}
		out := float32(filtered * gain * killGain)

		base := (start + i) * channels
		l := out * float32(panL)
		r := out * float32(panR)
		c.mixInto(buf, base, channels, l, r)
	}

	if killing && !c.KillFade.Active() {
		c.idle = true
		return
	}
	if !c.KillFade.Active() && c.allCarriersIdle() {
		c.idle = true
	}
}

func (c *Channel) mixInto(buf []float32, base, channels int, l, r float32) {
	switch c.OutputMode {
	case OutputAdd, OutputStandard:
		buf[base] += l
		if channels > 1 {
			buf[base+1] += r
		}
	case OutputRing:
		buf[base] *= l
		if channels > 1 {
			buf[base+1] *= r
		}
	case OutputReplace:
		buf[base] = l
		if channels > 1 {
			buf[base+1] = r
		}
	}
}

func (c *Channel) allCarriersIdle() bool {
	for i := 0; i < c.operatorCount; i++ {
		if !c.wiring[i].carrier {
			continue
		}
		if c.operators[i].Env.Level() < tables.EnvBottom-idleMargin {
			return false
		}
	}
	return true
}

func dbToLinear(db float64) float64 {
	if db <= -70 {
		return 0
	}
	return math.Pow(10, db/20)
}
