// Package multiband implements the two-crossover Linkwitz-Riley multiband
// compressor (spec §4.8), grounded on
// original_source/src/effector/effects/si_effect_linkwitz_riley_filter.cpp
// (the LR4 coefficient derivation: warp = 1/tan(pi*f/fs), cascaded biquad
// pairs for the low and high outputs) and
// original_source/src/effector/effects/si_effect_mb_compressor.cpp (the
// per-band envelope follower, two-sided above/below-threshold gain
// computer, and de-zippered makeup gain).
package multiband

import "math"

// Mode selects which bands are active. Switching modes resets all filter
// and compressor state to avoid an impulse from stale memory (spec §4.8).
type Mode int

const (
	ModeMultiband Mode = iota
	ModeLowOnly
	ModeHighOnly
	ModeSingleBand
)

// lrBiquad is one 2nd-order Linkwitz-Riley stage; two cascaded instances
// make an LR4 (24 dB/oct) crossover leg.
type lrBiquad struct {
	lowIn0, lowIn1, lowIn2   float64
	lowOut1, lowOut2         float64
	highIn0, highIn1, highIn2 float64
	highOut1, highOut2       float64

	inA1, inA2, lowOutA1, lowOutA2   float64
	inB1, inB2, lowOutB1, lowOutB2   float64
	highOutA1, highOutA2             float64
	highOutB1, highOutB2             float64
	highInA1, highInA2               float64
	highInB1, highInB2               float64
}

func (f *lrBiquad) setCutoff(cutoff float64, sampleRate int) {
	if cutoff < 20 {
		cutoff = 20
	}
	if cutoff > 20000 {
		cutoff = 20000
	}
	warp := 1.0 / math.Tan(math.Pi*cutoff/float64(sampleRate))
	warp2 := warp * warp
	const sqrt2 = 1.41421356237309504880
	mult := 1.0 / (1.0 + sqrt2*warp + warp2)

	f.lowIn0 = mult
	f.lowIn1 = 2.0 * mult
	f.lowIn2 = mult
	f.lowOut1 = -2.0 * (1.0 - warp2) * mult
	f.lowOut2 = -(1.0 - sqrt2*warp + warp2) * mult

	f.highIn0 = warp2 * mult
	f.highIn1 = -2.0 * f.highIn0
	f.highIn2 = f.highIn0
	f.highOut1 = f.lowOut1
	f.highOut2 = f.lowOut2
}

// processLow runs one sample through both cascaded low-pass stages.
func (f *lrBiquad) processLow(audio float64) float64 {
	in01 := audio*f.lowIn0 + f.inA1*f.lowIn1
	in := in01 + f.inA2*f.lowIn2
	inOut1 := in + f.lowOutA1*f.lowOut1
	low := inOut1 + f.lowOutA2*f.lowOut2
	f.inA2, f.inA1 = f.inA1, audio
	f.lowOutA2, f.lowOutA1 = f.lowOutA1, low

	in01b := low*f.lowIn0 + f.inB1*f.lowIn1
	inb := in01b + f.inB2*f.lowIn2
	inOut1b := inb + f.lowOutB1*f.lowOut1
	final := inOut1b + f.lowOutB2*f.lowOut2
	f.inB2, f.inB1 = f.inB1, low
	f.lowOutB2, f.lowOutB1 = f.lowOutB1, final
	return final
}

// processHigh runs one sample through both cascaded high-pass stages.
func (f *lrBiquad) processHigh(audio float64) float64 {
	in01 := audio*f.highIn0 + f.highInA1*f.highIn1
	in := in01 + f.highInA2*f.highIn2
	inOut1 := in + f.highOutA1*f.highOut1
	high := inOut1 + f.highOutA2*f.highOut2
	f.highInA2, f.highInA1 = f.highInA1, audio
	f.highOutA2, f.highOutA1 = f.highOutA1, high

	in01b := high*f.highIn0 + f.highInB1*f.highIn1
	inb := in01b + f.highInB2*f.highIn2
	inOut1b := inb + f.highOutB1*f.highOut1
	final := inOut1b + f.highOutB2*f.highOut2
	f.highInB2, f.highInB1 = f.highInB1, high
	f.highOutB2, f.highOutB1 = f.highOutB1, final
	return final
}

// band is one compression band's independent envelope follower and gain
// computer, with two-sided above/below-threshold compression.
type band struct {
	sampleRate int

	attackCoef, releaseCoef float64
	upperThreshold          float64 // linear; above this, downward compression
	lowerThreshold          float64 // linear; below this, upward compression
	upperRatio, lowerRatio  float64

	envL, envR float64

	makeup, targetMakeup float64
	wet, targetWet       float64
	makeupStepThisBlock  float64
	wetStepThisBlock     float64
}

const envelopeFloor = 1e-10

func newBand(sampleRate int, attack01, release01 float64, slow bool) *band {
	b := &band{sampleRate: sampleRate, upperThreshold: 1, lowerThreshold: 0, upperRatio: 1, lowerRatio: 1, makeup: 1, targetMakeup: 1, wet: 1, targetWet: 1}
	b.setTimes(attack01, release01, slow)
	return b
}

// setTimes maps the user's 0..1 attack/release knobs onto per-band default
// time constants exponentially, slow bands (e.g. low) biased toward longer
// times than fast bands (e.g. high), per spec §4.8.
func (b *band) setTimes(attack01, release01 float64, slow bool) {
	minAttack, maxAttack := 0.5, 50.0
	minRelease, maxRelease := 20.0, 500.0
	if slow {
		minAttack, maxAttack = 2, 150
		minRelease, maxRelease = 80, 1500
	}
	attackMs := minAttack * math.Pow(maxAttack/minAttack, attack01)
	releaseMs := minRelease * math.Pow(maxRelease/minRelease, release01)
	sr := float64(b.sampleRate)
	b.attackCoef = 1.0 - math.Exp(-1.0/(attackMs*sr/1000.0))
	b.releaseCoef = 1.0 - math.Exp(-1.0/(releaseMs*sr/1000.0))
}

func (b *band) setThresholds(upperDB, lowerDB, upperRatio, lowerRatio float64) {
	b.upperThreshold = math.Pow(10, upperDB/20)
	b.lowerThreshold = math.Pow(10, lowerDB/20)
	b.upperRatio = upperRatio
	b.lowerRatio = lowerRatio
}

// process compresses one sample through this band's envelope/gain computer.
func (b *band) process(l, r float64) (float64, float64) {
	absL, absR := math.Abs(l), math.Abs(r)
	if absL > b.envL {
		b.envL += b.attackCoef * (absL - b.envL)
	} else {
		b.envL += b.releaseCoef * (absL - b.envL)
	}
	if absR > b.envR {
		b.envR += b.attackCoef * (absR - b.envR)
	} else {
		b.envR += b.releaseCoef * (absR - b.envR)
	}
	envL := math.Max(b.envL, envelopeFloor)
	envR := math.Max(b.envR, envelopeFloor)

	gainL := b.gainFor(envL)
	gainR := b.gainFor(envR)

	b.makeup += b.makeupStepThisBlock
	b.wet += b.wetStepThisBlock

	wetL := l * gainL * b.makeup
	wetR := r * gainR * b.makeup
	return l*(1-b.wet) + wetL*b.wet, r*(1-b.wet) + wetR*b.wet
}

func (b *band) gainFor(env float64) float64 {
	switch {
	case env > b.upperThreshold:
		over := env / b.upperThreshold
		return math.Pow(over, 1.0/b.upperRatio-1)
	case env < b.lowerThreshold && env > envelopeFloor:
		under := b.lowerThreshold / env
		return math.Pow(under, 1.0/b.lowerRatio-1)
	default:
		return 1
	}
}

func (b *band) reset() {
	b.envL, b.envR = 0, 0
}

// Compressor is the full multiband unit: two LR4 crossovers (stereo) split
// the signal into low/mid/high, each with its own band compressor.
type Compressor struct {
	sampleRate int
	mode       Mode
	bypass     bool

	loCutoff, hiCutoff float64

	crossLo lrBiquad // splits at loCutoff
	crossHi lrBiquad // splits the loCutoff high output at hiCutoff
	crossLo2, crossHi2 lrBiquad // right channel

	low, mid, high *band

	// per-block de-zipper targets, applied via makeupStepThisBlock/wetStepThisBlock on band
}

// NewCompressor creates a multiband compressor with the spec's default
// crossover frequencies (120 Hz lo/mid, 2.5 kHz mid/hi).
func NewCompressor(sampleRate int) *Compressor {
	c := &Compressor{sampleRate: sampleRate, loCutoff: 120, hiCutoff: 2500, mode: ModeMultiband}
	c.crossLo.setCutoff(c.loCutoff, sampleRate)
	c.crossHi.setCutoff(c.hiCutoff, sampleRate)
	c.crossLo2.setCutoff(c.loCutoff, sampleRate)
	c.crossHi2.setCutoff(c.hiCutoff, sampleRate)
	c.low = newBand(sampleRate, 0.3, 0.3, true)
	c.mid = newBand(sampleRate, 0.4, 0.4, false)
	c.high = newBand(sampleRate, 0.6, 0.6, false)
	return c
}

// SetMode switches which bands are active, resetting all filter and
// compressor state (spec §4.8 "Band enablement").
func (c *Compressor) SetMode(m Mode) {
	c.mode = m
	c.crossLo = lrBiquad{}
	c.crossHi = lrBiquad{}
	c.crossLo2 = lrBiquad{}
	c.crossHi2 = lrBiquad{}
	c.crossLo.setCutoff(c.loCutoff, c.sampleRate)
	c.crossHi.setCutoff(c.hiCutoff, c.sampleRate)
	c.crossLo2.setCutoff(c.loCutoff, c.sampleRate)
	c.crossHi2.setCutoff(c.hiCutoff, c.sampleRate)
	c.low.reset()
	c.mid.reset()
	c.high.reset()
}

// SetBandParams configures one band's thresholds/ratios/times/makeup.
// band is 0=low, 1=mid, 2=high.
func (c *Compressor) SetBandParams(bandIdx int, upperDB, lowerDB, upperRatio, lowerRatio, attack01, release01, makeupDB float64) {
	b := c.bandFor(bandIdx)
	if b == nil {
		return
	}
	b.setThresholds(upperDB, lowerDB, upperRatio, lowerRatio)
	b.setTimes(attack01, release01, bandIdx == 0)
	b.targetMakeup = math.Pow(10, makeupDB/20)
}

func (c *Compressor) bandFor(idx int) *band {
	switch idx {
	case 0:
		return c.low
	case 1:
		return c.mid
	case 2:
		return c.high
	default:
		return nil
	}
}

func (c *Compressor) PrepareProcess() int { return 2 }

func (c *Compressor) Bypassed() bool   { return c.bypass }
func (c *Compressor) SetBypass(v bool) { c.bypass = v }

// Process runs length frames of buf (interleaved, channels-wide) in place.
func (c *Compressor) Process(channels int, buf []float32, start, length int) int {
	if c.bypass {
		return channels
	}
	for _, b := range [3]*band{c.low, c.mid, c.high} {
		b.makeupStepThisBlock = (b.targetMakeup - b.makeup) / float64(maxInt(length, 1))
		b.wetStepThisBlock = (b.targetWet - b.wet) / float64(maxInt(length, 1))
	}
	for i := start; i < start+length; i++ {
		var l, r float64
		if channels == 1 {
			l = float64(buf[i])
			r = l
		} else {
			l = float64(buf[i*2])
			r = float64(buf[i*2+1])
		}

		lowL := c.crossLo.processLow(l)
		lowR := c.crossLo2.processLow(r)
		hiInL := c.crossLo.processHigh(l)
		hiInR := c.crossLo2.processHigh(r)
		midL := c.crossHi.processLow(hiInL)
		midR := c.crossHi2.processLow(hiInR)
		highL := c.crossHi.processHigh(hiInL)
		highR := c.crossHi2.processHigh(hiInR)

		var outL, outR float64
		switch c.mode {
		case ModeLowOnly:
			cl, cr := c.low.process(lowL+midL+highL, lowR+midR+highR)
			outL, outR = cl, cr
		case ModeHighOnly:
			cl, cr := c.high.process(lowL+midL+highL, lowR+midR+highR)
			outL, outR = cl, cr
		case ModeSingleBand:
			cl, cr := c.mid.process(lowL+midL+highL, lowR+midR+highR)
			outL, outR = cl, cr
		default:
			l1, r1 := c.low.process(lowL, lowR)
			l2, r2 := c.mid.process(midL, midR)
			l3, r3 := c.high.process(highL, highR)
			outL, outR = l1+l2+l3, r1+r2+r3
		}

		if channels == 1 {
			buf[i] = float32((outL + outR) * 0.5)
		} else {
			buf[i*2] = float32(outL)
			buf[i*2+1] = float32(outR)
		}
	}
	for _, b := range [3]*band{c.low, c.mid, c.high} {
		b.makeup = b.targetMakeup
		b.wet = b.targetWet
	}
	return channels
}

func (c *Compressor) SetParam(name string, args []float64) {
	if len(args) == 0 {
		return
	}
	switch name {
	case "lo_cutoff":
		c.loCutoff = args[0]
		c.crossLo.setCutoff(c.loCutoff, c.sampleRate)
		c.crossLo2.setCutoff(c.loCutoff, c.sampleRate)
	case "hi_cutoff":
		c.hiCutoff = args[0]
		c.crossHi.setCutoff(c.hiCutoff, c.sampleRate)
		c.crossHi2.setCutoff(c.hiCutoff, c.sampleRate)
	}
}

func (c *Compressor) Reset() {
	c.SetMode(c.mode)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
