package effectfx

import "math"

// Compressor is a single-band dynamics compressor, adapted from
// internal/effects/compressor.go into a block unit. The makeup gain is
// de-zippered: each block computes a target from the current knob settings
// and each sample steps linearly toward it (spec §4.8's de-zippering
// discipline, applied here too since any effect's parameters can change
// mid-block via the mailbox).
type Compressor struct {
	bypassable
	threshold  float32
	ratio      float32
	attack     float32
	release    float32
	makeupDB   float32
	makeup     float32
	makeupStep float32
	envL       float32
	envR       float32
}

// NewCompressor creates a compressor. thresholdDB is e.g. -20, ratio is e.g.
// 4 for 4:1, attackMs/releaseMs are envelope times, makeupDB is output gain.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	sr := float64(sampleRate)
	c := &Compressor{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
		makeupDB:  makeupDB,
	}
	c.makeup = float32(math.Pow(10, float64(makeupDB)/20))
	return c
}

func (c *Compressor) PrepareProcess() int { return 2 }

func (c *Compressor) Process(channels int, buf []float32, start, length int) int {
	if c.bypass {
		return channels
	}
	target := float32(math.Pow(10, float64(c.makeupDB)/20))
	if length > 0 {
		c.makeupStep = (target - c.makeup) / float32(length)
	}
	for i := start; i < start+length; i++ {
		l, r := frameAt(buf, channels, i)
		absL := float32(math.Abs(float64(l)))
		absR := float32(math.Abs(float64(r)))
		if absL > c.envL {
			c.envL += c.attack * (absL - c.envL)
		} else {
			c.envL += c.release * (absL - c.envL)
		}
		if absR > c.envR {
			c.envR += c.attack * (absR - c.envR)
		} else {
			c.envR += c.release * (absR - c.envR)
		}
		gainL := c.computeGain(c.envL)
		gainR := c.computeGain(c.envR)
		c.makeup += c.makeupStep
		setFrameAt(buf, channels, i, l*gainL*c.makeup, r*gainR*c.makeup)
	}
	c.makeup = target
	return channels
}

func (c *Compressor) computeGain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

// SetParam supports "threshold" (dB), "ratio", and "makeup" (dB).
func (c *Compressor) SetParam(name string, args []float64) {
	if len(args) == 0 {
		return
	}
	v := args[0]
	switch name {
	case "threshold":
		c.threshold = float32(math.Pow(10, v/20))
	case "ratio":
		c.ratio = float32(v)
	case "makeup":
		c.makeupDB = float32(v)
	}
}

func (c *Compressor) Reset() {
	c.envL = 0
	c.envR = 0
}
