package effectfx

import "math"

// Chorus is a modulated-delay chorus/flanger, adapted from
// internal/effects/chorus.go into a block unit.
type Chorus struct {
	bypassable
	bufL, bufR []float32
	pos        int
	size       int
	depth      float32
	rate       float64
	phase      float64
	feedback   float32
	wet        float32
}

// NewChorus creates a chorus effect. delayMs is the base delay (typically
// 5-30ms), depthMs is modulation depth, rateHz is modulation rate
// (typically 0.1-5Hz), feedback and wet are 0..1.
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float32) *Chorus {
	baseSamples := int(float64(delayMs) * float64(sampleRate) / 1000.0)
	depthSamples := float64(depthMs) * float64(sampleRate) / 1000.0
	size := baseSamples + int(depthSamples) + 2
	if size < 4 {
		size = 4
	}
	return &Chorus{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		size:     size,
		depth:    float32(depthSamples),
		rate:     2.0 * math.Pi * float64(rateHz) / float64(sampleRate),
		feedback: clamp32(feedback, 0, 0.9),
		wet:      clamp32(wet, 0, 1),
	}
}

func (c *Chorus) PrepareProcess() int { return 2 }

func (c *Chorus) Process(channels int, buf []float32, start, length int) int {
	if c.bypass {
		return channels
	}
	for i := start; i < start+length; i++ {
		l, r := frameAt(buf, channels, i)
		mod := float32(math.Sin(c.phase)) * c.depth
		c.phase += c.rate
		if c.phase > 2*math.Pi {
			c.phase -= 2 * math.Pi
		}
		c.bufL[c.pos] = l
		c.bufR[c.pos] = r

		delay := float32(c.size/2) + mod
		readPos := float32(c.pos) - delay
		for readPos < 0 {
			readPos += float32(c.size)
		}
		idx := int(readPos)
		frac := readPos - float32(idx)
		idx2 := idx + 1
		if idx2 >= c.size {
			idx2 = 0
		}
		delL := c.bufL[idx]*(1-frac) + c.bufL[idx2]*frac
		delR := c.bufR[idx]*(1-frac) + c.bufR[idx2]*frac

		c.bufL[c.pos] += delL * c.feedback
		c.bufR[c.pos] += delR * c.feedback

		c.pos++
		if c.pos >= c.size {
			c.pos = 0
		}
		setFrameAt(buf, channels, i, l*(1-c.wet)+delL*c.wet, r*(1-c.wet)+delR*c.wet)
	}
	return channels
}

// SetParam supports "wet" and "feedback" (0..1 arguments).
func (c *Chorus) SetParam(name string, args []float64) {
	if len(args) == 0 {
		return
	}
	v := float32(args[0])
	switch name {
	case "wet":
		c.wet = clamp32(v, 0, 1)
	case "feedback":
		c.feedback = clamp32(v, 0, 0.9)
	}
}

func (c *Chorus) Reset() {
	for i := range c.bufL {
		c.bufL[i] = 0
		c.bufR[i] = 0
	}
	c.pos = 0
	c.phase = 0
}
