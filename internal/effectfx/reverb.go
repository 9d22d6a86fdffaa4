package effectfx

// Reverb is a Schroeder-style reverb (four comb filters feeding two allpass
// filters), adapted from internal/effects/reverb.go into a block unit.
type Reverb struct {
	bypassable
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb creates a reverb effect. roomSize (0..1) controls delay lengths,
// feedback (0..1) controls decay time, wet (0..1) is the mix.
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := int(float32(sampleRate) * roomSize * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp32(feedback, 0, 0.95)
	r := &Reverb{wet: clamp32(wet, 0, 1)}
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = combFilter{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{buf: make([]float32, maxInt(apLens[i], 1)), fb: 0.5}
	}
	return r
}

func (r *Reverb) PrepareProcess() int { return 2 }

func (r *Reverb) Process(channels int, buf []float32, start, length int) int {
	if r.bypass {
		return channels
	}
	for i := start; i < start+length; i++ {
		l, rr := frameAt(buf, channels, i)
		mono := (l + rr) * 0.5
		var out float32
		for c := range r.combs {
			out += r.combs[c].process(mono)
		}
		out *= 0.25
		for a := range r.allpass {
			out = r.allpass[a].process(out)
		}
		setFrameAt(buf, channels, i, l*(1-r.wet)+out*r.wet, rr*(1-r.wet)+out*r.wet)
	}
	return channels
}

// SetParam supports "wet" (0..1 argument).
func (r *Reverb) SetParam(name string, args []float64) {
	if name == "wet" && len(args) > 0 {
		r.wet = clamp32(float32(args[0]), 0, 1)
	}
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		for j := range r.combs[i].buf {
			r.combs[i].buf[j] = 0
		}
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		for j := range r.allpass[i].buf {
			r.allpass[i].buf[j] = 0
		}
		r.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
