package effectfx

// Delay is a stereo delay with feedback and cross-channel mixing, adapted
// from the teacher's per-sample Delay effect (internal/effects/delay.go)
// into a block-processing stream unit.
type Delay struct {
	bypassable
	bufL, bufR []float32
	pos        int
	feedback   float32
	cross      float32
	wet        float32
}

// NewDelay creates a delay effect. delayMs is delay time in ms, feedback and
// cross are 0..1, wet is the wet/dry mix 0..1.
func NewDelay(sampleRate int, delayMs float64, feedback, cross, wet float32) *Delay {
	samples := int(delayMs * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	return &Delay{
		bufL:     make([]float32, samples),
		bufR:     make([]float32, samples),
		feedback: clamp32(feedback, 0, 0.95),
		cross:    clamp32(cross, 0, 1),
		wet:      clamp32(wet, 0, 1),
	}
}

func (d *Delay) PrepareProcess() int { return 2 }

func (d *Delay) Process(channels int, buf []float32, start, length int) int {
	if d.bypass {
		return channels
	}
	for i := start; i < start+length; i++ {
		l, r := frameAt(buf, channels, i)
		delL := d.bufL[d.pos]
		delR := d.bufR[d.pos]
		fbL := delL*d.feedback*(1-d.cross) + delR*d.feedback*d.cross
		fbR := delR*d.feedback*(1-d.cross) + delL*d.feedback*d.cross
		d.bufL[d.pos] = l + fbL
		d.bufR[d.pos] = r + fbR
		d.pos++
		if d.pos >= len(d.bufL) {
			d.pos = 0
		}
		setFrameAt(buf, channels, i, l*(1-d.wet)+delL*d.wet, r*(1-d.wet)+delR*d.wet)
	}
	return channels
}

// SetParam supports "feedback", "cross", and "wet", each taking one 0..1
// argument.
func (d *Delay) SetParam(name string, args []float64) {
	if len(args) == 0 {
		return
	}
	v := float32(args[0])
	switch name {
	case "feedback":
		d.feedback = clamp32(v, 0, 0.95)
	case "cross":
		d.cross = clamp32(v, 0, 1)
	case "wet":
		d.wet = clamp32(v, 0, 1)
	}
}

func (d *Delay) Reset() {
	for i := range d.bufL {
		d.bufL[i] = 0
		d.bufR[i] = 0
	}
	d.pos = 0
}
