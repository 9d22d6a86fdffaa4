package effectfx

import "math"

// Distortion is tanh waveshaping with pre/post gain and an optional one-pole
// lowpass, adapted from internal/effects/distortion.go into a block unit.
type Distortion struct {
	bypassable
	preGain  float32
	postGain float32
	lpfAlpha float32
	lpfL     float32
	lpfR     float32
}

// NewDistortion creates a distortion effect. lpfCutoff of 0 disables the
// output filter.
func NewDistortion(sampleRate int, preGain, postGain, lpfCutoff float32) *Distortion {
	d := &Distortion{preGain: preGain, postGain: postGain}
	if lpfCutoff > 0 && lpfCutoff < float32(sampleRate)/2 {
		rc := 1.0 / (2.0 * math.Pi * float64(lpfCutoff))
		dt := 1.0 / float64(sampleRate)
		d.lpfAlpha = float32(dt / (rc + dt))
	}
	return d
}

func (d *Distortion) PrepareProcess() int { return 2 }

func (d *Distortion) Process(channels int, buf []float32, start, length int) int {
	if d.bypass {
		return channels
	}
	for i := start; i < start+length; i++ {
		l, r := frameAt(buf, channels, i)
		l *= d.preGain
		r *= d.preGain
		l = float32(math.Tanh(float64(l)))
		r = float32(math.Tanh(float64(r)))
		l *= d.postGain
		r *= d.postGain
		if d.lpfAlpha > 0 {
			d.lpfL += d.lpfAlpha * (l - d.lpfL)
			d.lpfR += d.lpfAlpha * (r - d.lpfR)
			l = d.lpfL
			r = d.lpfR
		}
		setFrameAt(buf, channels, i, l, r)
	}
	return channels
}

// SetParam supports "pregain" and "postgain".
func (d *Distortion) SetParam(name string, args []float64) {
	if len(args) == 0 {
		return
	}
	v := float32(args[0])
	switch name {
	case "pregain":
		d.preGain = v
	case "postgain":
		d.postGain = v
	}
}

func (d *Distortion) Reset() {
	d.lpfL = 0
	d.lpfR = 0
}
