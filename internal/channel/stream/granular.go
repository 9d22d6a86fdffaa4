package stream

import "math"

// grain is one voice of the alternating two-grain granular engine (spec
// §4.5 "Granular engines (audio thread)"): a fractional read cursor into the
// clip's ring, a raised-cosine window over its lifetime, and its own
// pitch-step independent of the other grain's.
type grain struct {
	active    bool
	readPos   float64
	phase     int
	length    int
	pitchStep float64
}

// start (re)launches the grain at readPos with the given length and
// per-sample read-cursor advance.
func (g *grain) start(readPos float64, length int, pitchStep float64) {
	g.active = true
	g.readPos = readPos
	g.phase = 0
	g.length = length
	g.pitchStep = pitchStep
}

// window returns the raised-cosine (Hann) envelope at the grain's current
// phase, 0 at both edges and 1 at the midpoint.
func (g *grain) window() float64 {
	if g.length <= 1 {
		return 1
	}
	x := float64(g.phase) / float64(g.length-1)
	return 0.5 - 0.5*math.Cos(2*math.Pi*x)
}

// advance steps the grain's read cursor and phase by one output sample,
// deactivating it once its window phase reaches the grain length (spec:
// "Grains are deactivated when their window phase reaches the grain
// length").
func (g *grain) advance() {
	g.readPos += g.pitchStep
	g.phase++
	if g.phase >= g.length {
		g.active = false
	}
}
