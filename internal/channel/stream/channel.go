// Package stream implements the streaming/granular channel (spec §4.5):
// real-time tempo-matched playback of an arbitrary-length clip loaded by
// internal/streamloader, via repitch, BPM-ratio granular re-time, granular
// tone pitch-shift, or granular texture time-stretch. The audio thread here
// owns only the ring-read cursor and the granular engine state; the
// loader-owned decode/resample state lives entirely on streamdata.Clip.
package stream

import (
	"math"

	"github.com/cbegin/sionfm-go/internal/chanlfo"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/streamdata"
	"github.com/cbegin/sionfm-go/internal/streamloader"
	"github.com/cbegin/sionfm-go/internal/tables"
)

// WarpMode selects how clip time maps to output time (spec §4.5 "Goal").
type WarpMode int

const (
	WarpRepitch  WarpMode = iota // simple variable-rate playback: pitch and duration move together
	WarpBPMRatio                 // granular re-time to driver/clip BPM ratio, pitch preserved
	WarpTone                     // granular pitch-shift, duration preserved
	WarpTexture                  // granular time-stretch at an arbitrary ratio, with read jitter
)

// OutputMode selects how the channel's output is written into the
// destination accumulator, mirroring internal/channel/fm and
// internal/channel/sampler.
type OutputMode int

const (
	OutputStandard OutputMode = iota
	OutputAdd
	OutputRing
	OutputReplace
)

// minGrainFrames/maxGrainFrames bound the 5..100ms grain-size range (spec
// §4.5: "grain length is 240..4800 samples").
const (
	minGrainFrames = 240
	maxGrainFrames = 4800
)

// ringLowWaterFraction is the divisor of the ring's capacity below which
// buffered frames trigger a refill request: with 2, the audio thread
// enqueues a refill once less than half the ring is filled.
const ringLowWaterFraction = 2

// Channel is one streaming voice: a loaded clip played through one of the
// four warp modes, sharing the same ambient per-channel state (filter, LFO,
// kill-fade, pan/gain/sends) as the other channel kinds (spec §3).
type Channel struct {
	tables     *tables.Set
	sampleRate int
	loader     *streamloader.Loader

	Clip *streamdata.Clip

	Warp         WarpMode
	GrainSize    float64 // 0..1, maps to minGrainFrames..maxGrainFrames
	PitchRatio   float64 // grain read pitch-step (TONE/TEXTURE) or direct ring advance (REPITCH)
	StretchRatio float64 // TEXTURE mode's source-time-elapsed-per-output-sample ratio
	Flux         float64 // 0..1, TEXTURE mode's per-grain random read-offset amount
	ClipBPM      float64
	DriverBPM    float64

	sourceCursor float64 // absolute fractional 48kHz-domain read position, audio-thread owned
	repitchPos   float64 // REPITCH mode's own fractional offset past Clip.ReadPos()

	grains      [2]grain
	activeGrain int
	hopCounter  int
	rng         uint64

	Filter   filter.SVF
	LFO      *chanlfo.LFO
	KillFade filter.KillFade

	SendLevels [4]float64
	Pan        int
	GainDB     float64
	OutputMode OutputMode

	playing bool
	idle    bool
}

// New creates a streaming channel bound to the given table set and loader.
// loader may be nil in tests that drive the ring directly.
func New(ts *tables.Set, sampleRate int, cutoffLUT *filter.CutoffLUT, loader *streamloader.Loader) *Channel {
	c := &Channel{
		tables:       ts,
		sampleRate:   sampleRate,
		loader:       loader,
		PitchRatio:   1,
		StretchRatio: 1,
		ClipBPM:      120,
		DriverBPM:    120,
		SendLevels:   [4]float64{1, 0, 0, 0},
		Pan:          64,
		rng:          0x9e3779b97f4a7c15,
		idle:         true,
	}
	c.Filter = *filter.NewSVF(cutoffLUT)
	c.LFO = chanlfo.New(ts, sampleRate)
	c.LFO.SetDepth(1)
	return c
}

// Load binds clip to this channel and resets the granular engine state.
func (c *Channel) Load(clip *streamdata.Clip) {
	c.Clip = clip
	c.sourceCursor = 0
	c.repitchPos = 0
	c.grains[0] = grain{}
	c.grains[1] = grain{}
	c.activeGrain = 0
	c.hopCounter = c.grainHopFrames()
}

// Start begins playback of the loaded clip.
func (c *Channel) Start() {
	if c.Clip == nil {
		return
	}
	c.Clip.SetActive(true)
	c.playing = true
	c.idle = false
}

// Stop requests playback to end; per spec §5 "Cancellation", this takes
// effect on the next block rather than mid-block.
func (c *Channel) Stop() {
	c.playing = false
}

// Kill starts the kill-fade declick.
func (c *Channel) Kill(fadeSamples int) {
	c.KillFade.Start(fadeSamples)
}

// Idle reports whether this voice is free for reallocation to a new clip.
func (c *Channel) Idle() bool { return c.idle }

func (c *Channel) grainLengthFrames() int {
	size := c.GrainSize
	if size < 0 {
		size = 0
	} else if size > 1 {
		size = 1
	}
	return minGrainFrames + int(size*float64(maxGrainFrames-minGrainFrames))
}

func (c *Channel) grainHopFrames() int {
	return c.grainLengthFrames() / 2
}

// timeRatio is how many source frames elapse per output sample in the
// active warp mode (spec §4.5 "Ring consumption cap": "source_frames_elapsed").
func (c *Channel) timeRatio() float64 {
	switch c.Warp {
	case WarpBPMRatio:
		if c.ClipBPM <= 0 {
			return 1
		}
		return c.DriverBPM / c.ClipBPM
	case WarpTexture:
		if c.StretchRatio <= 0 {
			return 1
		}
		return c.StretchRatio
	default:
		return 1
	}
}

// grainPitchStep is the per-grain read-cursor advance; only TONE and
// TEXTURE decouple pitch from the time-elapsed ratio above.
func (c *Channel) grainPitchStep() float64 {
	switch c.Warp {
	case WarpTone, WarpTexture:
		if c.PitchRatio <= 0 {
			return 1
		}
		return c.PitchRatio
	default:
		return 1
	}
}

// Process renders length samples starting at start into buf.
func (c *Channel) Process(buf []float32, channels, start, length int) {
	if c.idle || c.Clip == nil {
		return
	}

	panL, panR := 1.0, 1.0
	if c.tables != nil {
		panL, panR = c.tables.PanTable[c.Pan][0], c.tables.PanTable[c.Pan][1]
	}
	gain := dbToLinear(c.GainDB)
	coeff := c.Filter.ProcessBlock(length)

	for i := 0; i < length; i++ {
		c.LFO.Advance()
		killGain := c.KillFade.Step()

		var l, r float64
		if c.playing {
			l, r = c.renderSample()
		}
		l, r = c.Filter.ProcessStereo(l, r, coeff)

		scale := killGain * gain
		outL := float32(l * scale * panL)
		outR := float32(r * scale * panR)

		base := (start + i) * channels
		c.mixInto(buf, base, channels, outL, outR)

		if !c.playing && !c.KillFade.Active() {
			c.idle = true
		}
	}

	c.maybeEnqueueRefill()
}

// renderSample dispatches one output sample to the active warp mode's
// playback path, returning silence on ring underrun rather than blocking
// (spec §7 "Streaming errors": "the audio thread writes silence for the
// underrun region and continues").
func (c *Channel) renderSample() (l, r float64) {
	if c.Clip.Available() < 2 {
		if !c.Clip.Active() {
			c.playing = false
		}
		return 0, 0
	}
	if c.Warp == WarpRepitch {
		return c.renderRepitch()
	}
	return c.renderGranular()
}

// renderRepitch is the non-granular warp mode: the read cursor advances
// directly by PitchRatio frames per output sample, coupling pitch and
// duration exactly as a tape-speed change would.
func (c *Channel) renderRepitch() (l, r float64) {
	pos := float64(c.Clip.ReadPos()) + c.repitchPos
	l, r = c.interpRing(pos)

	ratio := c.PitchRatio
	if ratio <= 0 {
		ratio = 1
	}
	c.repitchPos += ratio
	if consumed := int64(c.repitchPos); consumed > 0 {
		c.repitchPos -= float64(consumed)
		c.Clip.SetReadPos(c.Clip.ReadPos() + consumed)
	}
	return l, r
}

// renderGranular drives the two-grain engine shared by BPM-ratio, tone, and
// texture warp modes (spec §4.5 "Granular engines").
func (c *Channel) renderGranular() (l, r float64) {
	c.hopCounter--
	if c.hopCounter <= 0 {
		c.launchNextGrain()
		c.hopCounter = c.grainHopFrames()
	}

	var sumL, sumR float64
	for i := range c.grains {
		g := &c.grains[i]
		if !g.active {
			continue
		}
		w := g.window()
		gl, gr := c.interpRing(g.readPos)
		sumL += gl * w
		sumR += gr * w
		g.advance()
	}

	c.sourceCursor += c.timeRatio()
	c.consumeRing()
	return sumL, sumR
}

// launchNextGrain starts the currently-inactive grain at the scheduler's
// current source position, alternating between the two slots (spec:
// "Two alternating grains"). TEXTURE mode perturbs the launch position by a
// bounded random offset (spec: "an additional per-grain random read offset
// up to ±(flux × grain_length × 2) frames").
func (c *Channel) launchNextGrain() {
	idx := c.activeGrain
	c.activeGrain = 1 - c.activeGrain
	length := c.grainLengthFrames()
	pitchStep := c.grainPitchStep()

	readPos := c.sourceCursor
	if c.Warp == WarpTexture && c.Flux > 0 {
		maxOffset := c.Flux * float64(length) * 2
		readPos += (c.nextRandom()*2 - 1) * maxOffset
	}
	if readPos < 0 {
		readPos = 0
	}
	c.grains[idx].start(readPos, length, pitchStep)
}

// consumeRing implements the ring consumption cap (spec §4.5): the desired
// consume this sample is floor(source_frames_elapsed), capped at the
// slowest active grain's read position (grains read slightly behind the
// source cursor) and further limited to available-2 for interpolation
// footroom.
func (c *Channel) consumeRing() {
	target := int64(math.Floor(c.sourceCursor))
	for i := range c.grains {
		g := &c.grains[i]
		if g.active {
			if gp := int64(math.Floor(g.readPos)); gp < target {
				target = gp
			}
		}
	}
	if maxTarget := c.Clip.ReadPos() + c.Clip.Available() - 2; target > maxTarget {
		target = maxTarget
	}
	if target > c.Clip.ReadPos() {
		c.Clip.SetReadPos(target)
	}
}

// interpRing linearly interpolates the ring at an absolute fractional frame
// position, matching internal/streamloader's resampler interpolation.
func (c *Channel) interpRing(pos float64) (l, r float64) {
	i0 := int64(math.Floor(pos))
	frac := pos - float64(i0)
	al, ar := c.Clip.ReadFrame(int(i0))
	bl, br := c.Clip.ReadFrame(int(i0 + 1))
	return al + (bl-al)*frac, ar + (br-ar)*frac
}

// nextRandom returns a uniform float64 in [0,1) from a small xorshift64
// generator local to this channel (spec's "controlled randomness" needs no
// cryptographic or shared source).
func (c *Channel) nextRandom() float64 {
	c.rng ^= c.rng << 13
	c.rng ^= c.rng >> 7
	c.rng ^= c.rng << 17
	return float64(c.rng>>11) / float64(1<<53)
}

// maybeEnqueueRefill requests a loader refill once the ring drops below
// half-full (spec §4.5 "at any moment the audio thread may enqueue a
// refill request").
func (c *Channel) maybeEnqueueRefill() {
	if c.loader == nil || c.Clip == nil {
		return
	}
	if c.Clip.Available()*ringLowWaterFraction < int64(c.Clip.RingFrames()) {
		c.loader.Enqueue(c.Clip)
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

func dbToLinear(db float64) float64 {
	if db <= -70 {
		return 0
	}
	return math.Pow(10, db/20)
}
