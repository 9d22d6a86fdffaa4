// Package sampler implements the sampler voice channel (spec §4.4): pitched
// playback of pre-resampled PCM with per-voice ADSR, click-safe voice
// stealing, loop-point wrap, and LFO-driven AM/PM, sharing the same
// per-channel ambient state (filter, LFO, kill-fade, pan/gain/sends) as
// internal/channel/fm.
package sampler

import (
	"math"

	"github.com/cbegin/sionfm-go/internal/chanlfo"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/streamdata"
	"github.com/cbegin/sionfm-go/internal/tables"
)

// OutputMode selects how the channel's output is written into the
// destination accumulator (spec §3 "Channel"), mirroring internal/channel/fm.
type OutputMode int

const (
	OutputStandard OutputMode = iota
	OutputAdd
	OutputRing
	OutputReplace
)

// deferredResumeThreshold is the level the forced release must decay below
// before a deferred note-on executes (spec §4.4: "Once the amp level drops
// below 0.1, deferred parameters are restored").
const deferredResumeThreshold = 0.1

// pendingNote holds a note-on deferred behind a voice-steal forced release.
type pendingNote struct {
	note int
}

// Channel is one sampler voice: a loaded Sampler played at variable pitch,
// its own ADSR, and the ambient per-channel state every channel kind carries
// (spec §3).
type Channel struct {
	tables     *tables.Set
	sampleRate int

	Sample *streamdata.Sampler
	Env    *ADSR

	posFP     float64 // sample_index_fp: fractional frame position into Sample.PCM
	pitchStep float64 // frames advanced per output sample at the current note, before PM
	note      int

	pending *pendingNote

	Filter   filter.SVF
	LFO      *chanlfo.LFO
	KillFade filter.KillFade

	AMDepth      float64 // 0..1 linear tremolo depth
	PMDepthCents float64 // vibrato depth in cents

	SendLevels [4]float64
	Pan        int // 0..128, 64 = center
	GainDB     float64

	OutputMode OutputMode

	idle bool
}

// New creates a sampler channel bound to the given table set.
func New(ts *tables.Set, sampleRate int, cutoffLUT *filter.CutoffLUT) *Channel {
	c := &Channel{
		tables:     ts,
		sampleRate: sampleRate,
		Env:        NewADSR(),
		SendLevels: [4]float64{1, 0, 0, 0},
		Pan:        64,
		idle:       true,
	}
	c.Filter = *filter.NewSVF(cutoffLUT)
	c.LFO = chanlfo.New(ts, sampleRate)
	c.LFO.SetDepth(1) // raw waveform; AMDepth/PMDepthCents apply the actual scale
	return c
}

// Load installs the sample data this channel will play.
func (c *Channel) Load(s *streamdata.Sampler) {
	c.Sample = s
}

// NoteOn triggers playback of note, honoring voice-steal declick: if the
// envelope is still audible and sample data is already playing, the current
// voice is forced into a fast release and the new note is deferred until it
// decays (spec §4.4 "Voice-steal declick").
func (c *Channel) NoteOn(note int) {
	if c.Sample == nil {
		return
	}
	if c.Env.Audible() {
		c.Env.ForceFastRelease()
		c.pending = &pendingNote{note: note}
		return
	}
	c.startNote(note)
}

func (c *Channel) startNote(note int) {
	c.note = note
	c.posFP = float64(c.Sample.Start)
	c.pitchStep = c.noteRatio(note)
	c.Env.NoteOn()
	c.idle = false
	c.pending = nil
}

// noteRatio derives the per-sample frame advance for note from the sample's
// root note, coarse/fine tune, and source-vs-target sample rate (spec §4.4:
// fixed-pitch samples ignore note entirely).
func (c *Channel) noteRatio(note int) float64 {
	srcRateRatio := 1.0
	if c.Sample.SampleRate > 0 {
		srcRateRatio = float64(c.Sample.SampleRate) / float64(c.sampleRate)
	}
	if c.Sample.FixedPitch {
		return srcRateRatio
	}
	semitones := float64(note-c.Sample.RootNote) + float64(c.Sample.CoarseTune) + c.Sample.FineTune/100
	return math.Pow(2, semitones/12) * srcRateRatio
}

// NoteOff releases the envelope unless the sample's embedded flag says to
// ignore it (spec §3 "Sampler data": "ignore-note-off flag").
func (c *Channel) NoteOff() {
	if c.Sample != nil && c.Sample.IgnoreNoteOff {
		return
	}
	c.Env.NoteOff()
}

// Kill starts the kill-fade declick.
func (c *Channel) Kill(fadeSamples int) {
	c.KillFade.Start(fadeSamples)
}

// Idle reports whether this voice is free for reallocation to a new note.
func (c *Channel) Idle() bool { return c.idle }

// advancePosition steps posFP by step frames, honoring loop wrap: a valid
// loop point wraps while preserving the overshoot past the end point;
// otherwise playback starts a kill-fade and the voice idles out once the
// fade and envelope have both settled (spec §4.4 "Per-sample loop").
func (c *Channel) advancePosition(step float64) {
	c.posFP += step
	end := float64(c.Sample.End)
	if c.posFP < end {
		return
	}
	if c.Sample.Loop >= 0 {
		overshoot := c.posFP - end
		c.posFP = float64(c.Sample.Loop) + overshoot
		return
	}
	if !c.KillFade.Active() {
		c.KillFade.Start(64)
	}
}

// Process renders length samples starting at start into buf (interleaved,
// channels-wide). Idle channels (envelope idle, no pending deferred note)
// skip DSP entirely (spec §3 invariant).
func (c *Channel) Process(buf []float32, channels, start, length int) {
	if c.idle || c.Sample == nil {
		return
	}

	panL, panR := 1.0, 1.0
	if c.tables != nil {
		panL, panR = c.tables.PanTable[c.Pan][0], c.tables.PanTable[c.Pan][1]
	}
	gain := dbToLinear(c.GainDB + c.Sample.GainDB)
	coeff := c.Filter.ProcessBlock(length)

	for i := 0; i < length; i++ {
		c.LFO.Advance()
		lfoVal := 0.0
		if c.LFO.Active() {
			lfoVal = c.LFO.Value()
		}
		pmRatio := 1.0
		if c.PMDepthCents != 0 {
			pmRatio = math.Pow(2, lfoVal*c.PMDepthCents/1200)
		}
		amGain := 1 + lfoVal*c.AMDepth
		if amGain < 0 {
			amGain = 0
		}

		sl, sr := c.Sample.FrameAt(c.posFP)
		envLevel := c.Env.Tick()
		killGain := c.KillFade.Step()

		l, r := c.sampleStereo(float64(sl), float64(sr))
		l, r = c.Filter.ProcessStereo(l, r, coeff)

		scale := envLevel * amGain * killGain * gain
		outL := float32(l * scale * panL)
		outR := float32(r * scale * panR)

		base := (start + i) * channels
		c.mixInto(buf, base, channels, outL, outR)

		c.advancePosition(c.pitchStep * pmRatio)

		// Resume a deferred note-on once the forced release decays below the
		// threshold (or, as a safety net, the moment the envelope reaches
		// idle outright) so a steal can never lock the voice into permanent
		// silence (spec §4.4).
		if c.pending != nil && c.Env.Level() < deferredResumeThreshold {
			c.startNote(c.pending.note)
		}
		if !c.KillFade.Active() && c.Env.Idle() && c.pending == nil {
			c.idle = true
		}
	}
}

// sampleStereo applies the sample's embedded pan when mono (spec §3
// "Sampler data" pan field), or passes through true stereo frames unchanged.
func (c *Channel) sampleStereo(sl, sr float64) (l, r float64) {
	if c.Sample.Channels != 1 {
		return sl, sr
	}
	pan := c.Sample.Pan
	if c.tables == nil {
		return sl, sl
	}
	pl, pr := c.tables.PanTable[pan][0], c.tables.PanTable[pan][1]
	return sl * pl, sl * pr
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
