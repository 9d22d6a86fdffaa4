// Package streamdata holds the sample-backed data shapes shared by the
// sampler and streaming channels (spec §3 "Sampler data" / "Streaming clip
// data"): pre-resampled PCM, loop points, and the non-destructive fade
// applied at slice boundaries.
package streamdata

// TargetSampleRate is the sample rate every SamplerData is resampled to at
// load time (spec §3).
const TargetSampleRate = 48000

// fadeMs is the non-destructive fade length applied at slice boundaries.
const fadeMs = 3

// Sampler is one loaded, pre-resampled PCM sample (spec §3 "Sampler data").
// PCM is interleaved float in [-1,+1], mono (Channels==1) or stereo
// (Channels==2).
type Sampler struct {
	PCM      []float32
	Channels int

	SourceSampleRate int
	SampleRate       int // always TargetSampleRate after Load

	Start int // first playable frame
	End   int // one past the last playable frame
	Loop  int // loop point in frames, -1 disables looping

	Pan        int // 0..128, 64 = center
	GainDB     float64
	IgnoreNoteOff bool
	FixedPitch    bool

	RootNote    int
	CoarseTune  int // semitones
	FineTune    float64 // cents

	original []float32 // immutable copy PCM is faded from; never mutated after Load
}

// Load wraps pre-resampled PCM (already at TargetSampleRate) into a Sampler,
// keeping an immutable copy for re-deriving fades when Start/End/Loop move.
func Load(pcm []float32, channels, sourceSampleRate int) *Sampler {
	original := make([]float32, len(pcm))
	copy(original, pcm)
	s := &Sampler{
		PCM:              pcm,
		Channels:         channels,
		SourceSampleRate: sourceSampleRate,
		SampleRate:       TargetSampleRate,
		End:              len(pcm) / maxInt(channels, 1),
		Loop:             -1,
		Pan:              64,
		RootNote:         60,
		original:         original,
	}
	s.ApplyFades()
	return s
}

// ApplyFades re-applies the ~3ms non-destructive fade at the current Start
// and End boundaries from the immutable original copy, so repeated
// slice-boundary edits never compound fade attenuation (spec §3: "A
// non-destructive fade is applied at the current slice boundaries from an
// immutable original copy").
func (s *Sampler) ApplyFades() {
	fadeFrames := s.SampleRate * fadeMs / 1000
	if fadeFrames < 1 {
		fadeFrames = 1
	}
	frames := len(s.PCM) / maxInt(s.Channels, 1)
	copy(s.PCM, s.original)

	fadeIn := minInt(fadeFrames, s.End-s.Start)
	for i := 0; i < fadeIn; i++ {
		frame := s.Start + i
		if frame < 0 || frame >= frames {
			continue
		}
		gain := float32(i) / float32(fadeIn)
		s.scaleFrame(frame, gain)
	}

	fadeOut := minInt(fadeFrames, s.End-s.Start)
	for i := 0; i < fadeOut; i++ {
		frame := s.End - 1 - i
		if frame < 0 || frame >= frames {
			continue
		}
		gain := float32(i) / float32(fadeOut)
		s.scaleFrame(frame, gain)
	}
}

func (s *Sampler) scaleFrame(frame int, gain float32) {
	base := frame * s.Channels
	for c := 0; c < s.Channels; c++ {
		s.PCM[base+c] *= gain
	}
}

// FrameAt returns the (left, right) sample at fractional frame position pos
// via linear interpolation; mono sources return the same value in both.
func (s *Sampler) FrameAt(pos float64) (l, r float32) {
	frames := len(s.PCM) / maxInt(s.Channels, 1)
	i0 := int(pos)
	frac := float32(pos - float64(i0))
	i1 := i0 + 1
	if i0 < 0 || i0 >= frames {
		return 0, 0
	}
	if i1 >= frames {
		i1 = i0
	}
	if s.Channels == 1 {
		a, b := s.PCM[i0], s.PCM[i1]
		v := a + (b-a)*frac
		return v, v
	}
	al, ar := s.PCM[i0*2], s.PCM[i0*2+1]
	bl, br := s.PCM[i1*2], s.PCM[i1*2+1]
	return al + (bl-al)*frac, ar + (br-ar)*frac
}

// Frames reports the total frame count.
func (s *Sampler) Frames() int {
	return len(s.PCM) / maxInt(s.Channels, 1)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
