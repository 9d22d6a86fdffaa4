package streamdata

import "testing"

func TestLoadDerivesDefaults(t *testing.T) {
	pcm := make([]float32, 100*2)
	s := Load(pcm, 2, 44100)
	if s.SampleRate != TargetSampleRate {
		t.Fatalf("SampleRate = %d, want %d", s.SampleRate, TargetSampleRate)
	}
	if s.End != 100 {
		t.Fatalf("End = %d, want 100", s.End)
	}
	if s.Loop != -1 {
		t.Fatalf("Loop = %d, want -1 (disabled)", s.Loop)
	}
	if s.Pan != 64 {
		t.Fatalf("Pan = %d, want 64 (center)", s.Pan)
	}
}

func TestApplyFadesRampsBoundariesToZero(t *testing.T) {
	pcm := make([]float32, 1000)
	for i := range pcm {
		pcm[i] = 1
	}
	s := Load(pcm, 1, TargetSampleRate)
	if s.PCM[0] != 0 {
		t.Fatalf("PCM[0] = %v, want 0 at fade-in start", s.PCM[0])
	}
	if s.PCM[999] != 0 {
		t.Fatalf("PCM[999] = %v, want 0 at fade-out end", s.PCM[999])
	}
	mid := s.Frames() / 2
	if s.PCM[mid] != 1 {
		t.Fatalf("PCM[%d] = %v, want 1 (unfaded middle)", mid, s.PCM[mid])
	}
}

func TestApplyFadesDoesNotCompoundOnRepeatedCalls(t *testing.T) {
	pcm := make([]float32, 200)
	for i := range pcm {
		pcm[i] = 1
	}
	s := Load(pcm, 1, TargetSampleRate)
	first := make([]float32, len(s.PCM))
	copy(first, s.PCM)

	s.ApplyFades()
	for i := range first {
		if s.PCM[i] != first[i] {
			t.Fatalf("PCM[%d] changed on repeated ApplyFades: %v -> %v", i, first[i], s.PCM[i])
		}
	}
}

func TestFrameAtInterpolatesStereo(t *testing.T) {
	// Frames well inside the fade-in/out margins so ApplyFades leaves them
	// untouched, isolating the interpolation math under test.
	const frames = 1000
	pcm := make([]float32, frames*2)
	mid := frames / 2
	pcm[mid*2], pcm[mid*2+1] = 0, 0
	pcm[(mid+1)*2], pcm[(mid+1)*2+1] = 2, 2
	s := Load(pcm, 2, TargetSampleRate)
	l, r := s.FrameAt(float64(mid) + 0.5)
	if l != 1 || r != 1 {
		t.Fatalf("FrameAt(mid+0.5) = (%v, %v), want (1, 1)", l, r)
	}
}

func TestFrameAtOutOfRangeReturnsSilence(t *testing.T) {
	pcm := make([]float32, 10)
	s := Load(pcm, 1, TargetSampleRate)
	l, r := s.FrameAt(-1)
	if l != 0 || r != 0 {
		t.Fatalf("FrameAt(-1) = (%v, %v), want silence", l, r)
	}
}
