package sampler

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/streamdata"
	"github.com/cbegin/sionfm-go/internal/tables"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	ts := tables.Get(48000)
	lut := filter.BuildCutoffLUT(48000)
	return New(ts, 48000, lut)
}

func testSample(t *testing.T) *streamdata.Sampler {
	t.Helper()
	const frames = 2000
	pcm := make([]float32, frames)
	for i := range pcm {
		pcm[i] = 0.5
	}
	s := streamdata.Load(pcm, 1, 48000)
	s.Loop = -1
	return s
}

func TestIdleChannelWithoutLoadSkipsProcessing(t *testing.T) {
	c := newTestChannel(t)
	buf := make([]float32, 128)
	c.Process(buf, 2, 0, 64)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v, want 0 with no sample loaded", i, v)
		}
	}
}

func TestNoteOnProducesNonZeroOutput(t *testing.T) {
	c := newTestChannel(t)
	c.Load(testSample(t))
	c.Env.AttackRate, c.Env.DecayRate, c.Env.ReleaseRate = 63, 63, 63
	c.NoteOn(60)

	buf := make([]float32, 128)
	c.Process(buf, 2, 0, 64)

	var sawNonZero bool
	for _, v := range buf {
		if v != 0 {
			sawNonZero = true
			break
		}
	}
	if !sawNonZero {
		t.Fatal("expected non-zero output after note-on")
	}
}

func TestVoiceStealDefersNoteUntilReleaseDecays(t *testing.T) {
	c := newTestChannel(t)
	c.Load(testSample(t))
	c.Env.AttackRate, c.Env.DecayRate, c.Env.ReleaseRate = 63, 63, 1 // slow release
	c.NoteOn(60)
	// Drive the envelope up into a clearly-audible region before stealing.
	for i := 0; i < 2000; i++ {
		c.Env.Tick()
	}
	c.NoteOn(72)
	if c.pending == nil {
		t.Fatal("expected a deferred note-on during voice-steal declick")
	}
	if c.Env.State() != StateRelease {
		t.Fatalf("state = %v, want StateRelease (forced by steal)", c.Env.State())
	}
}

func TestLoopWrapPreservesOvershoot(t *testing.T) {
	c := newTestChannel(t)
	s := testSample(t)
	s.Start, s.End, s.Loop = 0, 1000, 100
	c.Load(s)
	c.posFP = 999.5
	c.advancePosition(2.0)
	if c.posFP != 101.5 {
		t.Fatalf("posFP after wrap = %v, want 101.5 (loop_point + overshoot)", c.posFP)
	}
}

func TestNoLoopStartsKillFadeAtEnd(t *testing.T) {
	c := newTestChannel(t)
	s := testSample(t)
	s.Start, s.End, s.Loop = 0, 1000, -1
	c.Load(s)
	c.posFP = 999.5
	c.advancePosition(2.0)
	if !c.KillFade.Active() {
		t.Fatal("expected kill-fade to start once playback passes the end point with no loop")
	}
}
