package stream

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/streamdata"
)

func newTestChannel() *Channel {
	return New(nil, 48000, filter.BuildCutoffLUT(48000), nil)
}

// fillRing writes a rising ramp of distinct (l, r) values into clip's ring
// so interpolation/consumption can be asserted against known positions.
func fillRing(c *streamdata.Clip, frames int) {
	for i := 0; i < frames; i++ {
		c.WriteFrame(i, float64(i), float64(i)+0.5)
	}
	c.SetWritePos(int64(frames))
}

func TestRenderRepitchAdvancesReadPosByPitchRatio(t *testing.T) {
	clip := streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
	fillRing(clip, 1000)

	c := newTestChannel()
	c.Load(clip)
	c.Warp = WarpRepitch
	c.PitchRatio = 2.0
	c.playing = true

	for i := 0; i < 10; i++ {
		c.renderRepitch()
	}
	if clip.ReadPos() != 20 {
		t.Fatalf("ReadPos = %d, want 20 after 10 samples at pitch ratio 2.0", clip.ReadPos())
	}
}

func TestRenderRepitchInterpolatesBetweenFrames(t *testing.T) {
	clip := streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
	fillRing(clip, 1000)

	c := newTestChannel()
	c.Load(clip)
	c.Warp = WarpRepitch
	c.PitchRatio = 1.0
	c.playing = true
	c.repitchPos = 0.5

	l, r := c.renderRepitch()
	if l != 0.5 || r != 1.0 {
		t.Fatalf("renderRepitch() = (%v, %v), want (0.5, 1.0)", l, r)
	}
}

func TestLaunchNextGrainAlternatesSlots(t *testing.T) {
	clip := streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
	fillRing(clip, 20000)

	c := newTestChannel()
	c.Load(clip)
	c.Warp = WarpBPMRatio

	c.launchNextGrain()
	if !c.grains[0].active || c.grains[1].active {
		t.Fatal("first launch should activate grain 0 only")
	}
	c.launchNextGrain()
	if !c.grains[1].active {
		t.Fatal("second launch should activate grain 1")
	}
}

func TestConsumeRingCapsAtSlowestActiveGrain(t *testing.T) {
	clip := streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
	fillRing(clip, 20000)

	c := newTestChannel()
	c.Load(clip)
	c.sourceCursor = 500
	c.grains[0] = grain{active: true, readPos: 100, length: 480}
	c.grains[1] = grain{active: false}

	c.consumeRing()
	if clip.ReadPos() != 100 {
		t.Fatalf("ReadPos = %d, want 100 (capped at the active grain's read position)", clip.ReadPos())
	}
}

func TestConsumeRingCapsAtAvailableMinusTwo(t *testing.T) {
	clip := streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
	fillRing(clip, 10)

	c := newTestChannel()
	c.Load(clip)
	c.sourceCursor = 9999

	c.consumeRing()
	if want := int64(8); clip.ReadPos() != want {
		t.Fatalf("ReadPos = %d, want %d (available-2 footroom)", clip.ReadPos(), want)
	}
}

func TestGrainDeactivatesAtGrainLength(t *testing.T) {
	g := grain{}
	g.start(0, 4, 1.0)
	for i := 0; i < 3; i++ {
		g.advance()
		if !g.active {
			t.Fatalf("grain deactivated early at phase %d", g.phase)
		}
	}
	g.advance()
	if g.active {
		t.Fatal("grain should be inactive once phase reaches its length")
	}
}

func TestTimeRatioUsesBPMRatioOnlyInBPMRatioMode(t *testing.T) {
	c := newTestChannel()
	c.ClipBPM = 120
	c.DriverBPM = 180
	c.Warp = WarpBPMRatio
	if got := c.timeRatio(); got != 1.5 {
		t.Fatalf("timeRatio() = %v, want 1.5", got)
	}
	c.Warp = WarpTone
	if got := c.timeRatio(); got != 1 {
		t.Fatalf("timeRatio() in TONE mode = %v, want 1", got)
	}
}
