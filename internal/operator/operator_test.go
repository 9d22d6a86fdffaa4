package operator

import (
	"math"
	"testing"

	"github.com/cbegin/sionfm-go/internal/tables"
)

func newTestOp() *Op {
	t := tables.Get(44100)
	o := NewOp(t)
	o.Env.Rates = testRates()
	return o
}

func TestNoteOnImmediateResetsPhaseToZero(t *testing.T) {
	o := newTestOp()
	o.subPhase[0] = 500
	o.NoteOn(60, false)
	if o.subPhase[0] != 0 {
		t.Fatalf("expected immediate note-on to reset phase to 0, got %v", o.subPhase[0])
	}
}

func TestNoteOnStealDefersPhaseResetUntilAttackEntry(t *testing.T) {
	o := newTestOp()
	o.NoteOn(60, false)
	for i := 0; i < 100; i++ {
		o.Tick()
	}
	o.subPhase[0] = 500
	o.NoteOn(60, true)
	if o.subPhase[0] != 500 {
		t.Fatalf("phase must not reset until the deferred attack actually begins")
	}
	sawReset := false
	for i := 0; i < 500000; i++ {
		before := o.Env.state
		o.Tick()
		if before == StateRelease && o.Env.state == StateAttack {
			sawReset = true
			break
		}
	}
	if !sawReset {
		t.Fatalf("deferred attack never took over")
	}
	if o.subPhase[0] != 0 {
		t.Fatalf("expected phase reset once deferred attack entered, got %v", o.subPhase[0])
	}
}

func TestProcessSingleVoiceStaysInUnitRange(t *testing.T) {
	o := newTestOp()
	o.NoteOn(69, false)
	for i := 0; i < 64; i++ {
		o.Advance(0)
		v := o.Process(0, 0)
		if math.Abs(v) > 1.0001 {
			t.Fatalf("sample %v out of range at step %d", v, i)
		}
		o.Tick()
	}
}

func TestProcessSupersawNormalizesByRMS(t *testing.T) {
	o := newTestOp()
	o.SuperCount = 4
	o.SuperSpread = 0 // identical, in-phase sub-voices
	o.NoteOn(69, false)
	single := newTestOp()
	single.NoteOn(69, false)

	// In-phase sub-voices sum coherently; dividing by sqrt(N) (not N) means
	// the combined output is sqrt(N) times the single-voice amplitude.
	want := math.Sqrt(4)
	for i := 0; i < 8; i++ {
		o.Advance(0)
		single.Advance(0)
		multi := o.Process(0, 0)
		one := single.Process(0, 0)
		if one != 0 && math.Abs(multi/one-want) > 1e-6 {
			t.Fatalf("step %d: expected multi/one ratio %v, got %v (%v vs %v)", i, want, multi/one, multi, one)
		}
		o.Tick()
		single.Tick()
	}
}

func TestSafeLogLookupClampsUnderHeavyModulation(t *testing.T) {
	o := newTestOp()
	o.NoteOn(69, false)
	// A huge fmInput pushes the composed index far past the table's range;
	// Process must not panic and must return a finite, in-range sample.
	v := o.Process(1<<20, tables.LogSize*5)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("expected finite output under heavy modulation, got %v", v)
	}
	if math.Abs(v) > 1.0001 {
		t.Fatalf("expected clamped output to stay in range, got %v", v)
	}
}

func TestProcessStereoPansSubVoicesAcrossField(t *testing.T) {
	o := newTestOp()
	o.SuperCount = 2
	o.SuperSpread = 50
	o.NoteOn(69, false)
	o.Advance(0)
	l, r := o.ProcessStereo(0, 0)
	if l == 0 && r == 0 {
		t.Fatalf("expected non-silent stereo output")
	}
}

func TestMutedOperatorProducesSilence(t *testing.T) {
	o := newTestOp()
	o.Mute = true
	o.NoteOn(69, false)
	o.Advance(0)
	if v := o.Process(0, 0); v != 0 {
		t.Fatalf("expected muted operator to produce silence, got %v", v)
	}
}
