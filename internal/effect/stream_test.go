package effect

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/tables"
)

func TestMixSumsIntoAccumulator(t *testing.T) {
	s := New("track", 1, 4, 2, tables.Get(48000))
	s.Mix(0, 1, -1, 1)
	s.Mix(0, 0.5, 0.5, 2)
	if got := s.Accum()[0]; got != 2 {
		t.Fatalf("L accum = %v, want 2", got)
	}
	if got := s.Accum()[1]; got != 0 {
		t.Fatalf("R accum = %v, want 0", got)
	}
}

func TestProcessAppliesPostFaderAndSends(t *testing.T) {
	ts := tables.Get(48000)
	master := New("master", 0, 4, 2, ts)
	track := New("track", 1, 4, 2, ts)
	track.SetSend(0, 1.0, master)
	track.SetPostFader(0.5, 64) // center

	track.Accum()[0] = 1
	track.Accum()[1] = 1
	track.Process(0, 1)

	if got := master.Accum()[0]; got < 0.34 || got > 0.36 {
		t.Fatalf("master L = %v, want ~0.3536 (0.5 * cos(45deg))", got)
	}
}

func TestClearZeroesAccumulator(t *testing.T) {
	s := New("track", 1, 2, 2, nil)
	s.Accum()[0] = 5
	s.Clear()
	for i, v := range s.Accum() {
		if v != 0 {
			t.Fatalf("accum[%d] = %v, want 0", i, v)
		}
	}
}

func TestBypassedEffectIsSkipped(t *testing.T) {
	s := New("track", 0, 4, 2, tables.Get(48000))
	e := &recordingEffect{}
	e.SetBypass(true)
	s.AddEffect(e)
	s.Process(0, 4)
	if e.processed {
		t.Fatal("bypassed effect should not be processed")
	}
}

type recordingEffect struct {
	bypass    bool
	processed bool
}

func (e *recordingEffect) PrepareProcess() int { return 2 }
func (e *recordingEffect) Process(channels int, buf []float32, start, length int) int {
	e.processed = true
	return channels
}
func (e *recordingEffect) SetParam(string, []float64) {}
func (e *recordingEffect) Bypassed() bool             { return e.bypass }
func (e *recordingEffect) SetBypass(v bool)           { e.bypass = v }
func (e *recordingEffect) Reset()                     {}
