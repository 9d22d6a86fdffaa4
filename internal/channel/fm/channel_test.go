package fm

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/tables"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	ts := tables.Get(48000)
	lut := filter.BuildCutoffLUT(48000)
	return New(ts, 48000, 64, lut)
}

func TestIdleChannelSkipsProcessing(t *testing.T) {
	c := newTestChannel(t)
	buf := make([]float32, 128)
	c.Process(buf, 2, 0, 64)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v, want 0 for a never-triggered idle channel", i, v)
		}
	}
}

func TestNoteOnProducesNonZeroOutput(t *testing.T) {
	c := newTestChannel(t)
	c.SetAlgorithm(1, false, 0)
	c.ActiveOperator().TotalLevel = 0
	c.NoteOn(60, false)

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

func TestSetAlgorithmShortCircuitsOnUnchangedConfig(t *testing.T) {
	c := newTestChannel(t)
	c.SetAlgorithm(2, false, 1)
	before := c.wiring
	c.SetAlgorithm(2, false, 1)
	if c.wiring != before {
		t.Fatal("unchanged SetAlgorithm call should not rewire")
	}
}

func TestTwoOperatorParallelAlgorithmSumsBothCarriers(t *testing.T) {
	c := newTestChannel(t)
	c.SetAlgorithm(2, false, 1) // o0+o1
	for i := 0; i < 2; i++ {
		c.operators[i].TotalLevel = 0
	}
	c.NoteOn(60, false)

	buf := make([]float32, 128)
	c.Process(buf, 2, 0, 64)

	var peak float32
	for _, v := range buf {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		t.Fatal("expected non-zero carrier sum for 2-op parallel algorithm")
	}
}
