package engine

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/channel/fm"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/tables"
)

func newTestFMTrack(t *testing.T, voices int) *track {
	t.Helper()
	ts := tables.Get(48000)
	lut := filter.BuildCutoffLUT(48000)
	tr := &track{id: 0, kind: TrackFM, fmVoices: make([]*fm.Channel, voices)}
	for i := range tr.fmVoices {
		tr.fmVoices[i] = fm.New(ts, 48000, 256, lut)
	}
	return tr
}

func TestAllocateVoicePrefersIdleSlot(t *testing.T) {
	tr := newTestFMTrack(t, 4)
	tr.fmVoices[2].NoteOn(60, false) // only slot 2 is sounding

	slot, ok := tr.allocateVoice(StealOverwrite)
	if !ok {
		t.Fatal("allocateVoice() ok = false, want true")
	}
	if slot == 2 {
		t.Fatalf("allocateVoice() returned the only sounding slot %d, want an idle one", slot)
	}
}

func TestAllocateVoiceStealsRoundRobinWhenFull(t *testing.T) {
	tr := newTestFMTrack(t, 3)
	for _, v := range tr.fmVoices {
		v.NoteOn(60, false)
	}

	first, ok := tr.allocateVoice(StealOverwrite)
	if !ok {
		t.Fatal("allocateVoice() ok = false, want true")
	}
	second, ok := tr.allocateVoice(StealOverwrite)
	if !ok {
		t.Fatal("allocateVoice() ok = false, want true")
	}
	if second != (first+1)%3 {
		t.Fatalf("allocateVoice() second steal = %d, want %d", second, (first+1)%3)
	}
}

func TestAllocateVoiceRejectsWhenStealRejectAndFull(t *testing.T) {
	tr := newTestFMTrack(t, 2)
	for _, v := range tr.fmVoices {
		v.NoteOn(60, false)
	}

	if _, ok := tr.allocateVoice(StealReject); ok {
		t.Fatal("allocateVoice(StealReject) ok = true with a full, non-idle pool, want false")
	}
}

func TestAllocateVoiceRejectsEmptyPool(t *testing.T) {
	tr := &track{id: 0, kind: TrackFM}
	if _, ok := tr.allocateVoice(StealOverwrite); ok {
		t.Fatal("allocateVoice() on an empty pool ok = true, want false")
	}
}

func TestProcessZeroesScratchBeforeMixing(t *testing.T) {
	tr := newTestFMTrack(t, 1)
	tr.fmVoices[0].NoteOn(60, false)

	scratch := make([]float32, 256*2)
	for i := range scratch {
		scratch[i] = 99
	}
	tr.process(scratch, 2, 256)

	allNinetyNine := true
	for _, v := range scratch {
		if v != 99 {
			allNinetyNine = false
			break
		}
	}
	if allNinetyNine {
		t.Fatal("process() left scratch unchanged; want it reset to silence before mixing voices in")
	}
}
