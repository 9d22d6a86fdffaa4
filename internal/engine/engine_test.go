package engine

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/effect"
	"github.com/cbegin/sionfm-go/internal/mailbox"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 11025
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("New() with invalid config: error = nil, want non-nil")
	}
}

func TestAddTrackBuildsVoicePoolSizedPerKind(t *testing.T) {
	e := newTestEngine(t)
	tr, err := e.AddTrack(1, TrackFM)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if got := len(tr.fmVoices); got != NumFMVoices {
		t.Fatalf("len(fmVoices) = %d, want %d", got, NumFMVoices)
	}
}

func TestAddTrackRejectsDuplicateID(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AddTrack(1, TrackFM); err != nil {
		t.Fatalf("first AddTrack() error = %v", err)
	}
	if _, err := e.AddTrack(1, TrackSampler); err == nil {
		t.Fatal("second AddTrack() with same id: error = nil, want non-nil")
	}
}

func TestNoteOnThroughMailboxAllocatesAndSoundsAVoice(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AddTrack(1, TrackFM); err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	e.Mailbox.NoteOn(1, mailbox.NoteControlParams{Note: 60})

	out := e.RenderOffline(e.cfg.BufferLength)

	silent := true
	for _, v := range out {
		if v != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Fatal("RenderOffline() after NoteOn produced silence, want audible output")
	}
}

func TestNoteOnRejectedUnderStealRejectWhenPoolExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StealPolicy = StealReject
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tr, err := e.AddTrack(1, TrackFM)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	for range tr.fmVoices {
		e.Mailbox.NoteOn(1, mailbox.NoteControlParams{Note: 60})
	}
	e.renderOneBlock(make([]float32, cfg.BufferLength*cfg.Channels))

	for _, v := range tr.fmVoices {
		if v.Idle() {
			t.Fatal("a voice went idle unexpectedly while the pool should be fully occupied")
		}
	}

	// One more note-on should be rejected outright rather than stealing.
	before := tr.nextAlloc
	e.Mailbox.NoteOn(1, mailbox.NoteControlParams{Note: 64})
	e.renderOneBlock(make([]float32, cfg.BufferLength*cfg.Channels))
	if tr.nextAlloc != before {
		t.Fatal("rejected note-on under StealReject advanced the round-robin cursor")
	}
}

func TestNoteOffReleasesTheVoice(t *testing.T) {
	e := newTestEngine(t)
	tr, err := e.AddTrack(1, TrackFM)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	e.Mailbox.NoteOn(1, mailbox.NoteControlParams{Note: 60})
	e.renderOneBlock(make([]float32, e.cfg.BufferLength*e.cfg.Channels))

	e.Mailbox.NoteOff(1, 0)
	e.drainMailbox()

	if tr.fmVoices[0].Idle() {
		t.Fatal("voice went idle immediately on note-off; envelope release should still be running")
	}
}

func TestRenderOfflineProducesExactlyTheRequestedFrameCount(t *testing.T) {
	e := newTestEngine(t)
	frames := e.cfg.BufferLength*2 + 17 // spans multiple internal blocks, not a multiple of BufferLength
	out := e.RenderOffline(frames)
	if got := len(out) / e.cfg.Channels; got != frames {
		t.Fatalf("RenderOffline(%d) produced %d frames, want %d", frames, got, frames)
	}
}

func TestEffectChainOpBypassTogglesTheEffect(t *testing.T) {
	e := newTestEngine(t)
	master := e.Master()
	master.AddEffect(effect.NewEffect("delay", e.cfg.SampleRate, nil))

	e.Mailbox.SetEffectChainOp(mailbox.EffectChainOp{StreamID: 0, Op: 4, Index: 0, Bypass: true})
	e.drainMailbox()

	if !master.Effects()[0].Bypassed() {
		t.Fatal("effect chain bypass op did not bypass the effect")
	}
}

func TestRouteSendStoresDestinationAndLevel(t *testing.T) {
	e := newTestEngine(t)
	tr, err := e.AddTrack(1, TrackFM)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	slot := e.AddGlobalEffectSlot(1, "reverb-bus", 1)
	e.RouteSend(1, 1, 0.5, slot)

	if tr.sends[1] != slot || tr.sendLevels[1] != 0.5 {
		t.Fatalf("RouteSend() did not record destination/level: got dest=%v level=%v", tr.sends[1], tr.sendLevels[1])
	}
}
