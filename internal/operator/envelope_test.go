package operator

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/tables"
)

func testRates() Rates {
	return Rates{
		AttackRate:   40,
		Decay1Rate:   20,
		Decay2Rate:   10,
		ReleaseRate:  15,
		Decay1Level:  200,
		SustainLevel: 600,
	}
}

func TestEnvelopeAttackReachesFullOutputThenDecays(t *testing.T) {
	set := tables.Get(44100)
	e := &Envelope{Rates: testRates()}
	if entered := e.NoteOn(false); !entered {
		t.Fatalf("expected immediate attack entry on a fresh envelope")
	}
	if e.State() != StateAttack {
		t.Fatalf("expected StateAttack, got %v", e.State())
	}

	for i := 0; i < 200000 && e.State() != StateSustain; i++ {
		e.Tick(set)
	}
	if e.State() != StateSustain {
		t.Fatalf("envelope never reached sustain")
	}
	if e.Level() != e.Rates.SustainLevel {
		t.Fatalf("sustain level = %d, want %d", e.Level(), e.Rates.SustainLevel)
	}
}

func TestEnvelopeZeroRateStagesFallThroughInstantly(t *testing.T) {
	set := tables.Get(44100)
	rates := testRates()
	rates.Decay1Rate = 0
	rates.Decay2Rate = 0
	e := &Envelope{Rates: rates}
	e.NoteOn(false)
	for i := 0; i < 200000 && e.State() == StateAttack; i++ {
		e.Tick(set)
	}
	if e.State() != StateSustain {
		t.Fatalf("expected zero-rate decay1/decay2 to fall through to sustain immediately, got %v", e.State())
	}
}

func TestNoteOnWhileAudibleForcesFastReleaseBeforeAttack(t *testing.T) {
	set := tables.Get(44100)
	e := &Envelope{Rates: testRates()}
	e.NoteOn(false)
	for i := 0; i < 100; i++ {
		e.Tick(set)
	}
	if !e.Audible() {
		t.Fatalf("expected envelope to still be audible shortly after attack")
	}

	entered := e.NoteOn(false)
	if entered {
		t.Fatalf("note-on while audible must not enter attack immediately")
	}
	if e.State() != StateRelease {
		t.Fatalf("expected forced release, got %v", e.State())
	}

	sawAttack := false
	for i := 0; i < 500000; i++ {
		r := e.Tick(set)
		if r.EnteredAttack {
			sawAttack = true
			break
		}
	}
	if !sawAttack {
		t.Fatalf("deferred attack never fired after forced release decayed")
	}
	if e.State() != StateAttack {
		t.Fatalf("expected StateAttack after deferred entry, got %v", e.State())
	}
}

func TestNoteOnStealHintForcesReleaseEvenWhenInaudible(t *testing.T) {
	set := tables.Get(44100)
	e := &Envelope{Rates: testRates()}
	e.NoteOn(false)
	e.NoteOff() // release so the envelope can reach off
	for e.State() != StateOff {
		e.Tick(set)
	}
	if e.Audible() {
		t.Fatalf("expected envelope to be inaudible after reaching off")
	}

	entered := e.NoteOn(true)
	if entered {
		t.Fatalf("steal hint must force release even when inaudible")
	}
	if e.State() != StateRelease {
		t.Fatalf("expected forced release from steal hint, got %v", e.State())
	}
}

func TestNoteOffAlwaysReleases(t *testing.T) {
	set := tables.Get(44100)
	e := &Envelope{Rates: testRates()}
	e.NoteOn(false)
	for i := 0; i < 50; i++ {
		e.Tick(set)
	}
	e.NoteOff()
	if e.State() != StateRelease {
		t.Fatalf("expected NoteOff to force release, got %v", e.State())
	}
}
