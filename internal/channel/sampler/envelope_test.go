package sampler

import "testing"

func TestNoteOnRampsTowardFullLevel(t *testing.T) {
	e := NewADSR()
	e.AttackRate = 40
	e.DecayRate = 40
	e.ReleaseRate = 40
	e.NoteOn()
	var peak float64
	for i := 0; i < 20000; i++ {
		if v := e.Tick(); v > peak {
			peak = v
		}
	}
	if peak < 0.5 {
		t.Fatalf("peak level = %v, want something approaching 1.0 during attack/decay", peak)
	}
}

func TestReleaseReachesIdleAndStaysAtZero(t *testing.T) {
	e := NewADSR()
	e.AttackRate, e.DecayRate, e.ReleaseRate = 63, 63, 63
	e.NoteOn()
	for i := 0; i < 200000 && e.State() != StateSustain; i++ {
		e.Tick()
	}
	e.NoteOff()
	for i := 0; i < 200000 && !e.Idle(); i++ {
		e.Tick()
	}
	if !e.Idle() {
		t.Fatal("envelope never reached idle after release")
	}
	if v := e.Tick(); v != 0 {
		t.Fatalf("idle envelope should tick at 0, got %v", v)
	}
}

func TestForceFastReleaseOverridesConfiguredRate(t *testing.T) {
	e := NewADSR()
	e.AttackRate, e.DecayRate, e.ReleaseRate = 63, 63, 1 // slow configured release
	e.NoteOn()
	for i := 0; i < 200000 && e.State() != StateSustain; i++ {
		e.Tick()
	}
	e.ForceFastRelease()
	reached := false
	for i := 0; i < 10000; i++ {
		e.Tick()
		if e.Idle() {
			reached = true
			break
		}
	}
	if !reached {
		t.Fatal("forced fast release should reach idle quickly regardless of configured ReleaseRate")
	}
}

func TestZeroRateAttackHoldsIndefinitely(t *testing.T) {
	e := NewADSR()
	e.AttackRate = 0
	e.NoteOn()
	for i := 0; i < 100000; i++ {
		e.Tick()
	}
	if e.State() != StateAttack {
		t.Fatalf("state = %v, want StateAttack held indefinitely by rate 0", e.State())
	}
	if e.Level() != 0 {
		t.Fatalf("level = %v, want 0 (no movement while held)", e.Level())
	}
}

func TestClickGuardFadesOutAfterReachingIdle(t *testing.T) {
	e := NewADSR()
	e.AttackRate, e.DecayRate, e.ReleaseRate = 63, 63, 63
	e.NoteOn()
	for i := 0; i < 200000 && e.State() != StateSustain; i++ {
		e.Tick()
	}
	e.NoteOff()
	for i := 0; i < 200000 && !e.Idle(); i++ {
		e.Tick()
	}
	first := e.Tick()
	if first != 0 {
		t.Fatalf("first idle tick = %v, want 0 (level already at 0)", first)
	}
}
