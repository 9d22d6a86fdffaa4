package meter

import (
	"math"
	"testing"
)

func TestProcessComputesPeakAndRMS(t *testing.T) {
	m := New()
	buf := []float32{0.5, -0.5, 1.0, -1.0, 0.25, 0.25}
	m.Process(buf, 2, 0, 3)

	snap := m.Snapshot()
	if snap.PeakL != 1.0 {
		t.Fatalf("PeakL = %v, want 1.0", snap.PeakL)
	}
	if snap.PeakR != 1.0 {
		t.Fatalf("PeakR = %v, want 1.0", snap.PeakR)
	}
	wantRMSL := math.Sqrt((0.25 + 1.0 + 0.0625) / 3)
	if math.Abs(snap.RMSL-wantRMSL) > 1e-9 {
		t.Fatalf("RMSL = %v, want %v", snap.RMSL, wantRMSL)
	}
	if snap.SampleCount != 3 {
		t.Fatalf("SampleCount = %d, want 3", snap.SampleCount)
	}
}

func TestDownsampleFactorSkipsBlocks(t *testing.T) {
	m := New()
	m.SetDownsampleFactor(3)
	buf := []float32{1, 1}

	m.Process(buf, 1, 0, 1)
	if m.Snapshot().Seq != 0 {
		t.Fatal("first block should be skipped at downsample factor 3")
	}
	m.Process(buf, 1, 0, 1)
	if m.Snapshot().Seq != 0 {
		t.Fatal("second block should still be skipped")
	}
	m.Process(buf, 1, 0, 1)
	if m.Snapshot().Seq != 1 {
		t.Fatalf("Seq = %d, want 1 on the third block", m.Snapshot().Seq)
	}
}

func TestDisableSkipsMeteringEntirely(t *testing.T) {
	m := New()
	m.Disable()
	m.Process([]float32{1, 1}, 1, 0, 1)
	if m.Snapshot().Seq != 0 {
		t.Fatal("disabled meter should never publish a snapshot")
	}
}

func TestSetDownsampleFactorClampsRange(t *testing.T) {
	m := New()
	m.SetDownsampleFactor(0)
	if m.downsampleFactor != 1 {
		t.Fatalf("downsampleFactor = %d, want clamped to 1", m.downsampleFactor)
	}
	m.SetDownsampleFactor(100)
	if m.downsampleFactor != maxDownsampleFactor {
		t.Fatalf("downsampleFactor = %d, want clamped to %d", m.downsampleFactor, maxDownsampleFactor)
	}
}

func TestRegistryTrackSnapshotUnknownIDReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.TrackSnapshot(42); ok {
		t.Fatal("unregistered track id should report ok=false")
	}
}

func TestRegistryRegisterTrackIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.RegisterTrack(1)
	b := r.RegisterTrack(1)
	if a != b {
		t.Fatal("registering the same track id twice should return the same Meter")
	}
}

func TestRegistryMasterSnapshotReflectsMasterMeter(t *testing.T) {
	r := NewRegistry()
	r.Master().Process([]float32{0.75, 0.75}, 1, 0, 1)
	snap := r.MasterSnapshot()
	if snap.PeakL != 0.75 {
		t.Fatalf("MasterSnapshot().PeakL = %v, want 0.75", snap.PeakL)
	}
}
