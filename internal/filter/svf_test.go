package filter

import "testing"

func TestProcessStereoKeepsIndependentLegState(t *testing.T) {
	lut := BuildCutoffLUT(48000)
	f := NewSVF(lut)
	f.Kind = TypeLowPass
	coeff := lut.Coeff(64)

	// Drive the left leg hard and the right leg with silence; if state were
	// shared, the right leg's output would pick up the left leg's energy.
	for i := 0; i < 32; i++ {
		f.ProcessStereo(1, 0, coeff)
	}
	_, r := f.ProcessStereo(0, 0, coeff)
	if r != 0 {
		t.Fatalf("right leg = %v, want 0 (driven only by silence)", r)
	}
}

func TestResetClearsBothLegs(t *testing.T) {
	lut := BuildCutoffLUT(48000)
	f := NewSVF(lut)
	f.Kind = TypeLowPass
	coeff := lut.Coeff(64)
	for i := 0; i < 32; i++ {
		f.ProcessStereo(1, 1, coeff)
	}
	f.Reset()
	l, r := f.ProcessStereo(0, 0, coeff)
	if l != 0 || r != 0 {
		t.Fatalf("post-reset output = (%v, %v), want (0, 0)", l, r)
	}
}
