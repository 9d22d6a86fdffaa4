package fm

import "testing"

func TestCarrierMaskSingleOperatorIsAlwaysCarrier(t *testing.T) {
	if CarrierMask(1, 0) != 1 {
		t.Fatalf("1-op carrier mask = %b, want 1", CarrierMask(1, 0))
	}
}

func TestCarrierMaskTwoOpParallelHasBothCarriers(t *testing.T) {
	if got := CarrierMask(2, 1); got != 0b11 {
		t.Fatalf("2-op algorithm 1 carrier mask = %b, want 11", got)
	}
}

func TestCarrierMaskTwoOpChainOnlyFinalIsCarrier(t *testing.T) {
	if got := CarrierMask(2, 0); got != 0b10 {
		t.Fatalf("2-op algorithm 0 carrier mask = %b, want 10", got)
	}
}

func TestCarrierMaskOutOfRangeAlgorithmFallsBackToDefault(t *testing.T) {
	if got := CarrierMask(4, 15); got != 0b1111 {
		t.Fatalf("4-op algorithm 15 (unassigned) carrier mask = %b, want 1111", got)
	}
}

func TestFirstWriteFlagsMarksOnlyTheFirstWriterPerPipe(t *testing.T) {
	// 4-op algorithm 1: o3(o2(o0+o1)) - op0 and op1 both write pipe0 fresh.
	flags := firstWriteFlags(algorithms4Op[1], 4)
	if !flags[0] {
		t.Fatal("op0 should be the first writer to pipe0")
	}
	if flags[1] {
		t.Fatal("op1 shares pipe0 with op0 and must Add, not Write")
	}
}

func TestFirstWriteFlagsSkipsReadModifyWriteOperators(t *testing.T) {
	// 2-op algorithm 0: o1(o0) - op1 reads and writes pipe0 (RMW), not a
	// fresh write, so it must not appear as a first-writer.
	flags := firstWriteFlags(algorithms2Op[0], 2)
	if flags[1] {
		t.Fatal("RMW operator should not be flagged as a first writer")
	}
}
