package rtaudio

import "testing"

// countingSource renders a block of rising sample values so callers can
// verify the driver pulls exactly one block per refill and slices it up
// correctly across calls that don't align to the block boundary.
type countingSource struct {
	blocksRendered int
	nextValue      float32
}

func (s *countingSource) RenderBlock(dst []float32, frames int) {
	s.blocksRendered++
	for i := 0; i < frames*2; i++ {
		dst[i] = s.nextValue
		s.nextValue++
	}
}

func TestProcessPullsExactlyOneBlockWhenRequestMatchesBlockLength(t *testing.T) {
	src := &countingSource{}
	d := NewDriver(src, 4)
	dst := make([]float32, 8) // 4 frames

	d.Process(dst)
	if src.blocksRendered != 1 {
		t.Fatalf("blocksRendered = %d, want 1", src.blocksRendered)
	}
	if dst[0] != 0 || dst[7] != 7 {
		t.Fatalf("dst = %v, want a rising 0..7 sequence", dst)
	}
}

func TestProcessCarriesResidualAcrossSmallerRequests(t *testing.T) {
	src := &countingSource{}
	d := NewDriver(src, 4)

	first := make([]float32, 4) // 2 frames, half of one block
	d.Process(first)
	if src.blocksRendered != 1 {
		t.Fatalf("blocksRendered after first call = %d, want 1", src.blocksRendered)
	}

	second := make([]float32, 4) // the remaining 2 frames of the same block
	d.Process(second)
	if src.blocksRendered != 1 {
		t.Fatalf("blocksRendered after second call = %d, want still 1 (served from residual)", src.blocksRendered)
	}
	if second[0] != 4 {
		t.Fatalf("second[0] = %v, want 4 (continuing the first block's tail)", second[0])
	}

	third := make([]float32, 4)
	d.Process(third)
	if src.blocksRendered != 2 {
		t.Fatalf("blocksRendered after third call = %d, want 2 (a fresh block)", src.blocksRendered)
	}
	if third[0] != 8 {
		t.Fatalf("third[0] = %v, want 8 (first sample of the second block)", third[0])
	}
}

func TestProcessSpansMultipleBlocksInOneRequest(t *testing.T) {
	src := &countingSource{}
	d := NewDriver(src, 2)
	dst := make([]float32, 12) // 6 frames = 3 blocks of 2

	d.Process(dst)
	if src.blocksRendered != 3 {
		t.Fatalf("blocksRendered = %d, want 3", src.blocksRendered)
	}
	if dst[0] != 0 || dst[11] != 11 {
		t.Fatalf("dst = %v, want a rising 0..11 sequence", dst)
	}
}
