package pipe

import "testing"

func TestWriteReadAdvancesCursorOncePerSample(t *testing.T) {
	p := New(4)
	for i := 0; i < 4; i++ {
		p.Write(int32(i))
	}
	p.Reset()
	for i := 0; i < 4; i++ {
		if got := p.Read(); got != int32(i) {
			t.Fatalf("sample %d: got %d, want %d", i, got, i)
		}
	}
}

func TestAddSumsIntoSharedPipe(t *testing.T) {
	p := New(2)
	p.Zero()
	p.Add(3)
	p.Add(4)
	p.Reset()
	if got := p.Read(); got != 3 {
		t.Fatalf("sample 0: got %d, want 3", got)
	}
	if got := p.Read(); got != 4 {
		t.Fatalf("sample 1: got %d, want 4", got)
	}
}

func TestResizeGrowsWithoutLosingCapacity(t *testing.T) {
	p := New(2)
	p.Resize(8)
	if p.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", p.Len())
	}
}
