package streamloader

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWAV writes a minimal mono 16-bit PCM WAV file with a constant
// value in every sample, for deterministic decode assertions.
func writeTestWAV(t *testing.T, sampleRate, frames int, value int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dataBytes := uint32(frames * 2)
	riffSize := 4 + (8 + 16) + (8 + dataBytes)

	write := func(b []byte) {
		if _, err := f.Write(b); err != nil {
			t.Fatal(err)
		}
	}
	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	write([]byte("RIFF"))
	write(u32(riffSize))
	write([]byte("WAVE"))

	write([]byte("fmt "))
	write(u32(16))
	write(u16(1))           // PCM
	write(u16(1))           // mono
	write(u32(uint32(sampleRate)))
	write(u32(uint32(sampleRate * 2))) // byte rate
	write(u16(2))           // block align
	write(u16(16))          // bits per sample

	write([]byte("data"))
	write(u32(dataBytes))
	sample := u16(uint16(value))
	for i := 0; i < frames; i++ {
		write(sample)
	}
	return path
}

func TestOpenWAVParsesHeader(t *testing.T) {
	path := writeTestWAV(t, 44100, 1000, 0)
	c, err := openWAV(path)
	if err != nil {
		t.Fatalf("openWAV: %v", err)
	}
	defer c.File.Close()

	if c.SourceSampleRate != 44100 {
		t.Fatalf("SourceSampleRate = %d, want 44100", c.SourceSampleRate)
	}
	if c.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", c.Channels)
	}
	if c.TotalSourceFrames != 1000 {
		t.Fatalf("TotalSourceFrames = %d, want 1000", c.TotalSourceFrames)
	}
}

func TestFillDecodesAndResamplesIntoRing(t *testing.T) {
	value := int16(16384) // 0.5 full scale
	path := writeTestWAV(t, 48000, 4000, value)
	c, err := openWAV(path)
	if err != nil {
		t.Fatalf("openWAV: %v", err)
	}
	defer c.File.Close()

	fill(c)
	if c.WritePos() == 0 {
		t.Fatal("expected fill to produce some 48kHz frames")
	}
	l, r := c.ReadFrame(10)
	want := float64(value) / 32768.0
	if math.Abs(l-want) > 1e-6 || math.Abs(r-want) > 1e-6 {
		t.Fatalf("ReadFrame(10) = (%v, %v), want (%v, %v)", l, r, want, want)
	}
}

func TestFillRespectsRingFreeSpaceBudget(t *testing.T) {
	path := writeTestWAV(t, 48000, 100000, 100)
	c, err := openWAV(path)
	if err != nil {
		t.Fatalf("openWAV: %v", err)
	}
	defer c.File.Close()

	c.SetWritePos(int64(c.RingFrames() - 1))
	fill(c)
	if c.WritePos() > int64(c.RingFrames()) {
		t.Fatalf("WritePos = %d exceeds ring capacity %d", c.WritePos(), c.RingFrames())
	}
}
