// Package meter implements master and per-track peak/RMS metering (spec
// §4.9): a lock-guarded snapshot swap written by the audio thread and read
// by the control thread, with a configurable block-downsampling factor.
package meter

import (
	"math"
	"sync"
)

// Snapshot is one metering sample, read by the control thread via a
// lock-guarded copy (spec §4.9 "Thread safety").
type Snapshot struct {
	PeakL, PeakR float64
	RMSL, RMSR   float64
	Seq          uint64 // monotonic counter, incremented once per published snapshot
	SampleCount  int64  // frames covered by this snapshot's block
}

// maxDownsampleFactor bounds the "run the metering algorithm only every
// Nth block" control (spec §4.9 "Downsampling").
const maxDownsampleFactor = 16

// Meter accumulates peak/RMS over one block and publishes it as a Snapshot.
// Process is audio-thread-only; Snapshot is safe to call from any thread.
type Meter struct {
	mu       sync.Mutex
	snapshot Snapshot

	downsampleFactor int // audio-thread local, no lock needed
	blockCounter     int
	seq              uint64
}

// New creates a Meter with metering enabled on every block.
func New() *Meter {
	return &Meter{downsampleFactor: 1}
}

// SetDownsampleFactor sets the metering interval: with factor n only every
// nth block is metered, clamped to [1, 16]; 1 meters every block.
// Audio-thread only.
func (m *Meter) SetDownsampleFactor(n int) {
	if n < 1 {
		n = 1
	} else if n > maxDownsampleFactor {
		n = maxDownsampleFactor
	}
	m.downsampleFactor = n
}

// Disable skips metering entirely until re-enabled (spec: "when disabled
// entirely, the metering pass is skipped"). Audio-thread only.
func (m *Meter) Disable() { m.downsampleFactor = 0 }

// Process walks buf (interleaved, channels-wide, length frames starting at
// start) computing peak absolute and RMS per channel, and publishes a new
// snapshot unless this block falls on a skipped downsample tick.
func (m *Meter) Process(buf []float32, channels, start, length int) {
	if m.downsampleFactor <= 0 || length <= 0 {
		return
	}
	m.blockCounter++
	if m.blockCounter < m.downsampleFactor {
		return
	}
	m.blockCounter = 0

	var peakL, peakR, sumL, sumR float64
	for i := 0; i < length; i++ {
		base := (start + i) * channels
		l := float64(buf[base])
		r := l
		if channels > 1 {
			r = float64(buf[base+1])
		}
		if al := math.Abs(l); al > peakL {
			peakL = al
		}
		if ar := math.Abs(r); ar > peakR {
			peakR = ar
		}
		sumL += l * l
		sumR += r * r
	}

	m.seq++
	snap := Snapshot{
		PeakL:       peakL,
		PeakR:       peakR,
		RMSL:        math.Sqrt(sumL / float64(length)),
		RMSR:        math.Sqrt(sumR / float64(length)),
		Seq:         m.seq,
		SampleCount: int64(length),
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
}

// Snapshot returns the most recently published snapshot. Safe to call from
// the control thread while the audio thread is running (spec: "readers see
// either the previous or the new snapshot").
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
