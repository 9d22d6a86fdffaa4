// Package rtaudio is the real-time audio-thread driver (spec §6 "Audio
// output"): a single host pull-callback that loops over a fixed internal
// block length, copying rendered frames into the host's destination buffer
// and carrying a residual buffer across calls that aren't an exact multiple
// of that block length. Adapted from the teacher's ebiten/oto
// StreamReader/Player integration (internal/audio/stream.go), generalized
// from a single SampleSource to the engine's block-rendering contract.
package rtaudio

import (
	"sync"
)

// BlockSource renders exactly frames stereo frames (interleaved, 2
// channels) into dst, which is sized frames*2. Implemented by
// internal/engine's Engine.
type BlockSource interface {
	RenderBlock(dst []float32, frames int)
}

// Driver adapts a BlockSource's fixed-size block rendering to a host
// callback that may request any number of frames at all (spec §6: "the
// callback loops, generating one internal block of buffer_length frames at
// a time... maintaining a residual buffer").
type Driver struct {
	mu     sync.Mutex
	source BlockSource

	bufferLength int // internal block length in frames

	residual       []float32 // interleaved stereo, capacity bufferLength*2
	residualFrames int       // unconsumed frames currently in residual
}

// NewDriver creates a Driver that pulls fixed bufferLength-frame blocks
// from source.
func NewDriver(source BlockSource, bufferLength int) *Driver {
	return &Driver{
		source:       source,
		bufferLength: bufferLength,
		residual:     make([]float32, bufferLength*2),
	}
}

// Process implements internal/audio's SampleSource-shaped contract: dst is
// interleaved stereo float32 of arbitrary length, filled entirely before
// returning. The audio thread must never block here beyond what rendering
// itself does (spec §5 "the audio thread never suspends").
func (d *Driver) Process(dst []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames := len(dst) / 2
	filled := 0
	for filled < frames {
		if d.residualFrames == 0 {
			d.source.RenderBlock(d.residual[:d.bufferLength*2], d.bufferLength)
			d.residualFrames = d.bufferLength
		}

		n := d.residualFrames
		if want := frames - filled; n > want {
			n = want
		}
		copy(dst[filled*2:(filled+n)*2], d.residual[:n*2])

		remaining := d.residualFrames - n
		if remaining > 0 {
			copy(d.residual, d.residual[n*2:d.residualFrames*2])
		}
		d.residualFrames = remaining
		filled += n
	}
}

// Finished always reports false: the live driver has no end-of-stream
// concept (that only applies to the offline renderer and one-shot
// playback sources), matching internal/audio's FinishingSource being
// optional.
func (d *Driver) Finished() bool { return false }
