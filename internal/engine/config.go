// Package engine wires the per-channel DSP (FM, sampler, streaming),
// the cross-thread parameter mailbox, the effect-routing graph, and
// metering behind one block-rendering entry point shared by the live
// rtaudio driver and the offline renderer (spec §2 data-flow, §6
// "Offline rendering"). Grounded on player.go/offline.go's
// engine-construction and render-loop shape, generalized from a single
// selectable synth engine to the full channel-kind/effect-graph pipeline.
package engine

import "fmt"

// NumFMVoices/NumSamplerVoices/NumStreamVoices size each track kind's
// fixed voice pool, allocated once at construction and never resized
// during playback (spec §5 "Memory discipline").
const (
	NumFMVoices      = 8
	NumSamplerVoices = 8
	NumStreamVoices  = 2
)

// StealPolicy selects what happens when a track's voice pool is exhausted
// at note-on (spec §7 "Resource exhaustion").
type StealPolicy int

const (
	StealReject  StealPolicy = iota // drop the note
	StealOverwrite                  // force the oldest-allocated voice to restart
)

// Config is the engine's construction-time configuration (spec §7
// "Configuration errors").
type Config struct {
	SampleRate   int
	BufferLength int // internal block length in frames; must be a power of two in [32, 8192]
	Channels     int // 1 or 2
	StealPolicy  StealPolicy
}

// DefaultConfig returns a stereo 48kHz configuration with a 256-frame
// internal block.
func DefaultConfig() Config {
	return Config{SampleRate: 48000, BufferLength: 256, Channels: 2, StealPolicy: StealOverwrite}
}

// Validate enforces the spec's configuration-error taxonomy: invalid
// configuration fails construction outright rather than degrading
// silently (spec §7 "Configuration errors... construction/load fails, the
// core is not used").
func (c Config) Validate() error {
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("engine: unsupported sample rate %d (want 44100 or 48000)", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("engine: unsupported channel count %d (want 1 or 2)", c.Channels)
	}
	if c.BufferLength < 32 || c.BufferLength > 8192 || c.BufferLength&(c.BufferLength-1) != 0 {
		return fmt.Errorf("engine: buffer length %d must be a power of two in [32, 8192]", c.BufferLength)
	}
	return nil
}
