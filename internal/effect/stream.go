// Package effect implements the effect-stream routing layer that sits above
// internal/effectfx (spec §4.7): an ordered chain of effectfx.Effect units
// feeding an accumulator, with send-level mixing between streams and
// depth-ordered processing so upstream track chains feed the master chain
// within the same block.
package effect

import (
	"github.com/cbegin/sionfm-go/internal/effectfx"
	"github.com/cbegin/sionfm-go/internal/tables"
)

// NumSends is the number of send slots a channel or stream can target: send
// 0 is always the main/insert destination, sends 1-3 route to global effect
// slots (spec §4.7 "Routing").
const NumSends = 4

// Stream is one node in the effect-routing graph: a per-track insert chain
// or a global effect slot, including the master bus at Depth 0.
type Stream struct {
	Name  string
	Depth int

	effects []effectfx.Effect

	channels    int
	blockFrames int
	accum       []float32 // interleaved, len = blockFrames*channels

	postFaderGain float32
	postPan       int // 0..128, 64 = center (spec §4: pan -64..+64 stored 0..128)

	sends      [NumSends]float32
	downstream [NumSends]*Stream

	tables *tables.Set
}

// New creates an empty stream at the given depth. blockFrames and channels
// size the accumulator; channels is normally 2 (stereo master bus).
func New(name string, depth, blockFrames, channels int, ts *tables.Set) *Stream {
	return &Stream{
		Name:          name,
		Depth:         depth,
		channels:      channels,
		blockFrames:   blockFrames,
		accum:         make([]float32, blockFrames*channels),
		postFaderGain: 1,
		postPan:       64,
		tables:        ts,
	}
}

// AddEffect appends an effect to the chain. Order matters: effects run in
// the order added, each consuming the previous effect's output in place.
func (s *Stream) AddEffect(e effectfx.Effect) {
	s.effects = append(s.effects, e)
}

// Effects returns the chain for inspection/bypass toggling by index.
func (s *Stream) Effects() []effectfx.Effect {
	return s.effects
}

// SetSend sets the linear send level (clamped [0,2]) for slot 0..3 and its
// destination stream. A nil destination silences that send.
func (s *Stream) SetSend(slot int, level float32, dest *Stream) {
	if slot < 0 || slot >= NumSends {
		return
	}
	if level < 0 {
		level = 0
	} else if level > 2 {
		level = 2
	}
	s.sends[slot] = level
	s.downstream[slot] = dest
}

// SetPostFader sets the post-fader linear gain and pan position (0..128,
// clamped; 64 = center) applied when this stream's output is distributed to
// its downstream sends.
func (s *Stream) SetPostFader(gain float32, pan int) {
	s.postFaderGain = gain
	if pan < 0 {
		pan = 0
	} else if pan > tables.PanTableSize-1 {
		pan = tables.PanTableSize - 1
	}
	s.postPan = pan
}

// Accum exposes the accumulator buffer so channels can sum their output into
// it directly (spec §4.7 "Sums are performed in the destination stream's
// accumulator").
func (s *Stream) Accum() []float32 {
	return s.accum
}

// Clear zeroes the accumulator; called once per block before channel mixing.
func (s *Stream) Clear() {
	for i := range s.accum {
		s.accum[i] = 0
	}
}

// Mix sums a frame (l, r) into the accumulator at frame index i, scaled by
// level. Used by both channel mixdown and inter-stream send routing.
func (s *Stream) Mix(i int, l, r, level float32) {
	base := i * s.channels
	if s.channels == 1 {
		s.accum[base] += (l + r) * 0.5 * level
		return
	}
	s.accum[base] += l * level
	s.accum[base+1] += r * level
}

// Process runs the effect chain over the accumulator, applies post-fader
// gain and pan, then fans the result into the downstream streams'
// accumulators via their send levels. Call once per block, in depth order
// (deepest first; spec §4.7 "Depth ordering").
func (s *Stream) Process(start, length int) {
	channels := s.channels
	for _, e := range s.effects {
		if e.Bypassed() {
			continue
		}
		e.PrepareProcess()
		channels = e.Process(channels, s.accum, start, length)
	}

	panL, panR := 1.0, 1.0
	if s.tables != nil {
		panL, panR = s.tables.PanTable[s.postPan][0], s.tables.PanTable[s.postPan][1]
	}
	gain := s.postFaderGain

	for i := start; i < start+length; i++ {
		base := i * s.channels
		var l, r float32
		if s.channels == 1 {
			l = s.accum[base]
			r = l
		} else {
			l, r = s.accum[base], s.accum[base+1]
		}
		l *= gain * float32(panL)
		r *= gain * float32(panR)

		for slot, level := range s.sends {
			dest := s.downstream[slot]
			if dest == nil || level == 0 {
				continue
			}
			dest.Mix(i, l, r, level)
		}
	}
}

// Reset clears every effect's internal state; called on transport stop/seek
// so stale filter memory does not bleed into the next block.
func (s *Stream) Reset() {
	for _, e := range s.effects {
		e.Reset()
	}
	s.Clear()
}
