package engine

import (
	"github.com/cbegin/sionfm-go/internal/channel/fm"
	"github.com/cbegin/sionfm-go/internal/channel/sampler"
	"github.com/cbegin/sionfm-go/internal/channel/stream"
	"github.com/cbegin/sionfm-go/internal/effect"
)

// TrackKind selects which channel implementation a track's voice pool uses.
type TrackKind int

const (
	TrackFM TrackKind = iota
	TrackSampler
	TrackStream
)

// track is one mailbox-addressable track: a fixed pool of voices of one
// channel kind, allocated entirely at AddTrack time and round-robin
// reallocated at note-on thereafter (spec §5 "Memory discipline", §7
// "Resource exhaustion"). Each track owns its own disjoint pool.
type track struct {
	id   int
	kind TrackKind

	fmVoices      []*fm.Channel
	samplerVoices []*sampler.Channel
	streamVoices  []*stream.Channel

	nextAlloc int // round-robin cursor for voice stealing

	sends      [effect.NumSends]*effect.Stream
	sendLevels [effect.NumSends]float32
}

func (t *track) voiceCount() int {
	switch t.kind {
	case TrackFM:
		return len(t.fmVoices)
	case TrackSampler:
		return len(t.samplerVoices)
	default:
		return len(t.streamVoices)
	}
}

func (t *track) voiceIdle(i int) bool {
	switch t.kind {
	case TrackFM:
		return t.fmVoices[i].Idle()
	case TrackSampler:
		return t.samplerVoices[i].Idle()
	default:
		return t.streamVoices[i].Idle()
	}
}

// allocateVoice picks an idle slot if one exists, otherwise steals the
// next slot round-robin (or reports failure under StealReject). Returns
// the slot index, or ok=false if the note is rejected (spec §7 "the note
// is rejected").
func (t *track) allocateVoice(policy StealPolicy) (slot int, ok bool) {
	n := t.voiceCount()
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		if t.voiceIdle(i) {
			return t.claim(i), true
		}
	}
	if policy == StealReject {
		return 0, false
	}
	return t.claim(t.nextAlloc), true
}

func (t *track) claim(i int) int {
	t.nextAlloc = (i + 1) % t.voiceCount()
	return i
}

// process zeroes scratch, then renders every non-idle voice in this track
// into it, summed; renderOneBlock fans the result out to the track's sends
// (mixTrackIntoSends).
func (t *track) process(scratch []float32, channels, length int) {
	for i := range scratch {
		scratch[i] = 0
	}
	switch t.kind {
	case TrackFM:
		for _, v := range t.fmVoices {
			v.Process(scratch, channels, 0, length)
		}
	case TrackSampler:
		for _, v := range t.samplerVoices {
			v.Process(scratch, channels, 0, length)
		}
	case TrackStream:
		for _, v := range t.streamVoices {
			v.Process(scratch, channels, 0, length)
		}
	}
}
