package streamdata

import (
	"os"
	"sync/atomic"
)

// Format selects the streaming clip's on-disk sample encoding (spec §3).
type Format int

const (
	FormatPCM16 Format = iota
	FormatPCM24
	FormatFP32
)

// RingDefaultFrames is the default streaming ring capacity: ~340ms stereo
// at 48kHz (spec §3 "Ring capacity default ~340 ms stereo"), rounded up to
// a power of two as the ring's masking scheme requires.
const RingDefaultFrames = 1 << 14 // 16384 frames ~= 341ms at 48kHz

// Clip describes one streaming source file: static metadata set once at
// open, plus the cross-thread ring buffer and atomic cursors the loader
// thread and the audio thread share without locks (spec §3 "Streaming clip
// data").
type Clip struct {
	Path             string
	SourceSampleRate int
	Channels         int
	Format           Format

	DataChunkOffset int64
	DataChunkBytes  int64

	TotalSourceFrames int64
	Total48kFrames    int64 // derived: TotalSourceFrames * 48000 / SourceSampleRate

	// Ring is a power-of-two ring of 48kHz interleaved stereo doubles (mono
	// sources are duplicated to both channels on decode). Sized
	// RingDefaultFrames*2 float64s (2 channels).
	Ring []float64

	writePos atomic.Int64 // loader-thread-owned; audio thread only reads
	readPos  atomic.Int64 // audio-thread-owned; loader thread only reads

	active        atomic.Bool
	seekRequested atomic.Bool
	loop          atomic.Bool
	seekTarget    atomic.Int64

	// enqueued/processing implement the spec §4.5 "work-queue discipline":
	// enqueued dedupes in-flight refill requests (a request already queued
	// subsumes new ones); processing is raised while the loader is inside
	// its fill pass, so wait_until_idle-style callers can spin on both.
	enqueued   atomic.Bool
	processing atomic.Bool

	// LoopStartFrame/LoopEndFrame are 48kHz-domain loop points the loader
	// consults when Decode48kPos reaches the end (spec §4.5 "Loop wrap");
	// LoopEndFrame <= 0 disables looping.
	LoopStartFrame int64
	LoopEndFrame   int64

	// Loader-thread-only decode state: never touched by the audio thread.
	File            *os.File
	DataFormatBytes int // bytes per sample per channel for Format (2, 3, or 4)
	SourceFramePos  int64
	DecodeBuf       []byte
	ResampleCursor  float64
	OverlapSample   [2]float64
	Decode48kPos    int64
}

// MarkEnqueued flags the clip as queued for a refill, returning false if it
// was already enqueued (the in-flight request subsumes this one).
func (c *Clip) MarkEnqueued() bool {
	return c.enqueued.CompareAndSwap(false, true)
}

// ClearEnqueued is called once the loader has popped this clip off the
// queue and is about to process it (or, on a no-op fill, immediately).
func (c *Clip) ClearEnqueued() { c.enqueued.Store(false) }

func (c *Clip) Enqueued() bool { return c.enqueued.Load() }

// MarkProcessing/ClearProcessing bracket one loader fill() pass.
func (c *Clip) MarkProcessing()  { c.processing.Store(true) }
func (c *Clip) ClearProcessing() { c.processing.Store(false) }
func (c *Clip) Processing() bool { return c.processing.Load() }

// Idle reports whether neither a queued nor an in-progress fill remains,
// i.e. it's safe for the control thread to take exclusive ownership of the
// loader-only fields (spec §4.5 "wait_until_idle... used by the destructor
// and by load_wav() to establish exclusive access").
func (c *Clip) Idle() bool { return !c.Enqueued() && !c.Processing() }

// NewClip allocates a clip with a default-sized ring; Total48kFrames is
// derived immediately since it depends only on static metadata.
func NewClip(path string, sourceSampleRate, channels int, format Format, dataOffset, dataBytes, totalSourceFrames int64) *Clip {
	c := &Clip{
		Path:              path,
		SourceSampleRate:  sourceSampleRate,
		Channels:          channels,
		Format:            format,
		DataChunkOffset:   dataOffset,
		DataChunkBytes:    dataBytes,
		TotalSourceFrames: totalSourceFrames,
		Ring:              make([]float64, RingDefaultFrames*2),
	}
	if sourceSampleRate > 0 {
		c.Total48kFrames = totalSourceFrames * TargetSampleRate / int64(sourceSampleRate)
	}
	return c
}

// RingFrames reports the ring's frame capacity (power of two).
func (c *Clip) RingFrames() int {
	return len(c.Ring) / 2
}

// WritePos/ReadPos/SetWritePos/SetReadPos give the audio and loader threads
// ordered access to the shared cursors: the loader releases with
// SetWritePos after filling samples, the audio thread acquires with
// WritePos before consuming, and vice versa for ReadPos (spec §5 "ordering
// guarantees around mailbox ring acquire-load and ring release-store" --
// the same discipline applies to this ring).
func (c *Clip) WritePos() int64      { return c.writePos.Load() }
func (c *Clip) SetWritePos(v int64)  { c.writePos.Store(v) }
func (c *Clip) ReadPos() int64       { return c.readPos.Load() }
func (c *Clip) SetReadPos(v int64)   { c.readPos.Store(v) }

// Available reports how many unread 48kHz frames are currently buffered.
func (c *Clip) Available() int64 {
	return c.WritePos() - c.ReadPos()
}

func (c *Clip) Active() bool       { return c.active.Load() }
func (c *Clip) SetActive(v bool)   { c.active.Store(v) }
func (c *Clip) Loop() bool         { return c.loop.Load() }
func (c *Clip) SetLoop(v bool)     { c.loop.Store(v) }

// RequestSeek flags a pending seek to a 48kHz-domain frame position; the
// loader thread observes and clears this flag.
func (c *Clip) RequestSeek(frame48k int64) {
	c.seekTarget.Store(frame48k)
	c.seekRequested.Store(true)
}

// TakeSeekRequest reports and clears a pending seek, for the loader thread
// to consume exactly once.
func (c *Clip) TakeSeekRequest() (frame48k int64, ok bool) {
	if !c.seekRequested.CompareAndSwap(true, false) {
		return 0, false
	}
	return c.seekTarget.Load(), true
}

// ReadFrame reads the interleaved (left, right) sample at ring index i
// (already reduced mod ring capacity by the caller).
func (c *Clip) ReadFrame(i int) (l, r float64) {
	i &= c.RingFrames() - 1
	return c.Ring[i*2], c.Ring[i*2+1]
}

// WriteFrame writes an interleaved (left, right) sample at ring index i.
func (c *Clip) WriteFrame(i int, l, r float64) {
	i &= c.RingFrames() - 1
	c.Ring[i*2] = l
	c.Ring[i*2+1] = r
}
