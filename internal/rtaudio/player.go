package rtaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// byteReader turns a Driver's float32 Process into the io.Reader shape
// ebiten's audio context wants, converting each sample to its IEEE-754
// little-endian byte representation (spec §6's callback contract expressed
// over the host library's byte-stream API).
type byteReader struct {
	driver *Driver
	buf    []float32
}

func newByteReader(d *Driver) *byteReader { return &byteReader{driver: d} }

func (r *byteReader) Read(p []byte) (int, error) {
	frames := len(p) / 8 // 2 channels * 4 bytes/float32
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.driver.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *byteReader) Close() error { return nil }

// Player is a live audio output stream bound to one Driver (spec §6
// "Audio output"), adapted from internal/audio.Player's ebiten/oto
// integration.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextErr  error
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("rtaudio: audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// NewPlayer opens a live output stream at sampleRate, pulling fixed-size
// blocks from driver.
func NewPlayer(sampleRate int, driver *Driver) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := newByteReader(driver)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()            { p.player.Play() }
func (p *Player) Pause()           { p.player.Pause() }
func (p *Player) IsPlaying() bool  { return p.player.IsPlaying() }
func (p *Player) Position() time.Duration { return p.player.Position() }

// Stop halts playback and releases the underlying ebiten player.
func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
