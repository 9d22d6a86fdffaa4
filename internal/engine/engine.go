package engine

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/sionfm-go/internal/channel/fm"
	"github.com/cbegin/sionfm-go/internal/channel/sampler"
	"github.com/cbegin/sionfm-go/internal/channel/stream"
	"github.com/cbegin/sionfm-go/internal/effect"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/mailbox"
	"github.com/cbegin/sionfm-go/internal/meter"
	"github.com/cbegin/sionfm-go/internal/streamdata"
	"github.com/cbegin/sionfm-go/internal/streamloader"
	"github.com/cbegin/sionfm-go/internal/tables"
)

// Engine is the top-level synthesis core: it owns every track's voice
// pools, the parameter mailbox, the effect-routing graph, metering, and
// the streaming loader, and exposes one block-rendering entry point
// shared by the live driver and the offline renderer (spec §2, §6).
type Engine struct {
	cfg       Config
	tables    *tables.Set
	cutoffLUT *filter.CutoffLUT
	log       *log.Logger

	Mailbox *mailbox.Mailbox
	Loader  *streamloader.Loader
	Graph   *effect.Graph
	Meters  *meter.Registry

	tracks   map[int]*track
	trackIDs []int // insertion order, for deterministic processing

	streamsByID map[int]*effect.Stream // for FieldEffectChainOp dispatch; 0 = master

	group errgroup.Group // supervises the loader goroutine started by Start

	scratch []float32 // per-voice render scratch, reused across tracks
}

// New validates cfg and constructs an Engine with its master effect
// stream, mailbox, loader, and table/filter singletons ready; no track
// exists until AddTrack is called (spec §7 "Configuration errors").
func New(cfg Config, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ts := tables.Get(cfg.SampleRate)
	master := effect.New("master", 0, cfg.BufferLength, cfg.Channels, ts)

	e := &Engine{
		cfg:         cfg,
		tables:      ts,
		cutoffLUT:   filter.BuildCutoffLUT(cfg.SampleRate),
		log:         logger,
		Mailbox:     mailbox.New(),
		Loader:      streamloader.New(),
		Graph:       effect.NewGraph(master),
		Meters:      meter.NewRegistry(),
		tracks:      make(map[int]*track),
		streamsByID: map[int]*effect.Stream{0: master},
		scratch:     make([]float32, cfg.BufferLength*cfg.Channels),
	}
	return e, nil
}

// Master returns the depth-0 effect stream every track's default send
// targets.
func (e *Engine) Master() *effect.Stream { return e.Graph.Master() }

// BufferLength returns the internal block size in frames, for callers that
// need to size an rtaudio.Driver around this engine.
func (e *Engine) BufferLength() int { return e.cfg.BufferLength }

// AddGlobalEffectSlot registers a new non-master effect stream under id
// (spec §4.7 "Sends 1..3 route to global effect slots") and returns it so
// the caller can wire sends into it. id is also the EffectChainOp.StreamID
// used to target this stream from the mailbox.
func (e *Engine) AddGlobalEffectSlot(id int, name string, depth int) *effect.Stream {
	s := effect.New(name, depth, e.cfg.BufferLength, e.cfg.Channels, e.tables)
	e.Graph.Register(s)
	e.streamsByID[id] = s
	return s
}

// AddTrack allocates a new track's full voice pool (NumFMVoices /
// NumSamplerVoices / NumStreamVoices, per kind) routed to the master bus
// by default on send 0 (spec §4.7 "Send 0 is the channel's main output").
func (e *Engine) AddTrack(id int, kind TrackKind) (*track, error) {
	if _, exists := e.tracks[id]; exists {
		return nil, fmt.Errorf("engine: track %d already exists", id)
	}
	t := &track{id: id, kind: kind}
	t.sends[0] = e.Graph.Master()
	t.sendLevels[0] = 1

	switch kind {
	case TrackFM:
		t.fmVoices = make([]*fm.Channel, NumFMVoices)
		for i := range t.fmVoices {
			t.fmVoices[i] = fm.New(e.tables, e.cfg.SampleRate, e.cfg.BufferLength, e.cutoffLUT)
		}
	case TrackSampler:
		t.samplerVoices = make([]*sampler.Channel, NumSamplerVoices)
		for i := range t.samplerVoices {
			t.samplerVoices[i] = sampler.New(e.tables, e.cfg.SampleRate, e.cutoffLUT)
		}
	case TrackStream:
		t.streamVoices = make([]*stream.Channel, NumStreamVoices)
		for i := range t.streamVoices {
			t.streamVoices[i] = stream.New(e.tables, e.cfg.SampleRate, e.cutoffLUT, e.Loader)
		}
	default:
		return nil, fmt.Errorf("engine: unknown track kind %d", kind)
	}

	e.tracks[id] = t
	e.trackIDs = append(e.trackIDs, id)
	e.Meters.RegisterTrack(id)
	return t, nil
}

// RouteSend assigns track's send slot to dest at the given linear level
// (spec §4.7 "Routing").
func (e *Engine) RouteSend(trackID, slot int, level float32, dest *effect.Stream) {
	t, ok := e.tracks[trackID]
	if !ok || slot < 0 || slot >= effect.NumSends {
		return
	}
	t.sends[slot] = dest
	t.sendLevels[slot] = level
}

// LoadClip attaches a streaming clip to a specific streaming voice slot,
// ahead of Start (spec §6 "load_wav").
func (e *Engine) LoadClip(trackID, voiceSlot int, clip *streamdata.Clip) error {
	t, ok := e.tracks[trackID]
	if !ok || t.kind != TrackStream || voiceSlot < 0 || voiceSlot >= len(t.streamVoices) {
		return fmt.Errorf("engine: no streaming voice %d on track %d", voiceSlot, trackID)
	}
	t.streamVoices[voiceSlot].Load(clip)
	return nil
}

// NoteOn and NoteOff are not exposed directly on Engine: note events are
// control-thread writes like any other parameter, so callers use
// e.Mailbox.NoteOn/NoteOff and the change takes effect on the next drained
// block (spec §5 "Note-off is modeled as a parameter update"; see apply.go).
