package engine

// renderOneBlock drains the mailbox, runs every track's voice pool into its
// configured sends, then runs the effect graph in depth order and copies the
// master bus's result into dst (spec §2 data-flow: mailbox drain → channel
// render → effect graph → output, once per block; spec §6 "the same
// block-rendering path serves both live and offline output").
func (e *Engine) renderOneBlock(dst []float32) {
	e.drainMailbox()

	e.Graph.ClearAll()
	for _, id := range e.trackIDs {
		t := e.tracks[id]
		t.process(e.scratch, e.cfg.Channels, e.cfg.BufferLength)
		e.mixTrackIntoSends(t)
		e.Meters.RegisterTrack(id).Process(e.scratch, e.cfg.Channels, 0, e.cfg.BufferLength)
	}
	e.Graph.Process(0, e.cfg.BufferLength)

	master := e.Graph.Master()
	copy(dst, master.Accum())
	e.Meters.Master().Process(dst, e.cfg.Channels, 0, e.cfg.BufferLength)
}

// mixTrackIntoSends fans a track's rendered scratch buffer out to its
// configured send destinations at the track's per-slot level (spec §4.7
// "Routing"). Per-voice SendLevels are stored on each voice (FieldVolume
// writes SendLevels[0]) but no channel's Process reads them, so only the
// track's sendLevels scale what reaches each send.
func (e *Engine) mixTrackIntoSends(t *track) {
	for slot, dest := range t.sends {
		if dest == nil || t.sendLevels[slot] == 0 {
			continue
		}
		level := t.sendLevels[slot]
		for i := 0; i < e.cfg.BufferLength; i++ {
			base := i * e.cfg.Channels
			l := e.scratch[base]
			r := l
			if e.cfg.Channels > 1 {
				r = e.scratch[base+1]
			}
			dest.Mix(i, l, r, level)
		}
	}
}

// drainMailbox applies every queued parameter/trigger message before
// rendering the block (spec §2 "the mailbox is drained once per block").
func (e *Engine) drainMailbox() {
	e.Mailbox.Drain(e.apply)
}

// RenderBlock implements internal/rtaudio.BlockSource: it renders in chunks
// of cfg.BufferLength frames so the live driver's residual buffering can pull
// any request size without the engine resizing its internal block (spec §6
// "Audio output").
func (e *Engine) RenderBlock(dst []float32, frames int) {
	produced := 0
	block := make([]float32, e.cfg.BufferLength*e.cfg.Channels)
	for produced < frames {
		e.renderOneBlock(block)
		n := frames - produced
		if n > e.cfg.BufferLength {
			n = e.cfg.BufferLength
		}
		copy(dst[produced*e.cfg.Channels:(produced+n)*e.cfg.Channels], block[:n*e.cfg.Channels])
		produced += n
	}
}

// RenderOffline renders totalFrames synchronously through the same
// per-block path as the live driver, appending interleaved samples to the
// returned slice (spec §6 "Offline rendering" shares the render path with
// live playback).
func (e *Engine) RenderOffline(totalFrames int) []float32 {
	out := make([]float32, 0, totalFrames*e.cfg.Channels)
	block := make([]float32, e.cfg.BufferLength*e.cfg.Channels)
	remaining := totalFrames
	for remaining > 0 {
		e.renderOneBlock(block)
		n := remaining
		if n > e.cfg.BufferLength {
			n = e.cfg.BufferLength
		}
		out = append(out, block[:n*e.cfg.Channels]...)
		remaining -= n
	}
	return out
}
