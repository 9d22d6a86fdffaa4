package streamloader

import (
	"io"

	"github.com/cbegin/sionfm-go/internal/streamdata"
)

// decodeChunkFrames is how many new source frames one decode call pulls in
// (spec §4.5 "pull the next chunk").
const decodeChunkFrames = 2048

// fillBatchFrames caps how many 48kHz output frames a single fill() pass
// produces, so one loader wakeup never monopolizes the loader thread on a
// very hungry ring.
const fillBatchFrames = 8192

// fill is the loader thread's one unit of work for a clip: decode source
// audio, resample it to 48kHz, and append to the ring until either the
// ring's free space or the per-pass budget is exhausted (spec §4.5
// "Resampler (loader thread)").
func fill(c *streamdata.Clip) {
	ring := int64(c.RingFrames())
	free := ring - c.Available()
	if free <= 2 {
		return
	}
	budget := free - 1 // keep one frame of footroom for interpolation
	if budget > fillBatchFrames {
		budget = fillBatchFrames
	}

	ratio := sourceRatio(c)
	writeBase := c.WritePos()
	var produced int64

	for produced < budget {
		chunk, n, eof := decodeChunk(c, decodeChunkFrames)
		if n < 2 {
			if eof {
				if c.Loop() && c.LoopEndFrame >= 0 {
					repositionForLoop(c)
					continue
				}
				c.SetActive(false)
			}
			break
		}

		for c.ResampleCursor < float64(n-1) && produced < budget {
			i0 := int(c.ResampleCursor)
			frac := c.ResampleCursor - float64(i0)
			l, r := interpFrame(chunk, c.Channels, i0, frac)
			c.WriteFrame(int(writeBase+produced), l, r)
			produced++
			c.ResampleCursor += ratio
			c.Decode48kPos++
			if c.LoopEndFrame >= 0 && c.Decode48kPos >= c.LoopEndFrame {
				repositionForLoop(c)
			}
		}

		// Carry the chunk's final decoded frame as the next overlap sample
		// and rewind the cursor so it still points into the (now stale)
		// chunk's trailing edge, ready to continue from the fresh one
		// (spec §4.5: "save the last source frame as the next overlap").
		c.ResampleCursor -= float64(n - 1)
		c.OverlapSample[0], c.OverlapSample[1] = frameAt(chunk, c.Channels, n-1)

		if eof {
			if c.Loop() && c.LoopEndFrame >= 0 {
				repositionForLoop(c)
				continue
			}
			c.SetActive(false)
			break
		}
	}

	if produced > 0 {
		c.SetWritePos(writeBase + produced)
	}
}

func sourceRatio(c *streamdata.Clip) float64 {
	if c.SourceSampleRate <= 0 {
		return 1
	}
	return float64(c.SourceSampleRate) / float64(streamdata.TargetSampleRate)
}

// decodeChunk prepends the clip's carried-over overlap sample to wantFrames
// freshly decoded source frames, returning the combined buffer, its frame
// count (including the overlap), and whether fewer than wantFrames new
// frames were available (end of data).
func decodeChunk(c *streamdata.Clip, wantFrames int) (chunk []float64, frames int, eof bool) {
	ch := c.Channels
	buf := make([]float64, (wantFrames+1)*ch)
	buf[0] = c.OverlapSample[0]
	if ch > 1 {
		buf[1] = c.OverlapSample[1]
	}

	got, err := decodeFrames(c, buf[ch:], wantFrames)
	c.SourceFramePos += int64(got)
	eof = got < wantFrames || (err != nil && err != io.EOF)
	return buf, got + 1, eof
}

func interpFrame(chunk []float64, channels, i0 int, frac float64) (l, r float64) {
	al, ar := frameAt(chunk, channels, i0)
	bl, br := frameAt(chunk, channels, i0+1)
	return al + (bl-al)*frac, ar + (br-ar)*frac
}

func frameAt(chunk []float64, channels, i int) (l, r float64) {
	if channels == 1 {
		v := chunk[i]
		return v, v
	}
	return chunk[i*2], chunk[i*2+1]
}

// repositionForLoop seeks the loader's source cursor back to the clip's
// loop start, computed via the inverse sample-rate ratio when resampling is
// active (spec §4.5 "Loop wrap"). The resample cursor, overlap sample, and
// decode position all reset since crossing a non-contiguous seek discards
// any interpolation continuity anyway.
func repositionForLoop(c *streamdata.Clip) {
	ratio := sourceRatio(c)
	sourceFrame := int64(float64(c.LoopStartFrame) * ratio)
	offset := c.DataChunkOffset + sourceFrame*int64(c.DataFormatBytes*c.Channels)
	if c.File != nil {
		c.File.Seek(offset, io.SeekStart)
	}
	c.SourceFramePos = sourceFrame
	c.Decode48kPos = c.LoopStartFrame
	c.ResampleCursor = 0
	c.OverlapSample[0], c.OverlapSample[1] = 0, 0
}
