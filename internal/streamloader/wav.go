package streamloader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cbegin/sionfm-go/internal/streamdata"
)

// wavFormat mirrors the WAVE_FORMAT_* tag read from the fmt chunk.
type wavFormat uint16

const (
	wavFormatPCM       wavFormat = 1
	wavFormatIEEEFloat wavFormat = 3
	wavFormatExtensible wavFormat = 0xFFFE
)

// openWAV parses a RIFF/WAVE file's header synchronously (spec §6
// "load_wav... parses the WAV header synchronously (RIFF/WAVE + fmt + data
// chunks, word-aligned traversal)") and returns a Clip with its file handle
// positioned at the start of the data chunk, ready for the loader's first
// fill pass. No third-party pack dependency covers this RIFF walk; it's
// hand-rolled on encoding/binary, which is exactly how the spec itself
// describes the contract (byte-level chunk traversal, not a decode library).
func openWAV(path string) (*streamdata.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			f.Close()
		}
	}()

	var riffHeader [12]byte
	if _, err := io.ReadFull(f, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("streamloader: reading RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("streamloader: %s is not a RIFF/WAVE file", path)
	}

	var (
		format          wavFormat
		channels        int
		sampleRate      int
		bitsPerSample   int
		dataOffset      int64
		dataBytes       int64
		sawFmt, sawData bool
	)

	pos := int64(12)
	for !sawData {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return nil, fmt.Errorf("streamloader: reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		pos += 8

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("streamloader: reading fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, fmt.Errorf("streamloader: fmt chunk too short (%d bytes)", len(body))
			}
			format = wavFormat(binary.LittleEndian.Uint16(body[0:2]))
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if format == wavFormatExtensible && len(body) >= 40 {
				format = wavFormat(binary.LittleEndian.Uint16(body[24:26]))
			}
			sawFmt = true
		case "data":
			dataOffset = pos
			dataBytes = size
			sawData = true
			// Defer seeking to after the loop; data chunk content is not
			// read here (spec: streaming, not a synchronous full decode).
		default:
			if _, err := f.Seek(size, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("streamloader: skipping chunk %q: %w", id, err)
			}
		}
		if size%2 == 1 { // word-aligned traversal: chunks pad to an even size
			if _, err := f.Seek(1, io.SeekCurrent); err != nil {
				return nil, err
			}
			pos++
		}
		pos += size
	}

	if !sawFmt {
		return nil, fmt.Errorf("streamloader: %s has no fmt chunk", path)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("streamloader: unsupported channel count %d", channels)
	}

	sampleFormat, formatBytes, err := classifyFormat(format, bitsPerSample)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("streamloader: seeking to data chunk: %w", err)
	}

	totalSourceFrames := dataBytes / int64(formatBytes*channels)
	clip := streamdata.NewClip(path, sampleRate, channels, sampleFormat, dataOffset, dataBytes, totalSourceFrames)
	clip.File = f
	clip.DataFormatBytes = formatBytes
	clip.LoopEndFrame = -1

	closeOnErr = false
	return clip, nil
}

func classifyFormat(format wavFormat, bitsPerSample int) (streamdata.Format, int, error) {
	switch {
	case format == wavFormatPCM && bitsPerSample == 16:
		return streamdata.FormatPCM16, 2, nil
	case format == wavFormatPCM && bitsPerSample == 24:
		return streamdata.FormatPCM24, 3, nil
	case format == wavFormatIEEEFloat && bitsPerSample == 32:
		return streamdata.FormatFP32, 4, nil
	default:
		return 0, 0, fmt.Errorf("streamloader: unsupported WAV format (tag=%d, bits=%d)", format, bitsPerSample)
	}
}

// decodeFrames reads n source frames starting at the clip's current file
// position into dst (interleaved, per-channel [-1,1] floats), returning the
// number of frames actually decoded (less than n at end of data).
func decodeFrames(c *streamdata.Clip, dst []float64, n int) (int, error) {
	frameBytes := c.DataFormatBytes * c.Channels
	need := frameBytes * n
	if cap(c.DecodeBuf) < need {
		c.DecodeBuf = make([]byte, need)
	}
	buf := c.DecodeBuf[:need]
	read, err := io.ReadFull(c.File, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	frames := read / frameBytes
	for i := 0; i < frames*c.Channels; i++ {
		off := i * c.DataFormatBytes
		switch c.Format {
		case streamdata.FormatPCM16:
			v := int16(binary.LittleEndian.Uint16(buf[off:]))
			dst[i] = float64(v) / 32768.0
		case streamdata.FormatPCM24:
			v := int32(buf[off]) | int32(buf[off+1])<<8 | int32(buf[off+2])<<16
			if v&0x800000 != 0 {
				v |= -1 << 24 // sign-extend the 24-bit sample
			}
			dst[i] = float64(v) / 8388608.0
		case streamdata.FormatFP32:
			bits := binary.LittleEndian.Uint32(buf[off:])
			dst[i] = float64(math.Float32frombits(bits))
		}
	}
	return frames, nil
}
