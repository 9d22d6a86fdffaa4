package effect

import (
	"github.com/cbegin/sionfm-go/internal/effectfx"
	"github.com/cbegin/sionfm-go/internal/effectfx/multiband"
)

// NewEffect builds a named effect unit with positional params, mirroring the
// MML `#EFFECT` directive dispatch (grounded on player.go's createEffect).
// Missing params fall back to the effect's own defaults; an unknown name
// returns nil.
func NewEffect(name string, sampleRate int, params []float64) effectfx.Effect {
	get := func(idx int, def float64) float64 {
		if idx < len(params) {
			return params[idx]
		}
		return def
	}
	switch name {
	case "delay":
		return effectfx.NewDelay(sampleRate,
			get(0, 250),
			float32(get(1, 0.4)),
			float32(get(2, 0.2)),
			float32(get(3, 0.3)),
		)
	case "reverb":
		return effectfx.NewReverb(sampleRate,
			float32(get(0, 0.5)),
			float32(get(1, 0.7)),
			float32(get(2, 0.25)),
		)
	case "chorus":
		return effectfx.NewChorus(sampleRate,
			float32(get(0, 15)),
			float32(get(1, 0.3)),
			float32(get(2, 3)),
			float32(get(3, 1.5)),
			float32(get(4, 0.4)),
		)
	case "dist", "distortion":
		return effectfx.NewDistortion(sampleRate,
			float32(get(0, 4)),
			float32(get(1, 0.5)),
			float32(get(2, 8000)),
		)
	case "eq", "eq5":
		return effectfx.NewEQ5Band(sampleRate)
	case "compressor", "comp":
		return effectfx.NewCompressor(sampleRate,
			float32(get(0, -20)),
			float32(get(1, 4)),
			float32(get(2, 10)),
			float32(get(3, 100)),
			float32(get(4, 0)),
		)
	case "multiband", "mbcomp":
		c := multiband.NewCompressor(sampleRate)
		c.SetMode(multiband.Mode(int(get(0, float64(multiband.ModeMultiband)))))
		return c
	default:
		return nil
	}
}
