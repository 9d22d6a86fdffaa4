// Command sionfm is a minimal driver for the internal/engine synthesis
// core: it builds one track, triggers a note through the mailbox, and
// either plays it live through internal/rtaudio or renders it to a WAV
// file offline, exercising the same per-block render path either way
// (spec §6 "Offline rendering"). Grounded on cmd/play_mml's flag-driven
// single-command shape, rebuilt on pflag per SPEC_FULL.md §2, and
// generalized from the old MML player onto the new engine/mailbox/rtaudio
// stack instead of a concrete per-kind VoiceEngine.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	mmlfm "github.com/cbegin/sionfm-go"
	"github.com/cbegin/sionfm-go/internal/engine"
	"github.com/cbegin/sionfm-go/internal/mailbox"
	"github.com/cbegin/sionfm-go/internal/rtaudio"
)

func main() {
	var (
		sampleRate   = pflag.Int("sample-rate", 48000, "output sample rate (44100 or 48000)")
		bufferLength = pflag.Int("buffer-length", 256, "internal render block size in frames (power of two, 32..8192)")
		channels     = pflag.Int("channels", 2, "output channel count (1 or 2)")
		engineKind   = pflag.String("engine", "fm", "track engine to demo: fm|sampler|stream")
		note         = pflag.Int("note", 60, "MIDI note number to trigger on an fm/sampler track")
		duration     = pflag.Float64("duration", 2.0, "seconds to render/play")
		patchPath    = pflag.String("patch", "", "path to an operator-patch file to load onto an fm track")
		wavPath      = pflag.String("wav", "", "path to a WAV file to load onto a streaming track")
		warp         = pflag.String("warp", "repitch", "streaming warp mode: repitch|bpm|tone|texture")
		offlineOut   = pflag.String("offline-out", "", "write offline render to this WAV path instead of playing live")
	)
	pflag.Parse()

	logger := log.New(os.Stderr)

	kind, err := parseEngineKind(*engineKind)
	if err != nil {
		logger.Fatal(err)
	}

	cfg := engine.DefaultConfig()
	cfg.SampleRate = *sampleRate
	cfg.BufferLength = *bufferLength
	cfg.Channels = *channels

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Fatal("invalid engine configuration", "err", err)
	}
	if _, err := eng.AddTrack(0, kind); err != nil {
		logger.Fatal("add track", "err", err)
	}

	eng.Start()
	defer eng.Close()

	if kind == engine.TrackStream {
		if err := loadStreamingClip(eng, *wavPath, *warp); err != nil {
			logger.Fatal("load streaming clip", "err", err)
		}
	}
	if kind == engine.TrackFM && *patchPath != "" {
		if err := loadOperatorPatch(eng, *patchPath); err != nil {
			logger.Fatal("load operator patch", "err", err)
		}
	}

	eng.Mailbox.NoteOn(0, mailbox.NoteControlParams{Note: *note})

	frames := int(*duration * float64(*sampleRate))
	if *offlineOut != "" {
		if err := renderToWAV(eng, *offlineOut, frames, *sampleRate, *channels); err != nil {
			logger.Fatal("render offline", "err", err)
		}
		logger.Info("wrote offline render", "path", *offlineOut, "frames", frames)
		return
	}

	if err := playLive(eng, logger, *sampleRate, *duration); err != nil {
		logger.Fatal("live playback", "err", err)
	}
}

func parseEngineKind(name string) (engine.TrackKind, error) {
	switch name {
	case "fm":
		return engine.TrackFM, nil
	case "sampler":
		return engine.TrackSampler, nil
	case "stream":
		return engine.TrackStream, nil
	default:
		return 0, fmt.Errorf("invalid -engine %q (expected fm|sampler|stream)", name)
	}
}

func loadStreamingClip(eng *engine.Engine, path, warpName string) error {
	if path == "" {
		return fmt.Errorf("-engine stream requires -wav")
	}
	clip, err := eng.Loader.LoadWAV(path)
	if err != nil {
		return err
	}
	if err := eng.LoadClip(0, 0, clip); err != nil {
		return err
	}
	eng.Mailbox.SetStreamingClip(0, 0, mailbox.StreamClipParams{WarpMode: parseWarpMode(warpName)}, mailbox.FieldStreamWarpMode)
	return nil
}

func parseWarpMode(name string) int {
	switch name {
	case "bpm":
		return 1
	case "tone":
		return 2
	case "texture":
		return 3
	default:
		return 0 // repitch
	}
}

func renderToWAV(eng *engine.Engine, path string, frames, sampleRate, channels int) error {
	samples := eng.RenderOffline(frames)
	return os.WriteFile(path, mmlfm.EncodeWAVFloat32LE(samples, sampleRate, channels), 0o644)
}

func playLive(eng *engine.Engine, logger *log.Logger, sampleRate int, seconds float64) error {
	driver := rtaudio.NewDriver(eng, eng.BufferLength())
	if err := rtaudio.LockMemory(); err != nil {
		logger.Warn("memory locking unavailable", "err", err)
	}
	player, err := rtaudio.NewPlayer(sampleRate, driver)
	if err != nil {
		return err
	}
	player.Play()
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return player.Stop()
}
