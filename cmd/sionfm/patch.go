package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cbegin/sionfm-go/internal/engine"
	"github.com/cbegin/sionfm-go/internal/mailbox"
)

// loadOperatorPatch reads a patch file and pushes one SetOperatorParams
// mailbox message per operator line, adapted from the teacher's
// LoadOPMPatch/LoadOPMPatchFromDefs numeric-stream parsing
// (internal/fm/engine.go) to the mailbox's reduced per-operator field set
// (OperatorParams carries TotalLevel/Multiple/Detune/Mute/SSGMode/
// SuperCount/SuperSpread and has no envelope-rate fields, so the OPM chip's
// AR/D1R/D2R/RR/D1L rates are not parsed, although each operator has its
// own amplitude envelope).
//
// Each non-blank, non-comment line is one operator:
//
//	<index> <totalLevel 0-127> <multiple> <detune> [mute 0|1]
func loadOperatorPatch(eng *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	applied := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return fmt.Errorf("patch line %q: want at least 4 fields, got %d", line, len(fields))
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil || index < 0 || index > 3 {
			return fmt.Errorf("patch line %q: operator index must be 0-3", line)
		}
		totalLevel, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("patch line %q: bad total level: %w", line, err)
		}
		multiple, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("patch line %q: bad multiple: %w", line, err)
		}
		detune, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return fmt.Errorf("patch line %q: bad detune: %w", line, err)
		}
		mute := len(fields) > 4 && fields[4] == "1"

		params := mailbox.OperatorParams{
			Index:      index,
			TotalLevel: totalLevel,
			Multiple:   multiple,
			Detune:     detune,
			Mute:       mute,
		}
		const mask = mailbox.FieldOperatorTotalLevel | mailbox.FieldOperatorMultiple |
			mailbox.FieldOperatorDetune | mailbox.FieldOperatorMute
		eng.Mailbox.SetOperatorParams(0, mailbox.NoVoiceScope, params, mask)
		applied++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if applied == 0 {
		return fmt.Errorf("patch file %q defined no operators", path)
	}
	return nil
}
