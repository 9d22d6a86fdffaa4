package engine

import (
	"github.com/cbegin/sionfm-go/internal/chanlfo"
	"github.com/cbegin/sionfm-go/internal/channel/fm"
	"github.com/cbegin/sionfm-go/internal/channel/sampler"
	"github.com/cbegin/sionfm-go/internal/channel/stream"
	"github.com/cbegin/sionfm-go/internal/filter"
	"github.com/cbegin/sionfm-go/internal/mailbox"
	"github.com/cbegin/sionfm-go/internal/operator"
)

// apply dispatches one drained mailbox message to every voice it scopes to
// (spec §4.1 "Mailbox drain": only the fields present in msg.Fields are
// touched; a message with FieldNoteOn allocates a fresh voice rather than
// scoping to an existing one).
func (e *Engine) apply(msg *mailbox.Message) {
	if msg.Fields.Has(mailbox.FieldEffectChainOp) {
		e.applyEffectChainOp(msg.EffectChainOp)
		return
	}

	t, ok := e.tracks[msg.TrackID]
	if !ok {
		return
	}

	if msg.Fields.Has(mailbox.FieldNoteOn) {
		e.applyNoteOn(t, msg.NoteControl)
		return
	}
	if msg.Fields.Has(mailbox.FieldNoteOff) {
		e.applyNoteOff(t, msg.NoteControl.VoiceID)
		return
	}

	for i := 0; i < t.voiceCount(); i++ {
		if !msg.MatchesChannel(t.id, i) {
			continue
		}
		e.applyToVoice(t, i, msg)
	}
}

func (e *Engine) applyNoteOn(t *track, params mailbox.NoteControlParams) {
	slot, ok := t.allocateVoice(e.cfg.StealPolicy)
	if !ok {
		e.log.Debug("note rejected: voice pool exhausted", "track", t.id)
		return
	}
	switch t.kind {
	case TrackFM:
		v := t.fmVoices[slot]
		v.Pan = 64 + params.Pan
		v.NoteOn(params.Note, params.StealHint)
	case TrackSampler:
		v := t.samplerVoices[slot]
		v.Pan = 64 + params.Pan
		v.NoteOn(params.Note)
	case TrackStream:
		t.streamVoices[slot].Start()
	}
}

func (e *Engine) applyNoteOff(t *track, voiceID int) {
	if voiceID < 0 || voiceID >= t.voiceCount() {
		return
	}
	switch t.kind {
	case TrackFM:
		t.fmVoices[voiceID].NoteOff()
	case TrackSampler:
		t.samplerVoices[voiceID].NoteOff()
	case TrackStream:
		t.streamVoices[voiceID].Stop()
	}
}

// applyToVoice applies every present non-note field of msg to voice i of t.
// Fields that don't apply to t's kind (e.g. FieldOperatorTotalLevel on a
// sampler track) are silently ignored, matching the mailbox's
// present-bit-only contract.
func (e *Engine) applyToVoice(t *track, i int, msg *mailbox.Message) {
	switch t.kind {
	case TrackFM:
		e.applyFM(t.fmVoices[i], msg)
	case TrackSampler:
		e.applySampler(t.samplerVoices[i], msg)
	case TrackStream:
		e.applyStream(t.streamVoices[i], msg)
	}
}

func applyAmbient(gainDB *float64, pan *int, sends *[4]float64, msg *mailbox.Message) {
	if msg.Fields.Has(mailbox.FieldInstrumentGain) {
		*gainDB = clampF(msg.InstrumentGain, -70, 6)
	}
	if msg.Fields.Has(mailbox.FieldPan) {
		*pan = clampInt(int(msg.Pan)+64, 0, 128)
	}
	if msg.Fields.Has(mailbox.FieldVolume) {
		sends[0] = clampF(msg.Volume, 0, 2)
	}
}

func applyLFO(l *chanlfo.LFO, msg *mailbox.Message) {
	if msg.Fields.Has(mailbox.FieldLFOWaveform) {
		l.SetWaveform(chanlfo.Waveform(msg.LFO.Waveform))
	}
	if msg.Fields.Has(mailbox.FieldLFODepth) {
		l.SetDepth(msg.LFO.Depth)
	}
	if msg.Fields.Has(mailbox.FieldLFOTimeMode) {
		l.SetSynced(chanlfo.TimeMode(msg.LFO.TimeMode), float64(msg.LFO.BeatDiv))
	}
	if msg.Fields.Has(mailbox.FieldLFORate) {
		l.SetRateHz(msg.LFO.Rate)
	}
}

func applyFilter(f *filter.SVF, msg *mailbox.Message) {
	if msg.Fields.Has(mailbox.FieldFilterFullStamp) {
		s := msg.FilterFullStamp
		f.Kind = filter.Type(s.FilterType)
		f.EG.Attack = filter.Stage{Target: s.AttackCutoff, Rate: s.AttackRate}
		f.EG.Decay1 = filter.Stage{Target: s.AttackCutoff, Rate: s.DecayRate}
		f.EG.Decay2 = filter.Stage{Target: s.SustainCutoff, Rate: s.SustainRate}
		f.EG.Release = filter.Stage{Target: 0, Rate: s.ReleaseRate}
		f.Resonance = s.Resonance
		f.CutoffOffset = s.CutoffOffset
		f.EG.NoteOn(f.EG.Cutoff())
		f.Active = true
		return
	}
	if msg.Fields.Has(mailbox.FieldFilterCutoff) {
		f.Bootstrap(filter.TypeLowPass)
		f.EG.Attack.Target = int(msg.FilterCutoff)
	}
	if msg.Fields.Has(mailbox.FieldFilterResonance) {
		f.Bootstrap(filter.TypeLowPass)
		f.Resonance = msg.FilterResonance
	}
	if msg.Fields.Has(mailbox.FieldFilterCutoffOffset) {
		f.Bootstrap(filter.TypeLowPass)
		f.CutoffOffset = msg.FilterCutoffOffset
	}
}

func (e *Engine) applyFM(v *fm.Channel, msg *mailbox.Message) {
	applyAmbient(&v.GainDB, &v.Pan, &v.SendLevels, msg)
	applyLFO(v.LFO, msg)
	applyFilter(&v.Filter, msg)

	// FieldChannelAM/FieldChannelPM: internal/channel/fm has no channel-level
	// AM/PM depth field (only sampler and stream channels do), so these
	// fields are ignored for FM voices.

	const opMask = mailbox.FieldOperatorTotalLevel | mailbox.FieldOperatorMultiple |
		mailbox.FieldOperatorDetune | mailbox.FieldOperatorMute | mailbox.FieldOperatorSSGMode |
		mailbox.FieldOperatorSuperCount | mailbox.FieldOperatorSuperSpread
	if msg.Fields&opMask == 0 {
		return
	}
	v.SetActiveOperator(msg.Operator.Index)
	op := v.ActiveOperator()
	if msg.Fields.Has(mailbox.FieldOperatorTotalLevel) {
		op.TotalLevel = clampInt(int(msg.Operator.TotalLevel), 0, 127)
	}
	if msg.Fields.Has(mailbox.FieldOperatorMultiple) {
		op.Multiple = msg.Operator.Multiple
	}
	if msg.Fields.Has(mailbox.FieldOperatorDetune) {
		op.Detune = msg.Operator.Detune
	}
	if msg.Fields.Has(mailbox.FieldOperatorMute) {
		op.Mute = msg.Operator.Mute
	}
	if msg.Fields.Has(mailbox.FieldOperatorSSGMode) {
		op.SSG = operator.SSGMode(msg.Operator.SSGMode)
	}
	if msg.Fields.Has(mailbox.FieldOperatorSuperCount) {
		op.SuperCount = msg.Operator.SuperCount
	}
	if msg.Fields.Has(mailbox.FieldOperatorSuperSpread) {
		op.SuperSpread = msg.Operator.SuperSpread
	}
}

func (e *Engine) applySampler(v *sampler.Channel, msg *mailbox.Message) {
	applyAmbient(&v.GainDB, &v.Pan, &v.SendLevels, msg)
	applyLFO(v.LFO, msg)
	applyFilter(&v.Filter, msg)
	if msg.Fields.Has(mailbox.FieldChannelAM) {
		v.AMDepth = msg.ChannelAM
	}
	if msg.Fields.Has(mailbox.FieldChannelPM) {
		v.PMDepthCents = msg.ChannelPM
	}
}

func (e *Engine) applyStream(v *stream.Channel, msg *mailbox.Message) {
	applyAmbient(&v.GainDB, &v.Pan, &v.SendLevels, msg)
	applyLFO(v.LFO, msg)
	applyFilter(&v.Filter, msg)

	if v.Clip == nil {
		return
	}
	if msg.Fields.Has(mailbox.FieldStreamWarpMode) {
		v.Warp = stream.WarpMode(msg.StreamClip.WarpMode)
	}
	if msg.Fields.Has(mailbox.FieldStreamLoop) {
		v.Clip.SetLoop(msg.StreamClip.Loop)
	}
	if msg.Fields.Has(mailbox.FieldStreamSeek) {
		v.Clip.RequestSeek(msg.StreamClip.SeekFrame)
	}
	if msg.StreamClip.DriverBPM > 0 {
		v.DriverBPM = msg.StreamClip.DriverBPM
	}
	if msg.StreamClip.ClipBPM > 0 {
		v.ClipBPM = msg.StreamClip.ClipBPM
	}
}

// applyEffectChainOp routes a batched effect-chain mutation to the stream
// registered under the op's StreamID (spec §4.1: "applied once at the chain
// level rather than per channel"). Only Op 4 (bypass) is handled as such;
// every other Op value, including 1-3 (insert/remove/swap), is applied as a
// SetParam on the effect at Index. Effects are not inserted, removed or
// reordered.
func (e *Engine) applyEffectChainOp(op mailbox.EffectChainOp) {
	s, ok := e.streamsByID[op.StreamID]
	if !ok {
		return
	}
	effects := s.Effects()
	if op.Index < 0 || op.Index >= len(effects) {
		return
	}
	switch op.Op {
	case 4: // bypass
		effects[op.Index].SetBypass(op.Bypass)
	default:
		effects[op.Index].SetParam(op.EffectID, op.Params)
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
