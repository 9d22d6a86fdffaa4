package mailbox

// Mailbox is the control-thread-facing API: one strongly-typed setter per
// parameter kind (spec §6 "External interfaces"). Each setter synthesizes
// one Message and pushes it onto the ring. A Mailbox must be used by a
// single control-thread caller at a time; if multiple control threads share
// one Mailbox, the caller must serialize pushes externally (spec §5).
type Mailbox struct {
	ring Ring
}

// New returns a ready-to-use Mailbox.
func New() *Mailbox {
	return &Mailbox{}
}

// Drain hands every pending message to apply, in FIFO order. Call exactly
// once per processing block from the audio thread.
func (mb *Mailbox) Drain(apply func(*Message)) {
	mb.ring.Drain(apply)
}

// Pending reports the number of queued, undrained messages.
func (mb *Mailbox) Pending() int {
	return mb.ring.Pending()
}

func (mb *Mailbox) push(trackID, voiceScope int, fields Field, build func(*Message)) {
	m := Message{TrackID: trackID, VoiceScopeID: voiceScope, Fields: fields}
	build(&m)
	mb.ring.Push(m)
}

// SetVolume queues a volume change (linear, clamped to [0,2] on apply).
func (mb *Mailbox) SetVolume(trackID int, voiceScope int, volume float64) {
	mb.push(trackID, voiceScope, FieldVolume, func(m *Message) { m.Volume = volume })
}

// SetPan queues a pan change (clamped to [-64,64] on apply).
func (mb *Mailbox) SetPan(trackID int, voiceScope int, pan float64) {
	mb.push(trackID, voiceScope, FieldPan, func(m *Message) { m.Pan = pan })
}

// SetInstrumentGain queues an instrument gain change in dB (clamped to
// [-70,6] on apply).
func (mb *Mailbox) SetInstrumentGain(trackID int, voiceScope int, gainDB float64) {
	mb.push(trackID, voiceScope, FieldInstrumentGain, func(m *Message) { m.InstrumentGain = gainDB })
}

// SetFilterFullStamp queues a full filter restamp: it replaces the filter's
// EG rates/targets and restarts the EG from attack (spec §4.1).
func (mb *Mailbox) SetFilterFullStamp(trackID int, voiceScope int, stamp FilterStamp) {
	mb.push(trackID, voiceScope, FieldFilterFullStamp, func(m *Message) { m.FilterFullStamp = stamp })
}

// SetFilterCutoff queues a lightweight cutoff-only update, which sets the
// filter EG's attack-stage target cutoff without restarting the EG (no
// smoothing is applied).
func (mb *Mailbox) SetFilterCutoff(trackID int, voiceScope int, cutoff float64) {
	mb.push(trackID, voiceScope, FieldFilterCutoff, func(m *Message) { m.FilterCutoff = cutoff })
}

// SetFilterResonance queues a lightweight resonance-only update.
func (mb *Mailbox) SetFilterResonance(trackID int, voiceScope int, resonance float64) {
	mb.push(trackID, voiceScope, FieldFilterResonance, func(m *Message) { m.FilterResonance = resonance })
}

// SetFilterCutoffOffset queues a user cutoff-offset update, added to the
// EG cutoff before table lookup.
func (mb *Mailbox) SetFilterCutoffOffset(trackID int, voiceScope int, offset float64) {
	mb.push(trackID, voiceScope, FieldFilterCutoffOffset, func(m *Message) { m.FilterCutoffOffset = offset })
}

// SetAmpEnvelope queues amplitude ADSR rate/level updates; only the fields
// set in which are applied.
func (mb *Mailbox) SetAmpEnvelope(trackID int, voiceScope int, rates EnvelopeRates, which Field) {
	mb.push(trackID, voiceScope, which&(FieldAmpAttack|FieldAmpDecay|FieldAmpSustain|FieldAmpRelease), func(m *Message) {
		m.Amp = rates
	})
}

// SetOperatorParams queues FM-operator field updates; only the fields set in
// which are applied, scoped to params.Index.
func (mb *Mailbox) SetOperatorParams(trackID int, voiceScope int, params OperatorParams, which Field) {
	const mask = FieldOperatorTotalLevel | FieldOperatorMultiple | FieldOperatorDetune |
		FieldOperatorMute | FieldOperatorSSGMode | FieldOperatorSuperCount | FieldOperatorSuperSpread
	mb.push(trackID, voiceScope, which&mask, func(m *Message) { m.Operator = params })
}

// SetLFO queues per-channel LFO field updates; only the fields set in which
// are applied. params.Target is carried but not consulted when the message
// is applied.
func (mb *Mailbox) SetLFO(trackID int, voiceScope int, params LFOParams, which Field) {
	const mask = FieldLFORate | FieldLFODepth | FieldLFOWaveform | FieldLFOTimeMode
	mb.push(trackID, voiceScope, which&mask, func(m *Message) { m.LFO = params })
}

// SetChannelAM queues a channel-level AM depth update.
func (mb *Mailbox) SetChannelAM(trackID int, voiceScope int, am float64) {
	mb.push(trackID, voiceScope, FieldChannelAM, func(m *Message) { m.ChannelAM = am })
}

// SetChannelPM queues a channel-level PM depth update.
func (mb *Mailbox) SetChannelPM(trackID int, voiceScope int, pm float64) {
	mb.push(trackID, voiceScope, FieldChannelPM, func(m *Message) { m.ChannelPM = pm })
}

// SetPitchBend queues a pitch-bend update in semitones.
func (mb *Mailbox) SetPitchBend(trackID int, voiceScope int, semitones float64) {
	mb.push(trackID, voiceScope, FieldPitchBend, func(m *Message) { m.PitchBend = semitones })
}

// SetStreamingClip queues streaming-channel field updates (warp mode, loop
// on/off, seek; LoopStart/LoopEnd are carried but not applied); only the
// fields set in which are applied.
func (mb *Mailbox) SetStreamingClip(trackID int, voiceScope int, params StreamClipParams, which Field) {
	const mask = FieldStreamWarpMode | FieldStreamLoop | FieldStreamSeek
	mb.push(trackID, voiceScope, which&mask, func(m *Message) { m.StreamClip = params })
}

// NoteOn queues a note-on event as a parameter update (spec §5: "Note-off is
// modeled as a parameter update"; note-on follows the same path for strict
// mailbox FIFO ordering against other parameter writes on the same track).
func (mb *Mailbox) NoteOn(trackID int, params NoteControlParams) {
	mb.push(trackID, NoVoiceScope, FieldNoteOn, func(m *Message) { m.NoteControl = params })
}

// NoteOff queues a note-off event targeting a specific voice.
func (mb *Mailbox) NoteOff(trackID int, voiceID int) {
	mb.push(trackID, NoVoiceScope, FieldNoteOff, func(m *Message) { m.NoteControl = NoteControlParams{VoiceID: voiceID} })
}

// SetEffectChainOp queues a batched effect-chain mutation (set/insert/
// remove/swap/bypass), applied once at the chain level rather than per
// channel (spec §4.1). The engine applies Op 4 as a bypass toggle and every
// other Op as a parameter set; it does not insert, remove or swap effects.
func (mb *Mailbox) SetEffectChainOp(op EffectChainOp) {
	mb.push(-1, NoVoiceScope, FieldEffectChainOp, func(m *Message) { m.EffectChainOp = op })
}
