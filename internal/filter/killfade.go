package filter

// KillFade is the short linear fade-to-zero applied after DSP whenever a
// channel is being torn down or restarted mid-sound, to avoid a step
// discontinuity (spec §4.6, glossary "click fade / kill fade").
type KillFade struct {
	remaining int
	total     int
}

// Start begins a fade of totalSamples length. totalSamples <= 0 disables the
// fade (treated as already complete).
func (k *KillFade) Start(totalSamples int) {
	if totalSamples < 0 {
		totalSamples = 0
	}
	k.total = totalSamples
	k.remaining = totalSamples
}

// Active reports whether a fade is in progress.
func (k *KillFade) Active() bool { return k.remaining > 0 }

// Step consumes one sample of the fade and returns its gain in [0,1]. A
// single-sample fade returns 0 for its one step (spec: "single-sample fades
// gain = 0"). Calling Step with no active fade returns 1 (no attenuation).
func (k *KillFade) Step() float64 {
	if k.remaining <= 0 {
		return 1
	}
	if k.total <= 1 {
		k.remaining = 0
		return 0
	}
	gain := float64(k.remaining-1) / float64(k.total-1)
	if gain < 0 {
		gain = 0
	}
	if gain > 1 {
		gain = 1
	}
	k.remaining--
	return gain
}
