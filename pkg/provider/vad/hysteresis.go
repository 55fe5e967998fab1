package vad

// Hysteresis turns per-frame voice/silence decisions into speech edges. At
// most one of the two run counters is non-zero at any time.
type Hysteresis struct {
	minVoice   int
	minSilence int

	voiceRun   int
	silenceRun int
	speaking   bool
}

// NewHysteresis returns a state machine that starts speech after minVoice
// consecutive voice frames and ends it after minSilence consecutive silent
// frames.
func NewHysteresis(minVoice, minSilence int) *Hysteresis {
	return &Hysteresis{minVoice: minVoice, minSilence: minSilence}
}

// Update feeds one frame decision and returns the resulting edge.
func (h *Hysteresis) Update(voice bool) EventType {
	if voice {
		h.voiceRun++
		h.silenceRun = 0
		if !h.speaking && h.voiceRun >= h.minVoice {
			h.speaking = true
			return EventSpeechStarted
		}
		return EventNone
	}

	h.silenceRun++
	h.voiceRun = 0
	if h.speaking && h.silenceRun >= h.minSilence {
		h.speaking = false
		return EventSpeechEnded
	}
	return EventNone
}

// Speaking reports whether speech is currently active.
func (h *Hysteresis) Speaking() bool { return h.speaking }

// Runs returns the current voice and silence run lengths.
func (h *Hysteresis) Runs() (voice, silence int) { return h.voiceRun, h.silenceRun }

// Reset drops both counters and clears the speaking state.
func (h *Hysteresis) Reset() {
	h.voiceRun = 0
	h.silenceRun = 0
	h.speaking = false
}
