// Package webrtc provides a [vad.Detector] backed by the WebRTC voice
// activity detector (github.com/maxhawkins/go-webrtcvad, cgo).
//
// WebRTC VAD classifies 10 ms chunks. A conditioned frame is split into as
// many whole 10 ms chunks as it holds; the frame counts as voice when any
// chunk does. A trailing partial chunk is zero-padded.
package webrtc

import (
	"fmt"
	"slices"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
	"github.com/MrWong99/voicekey/pkg/types"
)

// DefaultMode is the aggressiveness used when none is configured.
const DefaultMode = 2

var validRates = []int{8000, 16000, 32000, 48000}

var _ vad.Detector = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithMode sets the aggressiveness (0 = least, 3 = most aggressive).
func WithMode(mode int) Option {
	return func(d *Detector) { d.mode = mode }
}

// Detector classifies frames with WebRTC VAD and applies the shared
// hysteresis on top.
type Detector struct {
	vad   *webrtcvad.VAD
	rate  int
	mode  int
	chunk int
	hys   *vad.Hysteresis
	buf   []int16

	mu        sync.Mutex
	stats     vad.Stats
	energySum float64
}

// ValidateConfig checks the sample rate and mode without touching cgo.
func ValidateConfig(cfg vad.Config, mode int) error {
	if !slices.Contains(validRates, cfg.SampleRate) {
		return fmt.Errorf("vad/webrtc: sample rate %d not one of %v: %w", cfg.SampleRate, validRates, types.ErrInvalidArgument)
	}
	if mode < 0 || mode > 3 {
		return fmt.Errorf("vad/webrtc: mode %d out of range [0,3]: %w", mode, types.ErrInvalidArgument)
	}
	return nil
}

// New creates a Detector. cfg.SampleRate must be 8, 16, 32 or 48 kHz.
func New(cfg vad.Config, opts ...Option) (*Detector, error) {
	cfg = cfg.WithDefaults()
	d := &Detector{
		rate: cfg.SampleRate,
		mode: DefaultMode,
		hys:  vad.NewHysteresis(cfg.MinVoiceFrames, cfg.SilenceFrames),
	}
	for _, o := range opts {
		o(d)
	}
	if err := ValidateConfig(cfg, d.mode); err != nil {
		return nil, err
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("vad/webrtc: create: %w", err)
	}
	if err := v.SetMode(d.mode); err != nil {
		return nil, fmt.Errorf("vad/webrtc: set mode %d: %w", d.mode, err)
	}
	d.vad = v
	d.chunk = d.rate / 100
	d.buf = make([]int16, d.chunk)
	return d, nil
}

// Process implements [vad.Detector].
func (d *Detector) Process(frame []int16) (vad.Event, error) {
	if len(frame) == 0 {
		return vad.Event{}, fmt.Errorf("vad/webrtc: empty frame: %w", types.ErrInvalidArgument)
	}

	voice, err := d.classify(frame)
	if err != nil {
		return vad.Event{}, err
	}
	energy := audio.RMS(frame)
	edge := d.hys.Update(voice)

	d.mu.Lock()
	d.stats.TotalFrames++
	if voice {
		d.stats.VoiceFrames++
	} else {
		d.stats.SilenceFrames++
	}
	d.energySum += energy
	d.stats.CurrentEnergy = energy
	d.stats.AverageEnergy = d.energySum / float64(d.stats.TotalFrames)
	d.stats.Calibrated = true
	d.stats.Speaking = d.hys.Speaking()
	d.mu.Unlock()

	return vad.Event{Type: edge, Energy: energy, Voice: voice}, nil
}

func (d *Detector) classify(frame []int16) (bool, error) {
	for off := 0; off < len(frame); off += d.chunk {
		end := min(off+d.chunk, len(frame))
		chunk := frame[off:end]
		if len(chunk) < d.chunk {
			clear(d.buf)
			copy(d.buf, chunk)
			chunk = d.buf
		}
		active, err := d.vad.Process(d.rate, audio.Int16ToBytes(chunk))
		if err != nil {
			return false, fmt.Errorf("vad/webrtc: process: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Reset implements [vad.Detector].
func (d *Detector) Reset() {
	d.hys.Reset()
	d.mu.Lock()
	d.stats.Speaking = false
	d.mu.Unlock()
}

// Stats implements [vad.Detector].
func (d *Detector) Stats() vad.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ResetStats implements [vad.Detector].
func (d *Detector) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = vad.Stats{Calibrated: d.stats.Calibrated, Speaking: d.stats.Speaking}
	d.energySum = 0
}

// Mode returns the configured aggressiveness.
func (d *Detector) Mode() int { return d.mode }
