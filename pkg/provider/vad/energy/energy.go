// Package energy provides the default voice activity detector: frame RMS
// energy compared against an adaptive threshold derived from a running
// noise-floor estimate.
//
// The first CalibrationFrames frames are averaged into the initial noise
// floor; until then the configured fixed threshold applies. Afterwards the
// floor follows quiet frames with exponential smoothing while loud frames
// (≥ 2× floor) leave it alone, so speech never inflates the noise model.
// The floor is not clamped: a very quiet input gives a very low threshold,
// and digital silence gives a floor of zero that only Recalibrate moves.
package energy

import (
	"fmt"
	"sync"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
	"github.com/MrWong99/voicekey/pkg/types"
)

const (
	floorAlpha      = 0.95
	quietFactor     = 2.0
	thresholdFactor = vad.DefaultThresholdFactor
)

var _ vad.Detector = (*Detector)(nil)

// Detector is the energy-based [vad.Detector].
type Detector struct {
	cfg vad.Config
	hys *vad.Hysteresis

	calibSum   float64
	calibCount int
	calibrated bool
	noiseFloor float64
	threshold  float64

	mu        sync.Mutex
	stats     vad.Stats
	energySum float64
}

// New returns a Detector for cfg. Zero fields take the vad package defaults.
func New(cfg vad.Config) (*Detector, error) {
	cfg = cfg.WithDefaults()
	if cfg.Threshold >= 1 {
		return nil, fmt.Errorf("vad/energy: threshold %.3f must be below 1: %w", cfg.Threshold, types.ErrInvalidArgument)
	}
	d := &Detector{
		cfg:       cfg,
		hys:       vad.NewHysteresis(cfg.MinVoiceFrames, cfg.SilenceFrames),
		threshold: cfg.Threshold,
	}
	d.stats.Threshold = d.threshold
	return d, nil
}

// Process implements [vad.Detector].
func (d *Detector) Process(frame []int16) (vad.Event, error) {
	if len(frame) == 0 {
		return vad.Event{}, fmt.Errorf("vad/energy: empty frame: %w", types.ErrInvalidArgument)
	}

	energy := audio.RMS(frame)
	d.updateFloor(energy)

	voice := energy > d.threshold
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
	d.stats.NoiseFloor = d.noiseFloor
	d.stats.Threshold = d.threshold
	d.stats.Calibrated = d.calibrated
	d.stats.Speaking = d.hys.Speaking()
	d.mu.Unlock()

	return vad.Event{Type: edge, Energy: energy, Voice: voice}, nil
}

// updateFloor runs calibration or the adaptive floor update for one frame.
func (d *Detector) updateFloor(energy float64) {
	if !d.calibrated {
		d.calibSum += energy
		d.calibCount++
		if d.calibCount >= d.cfg.CalibrationFrames {
			d.noiseFloor = d.calibSum / float64(d.calibCount)
			d.threshold = d.noiseFloor * thresholdFactor
			d.calibrated = true
		}
		return
	}
	if energy < d.noiseFloor*quietFactor {
		d.noiseFloor = floorAlpha*d.noiseFloor + (1-floorAlpha)*energy
		d.threshold = d.noiseFloor * thresholdFactor
	}
}

// Reset implements [vad.Detector]. The calibrated noise floor is kept.
func (d *Detector) Reset() {
	d.hys.Reset()
	d.mu.Lock()
	d.stats.Speaking = false
	d.mu.Unlock()
}

// Recalibrate discards the noise floor and starts a new calibration run.
func (d *Detector) Recalibrate() {
	d.calibSum = 0
	d.calibCount = 0
	d.calibrated = false
	d.noiseFloor = 0
	d.threshold = d.cfg.Threshold
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
	d.stats = vad.Stats{
		NoiseFloor: d.stats.NoiseFloor,
		Threshold:  d.stats.Threshold,
		Calibrated: d.stats.Calibrated,
		Speaking:   d.stats.Speaking,
	}
	d.energySum = 0
}
