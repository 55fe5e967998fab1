// Package dsp implements the signal conditioner that runs on every captured
// frame before voice activity detection: a high-pass stage that removes DC
// and low-frequency rumble, followed by an automatic gain control stage that
// pulls the signal envelope toward a target RMS.
//
// A [Conditioner] carries filter and AGC state across frames and is owned by
// exactly one goroutine. [Conditioner.Stats] may be called from any goroutine.
package dsp

import (
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/types"
)

const (
	// DefaultFilterOrder is the high-pass filter order.
	DefaultFilterOrder = 4

	// DefaultCutoffHz is the high-pass cutoff frequency.
	DefaultCutoffHz = 80.0

	// DefaultTargetRMS is the AGC target level on the normalised scale.
	DefaultTargetRMS = 0.1

	// DefaultAttackSeconds is the envelope time constant while the signal rises.
	DefaultAttackSeconds = 0.001

	// DefaultReleaseSeconds is the envelope time constant while the signal falls.
	DefaultReleaseSeconds = 0.1

	// DefaultMaxFrameSamples bounds the scratch buffer.
	DefaultMaxFrameSamples = 1 << 20

	minGain         = 0.1
	maxGain         = 10.0
	envelopeFloor   = 1e-3
	gainSmoothing   = 0.001
	initialScratch  = 1024
	fullScale       = 32768.0
	minFilterOrder  = 2
	butterworthOrd4 = 4
)

// Config configures a [Conditioner]. Zero numeric fields take the package
// defaults; the boolean stage switches are taken as given.
type Config struct {
	// SampleRate in Hz. Required.
	SampleRate int

	// HighPass enables the high-pass stage.
	HighPass bool

	// FilterOrder is the length of the filter delay line. Must be ≥ 2.
	FilterOrder int

	// CutoffHz is the high-pass cutoff frequency.
	CutoffHz float64

	// AGC enables the automatic gain control stage.
	AGC bool

	// TargetRMS is the envelope level the AGC steers toward.
	TargetRMS float64

	// AttackSeconds and ReleaseSeconds are the envelope follower time
	// constants.
	AttackSeconds  float64
	ReleaseSeconds float64

	// MaxFrameSamples bounds the scratch buffer. Larger frames fail with
	// [types.ErrResourceExhausted].
	MaxFrameSamples int
}

// Stats is a snapshot of the conditioner's running statistics. All values
// describe the most recent frame except the cumulative counters.
type Stats struct {
	PeakLevel        float64
	RMS              float64
	DCOffset         float64
	CurrentGain      float64
	ClippedSamples   uint64
	FramesProcessed  uint64
	SamplesProcessed uint64
}

// Conditioner applies the high-pass and AGC stages to 16-bit frames.
type Conditioner struct {
	sampleRate int
	highPass   bool
	agc        bool
	maxFrame   int

	// Filter state: coeffs has order+1 entries, delay has order entries with
	// delay[order-1] holding the most recent input.
	coeffs []float64
	delay  []float64

	// AGC state.
	targetRMS    float64
	attackAlpha  float64
	releaseAlpha float64
	envelope     float64
	gain         float64

	scratch []int16

	mu    sync.Mutex
	stats Stats
}

// New returns a [Conditioner] for cfg. It fails with
// [types.ErrInvalidArgument] when the sample rate is missing, the filter
// order is below 2, or the cutoff is outside (0, sampleRate/2).
func New(cfg Config) (*Conditioner, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("dsp: sample rate %d: %w", cfg.SampleRate, types.ErrInvalidArgument)
	}
	if cfg.FilterOrder == 0 {
		cfg.FilterOrder = DefaultFilterOrder
	}
	if cfg.FilterOrder < minFilterOrder {
		return nil, fmt.Errorf("dsp: filter order %d is below %d: %w", cfg.FilterOrder, minFilterOrder, types.ErrInvalidArgument)
	}
	if cfg.CutoffHz == 0 {
		cfg.CutoffHz = DefaultCutoffHz
	}
	if cfg.CutoffHz < 0 || cfg.CutoffHz >= float64(cfg.SampleRate)/2 {
		return nil, fmt.Errorf("dsp: cutoff %.1f Hz outside (0, %d): %w", cfg.CutoffHz, cfg.SampleRate/2, types.ErrInvalidArgument)
	}
	if cfg.TargetRMS <= 0 {
		cfg.TargetRMS = DefaultTargetRMS
	}
	if cfg.AttackSeconds <= 0 {
		cfg.AttackSeconds = DefaultAttackSeconds
	}
	if cfg.ReleaseSeconds <= 0 {
		cfg.ReleaseSeconds = DefaultReleaseSeconds
	}
	if cfg.MaxFrameSamples <= 0 {
		cfg.MaxFrameSamples = DefaultMaxFrameSamples
	}

	rate := float64(cfg.SampleRate)
	c := &Conditioner{
		sampleRate:   cfg.SampleRate,
		highPass:     cfg.HighPass,
		agc:          cfg.AGC,
		maxFrame:     cfg.MaxFrameSamples,
		coeffs:       highPassCoefficients(cfg.FilterOrder, cfg.CutoffHz, rate),
		delay:        make([]float64, cfg.FilterOrder),
		targetRMS:    cfg.TargetRMS,
		attackAlpha:  math.Exp(-1 / (cfg.AttackSeconds * rate)),
		releaseAlpha: math.Exp(-1 / (cfg.ReleaseSeconds * rate)),
		gain:         1.0,
		scratch:      make([]int16, initialScratch),
	}
	c.stats.CurrentGain = c.gain
	return c, nil
}

// highPassCoefficients derives the order+1 filter taps and L1-normalises them.
// Order 4 uses the simplified Butterworth-style formula on w = 2π·fc/fs;
// other orders use alternating binomial taps.
func highPassCoefficients(order int, cutoff, rate float64) []float64 {
	c := make([]float64, order+1)
	if order == butterworthOrd4 {
		w := 2 * math.Pi * cutoff / rate
		w2 := w * w
		c[0] = 1
		c[1] = -4
		c[2] = 6 - 2*w2
		c[3] = -4 + 2*w2
		c[4] = 1 - math.Sqrt2*w + w2
	} else {
		binom := 1.0
		for k := 0; k <= order; k++ {
			if k > 0 {
				binom = binom * float64(order-k+1) / float64(k)
			}
			if k%2 == 0 {
				c[k] = binom
			} else {
				c[k] = -binom
			}
		}
	}

	var sum float64
	for _, v := range c {
		sum += math.Abs(v)
	}
	if sum > 0 {
		for i := range c {
			c[i] /= sum
		}
	}
	return c
}

// Process conditions frame and returns the output, which has the same
// length as frame. The returned slice aliases the conditioner's scratch
// buffer and is only valid until the next call.
//
// An empty frame fails with [types.ErrInvalidArgument]; a frame larger than
// the configured maximum fails with [types.ErrResourceExhausted]. Neither
// failure touches filter or AGC state.
func (c *Conditioner) Process(frame []int16) ([]int16, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("dsp: empty frame: %w", types.ErrInvalidArgument)
	}
	if err := c.grow(len(frame)); err != nil {
		return nil, err
	}
	out := c.scratch[:len(frame)]

	var (
		clipped uint64
		peak    float64
		sum     float64
		sumSq   float64
	)
	for i, s := range frame {
		if s == math.MaxInt16 || s == math.MinInt16 {
			clipped++
		}
		x := float64(s) / fullScale
		if c.highPass {
			x = c.filter(x)
		}
		if c.agc {
			x = c.applyGain(x)
		}
		y := audio.ClampInt16(x * fullScale)
		out[i] = y

		n := float64(y) / fullScale
		if a := math.Abs(n); a > peak {
			peak = a
		}
		sum += n
		sumSq += n * n
	}

	count := float64(len(frame))
	c.mu.Lock()
	c.stats.PeakLevel = peak
	c.stats.RMS = math.Sqrt(sumSq / count)
	c.stats.DCOffset = sum / count
	c.stats.CurrentGain = c.gain
	c.stats.ClippedSamples += clipped
	c.stats.FramesProcessed++
	c.stats.SamplesProcessed += uint64(len(frame))
	c.mu.Unlock()

	return out, nil
}

// grow makes the scratch buffer hold at least n samples. It never shrinks.
func (c *Conditioner) grow(n int) error {
	if n > c.maxFrame {
		return fmt.Errorf("dsp: frame of %d samples exceeds limit %d: %w", n, c.maxFrame, types.ErrResourceExhausted)
	}
	if n <= len(c.scratch) {
		return nil
	}
	size := len(c.scratch)
	for size < n {
		size *= 2
	}
	if size > c.maxFrame {
		size = c.maxFrame
	}
	c.scratch = make([]int16, size)
	return nil
}

// filter pushes x through the delay line.
func (c *Conditioner) filter(x float64) float64 {
	order := len(c.delay)
	y := c.coeffs[0] * x
	for j := 1; j <= order; j++ {
		y += c.coeffs[j] * c.delay[j-1]
		if j < order {
			c.delay[j-1] = c.delay[j]
		}
	}
	c.delay[order-1] = x
	return y
}

// applyGain updates the envelope follower and the smoothed gain, then
// scales x.
func (c *Conditioner) applyGain(x float64) float64 {
	abs := math.Abs(x)
	alpha := c.releaseAlpha
	if abs > c.envelope {
		alpha = c.attackAlpha
	}
	c.envelope = alpha*c.envelope + (1-alpha)*abs

	if c.envelope > envelopeFloor {
		target := c.targetRMS / c.envelope
		c.gain = gainSmoothing*target + (1-gainSmoothing)*c.gain
		c.gain = min(max(c.gain, minGain), maxGain)
	}
	return x * c.gain
}

// Stats returns a snapshot of the running statistics.
func (c *Conditioner) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the statistics. Filter and AGC state are kept.
func (c *Conditioner) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{CurrentGain: c.stats.CurrentGain}
}

// Reset clears the delay line and returns the AGC to unity gain. Must be
// called from the goroutine that owns the conditioner.
func (c *Conditioner) Reset() {
	clear(c.delay)
	c.envelope = 0
	c.gain = 1.0
	c.mu.Lock()
	c.stats.CurrentGain = c.gain
	c.mu.Unlock()
}

// Coefficients returns a copy of the normalised filter taps.
func (c *Conditioner) Coefficients() []float64 {
	out := make([]float64, len(c.coeffs))
	copy(out, c.coeffs)
	return out
}
