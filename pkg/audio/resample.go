package audio

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono 16-bit PCM between sample rates. It keeps filter
// history between calls, so one Resampler must be used per stream and not
// shared across goroutines.
type Resampler struct {
	srcRate int
	dstRate int
	r       resampling.Resampler
}

// NewResampler returns a [Resampler] from srcRate to dstRate. When the rates
// are equal the returned resampler passes samples through untouched.
func NewResampler(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, errors.New("audio: resampler rates must be positive")
	}
	rs := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler %d→%d: %w", srcRate, dstRate, err)
	}
	rs.r = r
	return rs, nil
}

// Process resamples one chunk. The output length is roughly
// len(samples)·dst/src but may vary between calls while the filter fills.
func (rs *Resampler) Process(samples []int16) ([]int16, error) {
	if rs.r == nil {
		return samples, nil
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s) / 32768.0
	}
	out, err := rs.r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	return Float64ToInt16(out), nil
}

// DstRate returns the output sample rate.
func (rs *Resampler) DstRate() int { return rs.dstRate }
