package capture

import (
	"fmt"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/types"
)

// maxEmptyReads bounds how many source reads a single Read may consume while
// the resampler filter is still filling.
const maxEmptyReads = 16

// Resampled converts a [Source] to a different sample rate.
type Resampled struct {
	src     Source
	rs      *audio.Resampler
	in      []int16
	pending []int16
}

// NewResampled returns src converted to rate Hz. When src already runs at
// rate, src is returned unchanged.
func NewResampled(src Source, rate int) (Source, error) {
	if src == nil {
		return nil, fmt.Errorf("capture: resample: nil source: %w", types.ErrInvalidArgument)
	}
	if src.SampleRate() == rate {
		return src, nil
	}
	rs, err := audio.NewResampler(src.SampleRate(), rate)
	if err != nil {
		return nil, fmt.Errorf("capture: resample: %w", err)
	}
	return &Resampled{src: src, rs: rs}, nil
}

// Start starts the wrapped source.
func (r *Resampled) Start() error { return r.src.Start() }

// Stop stops the wrapped source and drops any buffered output, so audio
// from before the pause never leaks into the next recording.
func (r *Resampled) Stop() error {
	r.pending = r.pending[:0]
	return r.src.Stop()
}

// Read returns resampled audio. Output left over from a previous source read
// is returned first.
func (r *Resampled) Read(buf []int16) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for range maxEmptyReads {
		if len(r.pending) > 0 {
			n := copy(buf, r.pending)
			r.pending = r.pending[n:]
			return n, nil
		}

		want := len(buf) * r.src.SampleRate() / r.rs.DstRate()
		if want < 1 {
			want = 1
		}
		if cap(r.in) < want {
			r.in = make([]int16, want)
		}
		n, err := r.src.Read(r.in[:want])
		if n > 0 {
			out, perr := r.rs.Process(r.in[:n])
			if perr != nil {
				return 0, fmt.Errorf("capture: %w", perr)
			}
			r.pending = append(r.pending[:0], out...)
		}
		if err != nil {
			if len(r.pending) > 0 {
				m := copy(buf, r.pending)
				r.pending = r.pending[m:]
				return m, nil
			}
			return 0, err
		}
	}
	return 0, nil
}

// SampleRate returns the output rate.
func (r *Resampled) SampleRate() int { return r.rs.DstRate() }

// Close closes the wrapped source.
func (r *Resampled) Close() error { return r.src.Close() }

var _ Source = (*Resampled)(nil)
