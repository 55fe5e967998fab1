// Package file implements capture.Source over a WAV file.
//
// The file is read through an afero filesystem so tests can feed generated
// audio from memory. With Realtime set, Read paces delivery to the file's
// sample rate, which makes a recording behave like a live microphone for
// the recognizer's timing logic.
package file

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Option is a functional option for [Open].
type Option func(*Source)

// WithFs reads the file from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Source) { s.fs = fs }
}

// WithRealtime paces Read to the file's sample rate.
func WithRealtime(on bool) Option {
	return func(s *Source) { s.realtime = on }
}

// Source streams a WAV file. The read position survives Stop/Start, so a
// push-to-talk session over a file continues where the previous one ended.
type Source struct {
	fs       afero.Fs
	path     string
	realtime bool

	mu      sync.Mutex
	r       *audio.WAVReader
	running bool

	// pacing state, reset on every Start
	started time.Time
	emitted int64
}

// Open opens path and validates that it is a 16-bit PCM WAV file.
func Open(path string, opts ...Option) (*Source, error) {
	s := &Source{fs: afero.NewOsFs(), path: path}
	for _, opt := range opts {
		opt(s)
	}
	r, err := audio.OpenWAV(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	s.r = r
	return s, nil
}

// Start begins delivery.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil {
		return fmt.Errorf("file: start %q: source closed: %w", s.path, types.ErrInvalidState)
	}
	if !s.running {
		s.running = true
		s.started = time.Now()
		s.emitted = 0
	}
	return nil
}

// Stop pauses delivery.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Read returns the next samples from the file, or io.EOF at its end.
func (s *Source) Read(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.r == nil {
		return 0, fmt.Errorf("file: read %q: %w", s.path, types.ErrInvalidState)
	}
	n, err := s.r.Read(buf)
	if err != nil {
		return n, err
	}
	if s.realtime {
		s.emitted += int64(n)
		due := s.started.Add(time.Duration(s.emitted) * time.Second / time.Duration(s.r.SampleRate()))
		if d := time.Until(due); d > 0 {
			time.Sleep(d)
		}
	}
	return n, nil
}

// SampleRate returns the file's sample rate.
func (s *Source) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil {
		return 0
	}
	return s.r.SampleRate()
}

// Close closes the file.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.r == nil {
		return nil
	}
	err := s.r.Close()
	s.r = nil
	return err
}

var _ capture.Source = (*Source)(nil)
