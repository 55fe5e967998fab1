// Package mock provides a scripted capture.Source for tests.
//
// Each Read returns the next chunk of Chunks while the source is started.
// When the script is exhausted Read returns io.EOF, or, with Repeat set,
// keeps returning the last chunk.
//
// Example:
//
//	src := mock.NewSource(16000, loud, quiet)
//	src.Start()
//	n, err := src.Read(buf)
package mock

import (
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Source is a mock implementation of capture.Source. It is safe for
// concurrent use so tests can inspect it while a capture worker runs.
type Source struct {
	mu sync.Mutex

	// Rate is returned by SampleRate.
	Rate int

	// Chunks are returned by successive Read calls.
	Chunks [][]int16

	// Repeat makes Read return the last chunk forever instead of io.EOF.
	Repeat bool

	// ReadErr, if non-nil, is returned by the next Read and then cleared.
	ReadErr error

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error

	running bool
	next    int

	// --- Call records ---

	// StartCallCount is the number of times Start was called.
	StartCallCount int

	// StopCallCount is the number of times Stop was called.
	StopCallCount int

	// ReadCallCount is the number of times Read was called.
	ReadCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSource returns a Source at rate that plays chunks once.
func NewSource(rate int, chunks ...[]int16) *Source {
	return &Source{Rate: rate, Chunks: chunks}
}

// Start records the call and marks the source running.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount++
	if s.StartErr != nil {
		return s.StartErr
	}
	s.running = true
	return nil
}

// Stop records the call and marks the source stopped.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCallCount++
	s.running = false
	return nil
}

// Read copies the next scripted chunk into buf.
func (s *Source) Read(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCallCount++
	if s.ReadErr != nil {
		err := s.ReadErr
		s.ReadErr = nil
		return 0, err
	}
	if !s.running {
		return 0, fmt.Errorf("mock: read: %w", types.ErrInvalidState)
	}
	if s.next >= len(s.Chunks) {
		if s.Repeat && len(s.Chunks) > 0 {
			return copy(buf, s.Chunks[len(s.Chunks)-1]), nil
		}
		return 0, io.EOF
	}
	chunk := s.Chunks[s.next]
	s.next++
	return copy(buf, chunk), nil
}

// SampleRate returns Rate.
func (s *Source) SampleRate() int { return s.Rate }

// Close records the call.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.running = false
	return nil
}

// Running reports whether the source is started.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Calls returns the start, stop and read call counts.
func (s *Source) Calls() (start, stop, read int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StartCallCount, s.StopCallCount, s.ReadCallCount
}

var _ capture.Source = (*Source)(nil)
