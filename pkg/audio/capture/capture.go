// Package capture defines the audio input abstraction consumed by the
// pipeline's capture worker.
//
// A [Source] delivers mono 16-bit PCM. Sources are started and stopped as the
// push-to-talk gate opens and closes; only the capture worker calls into a
// Source, so implementations need not be safe for concurrent use unless they
// say otherwise.
//
// Implementations:
//   - capture/portaudio: a microphone through PortAudio
//   - capture/file: a WAV file, optionally paced in real time
//   - capture/mock: a scripted test double
//
// [NewResampled] wraps any Source to convert its rate to the pipeline rate.
package capture

// Source is a stream of mono 16-bit audio.
type Source interface {
	// Start begins delivering audio. Starting a running source is a no-op.
	Start() error

	// Stop pauses delivery. Stopping a stopped source is a no-op.
	Stop() error

	// Read blocks until samples are available and copies up to len(buf) of
	// them into buf. It returns io.EOF when the source is exhausted and
	// types.ErrInvalidState when the source is not started.
	Read(buf []int16) (int, error)

	// SampleRate returns the rate of the samples returned by Read, in Hz.
	SampleRate() int

	// Close releases the underlying device or file. Safe to call once the
	// capture worker has exited.
	Close() error
}
