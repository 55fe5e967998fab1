// Package portaudio implements capture.Source for a microphone through the
// PortAudio library.
//
// The stream uses PortAudio's blocking read API with an int16 buffer, so
// Read blocks for exactly one device buffer. The stream is opened on Start
// and closed on Stop; while the push-to-talk gate is closed the device is
// released.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Defaults for [Config].
const (
	DefaultSampleRate   = 16000
	DefaultFrameSamples = 1024
)

// Config configures a microphone source.
type Config struct {
	// Device selects the input device by case-insensitive name substring.
	// Empty or "default" uses the system default input.
	Device string

	// SampleRate is the requested capture rate in Hz.
	SampleRate int

	// FrameSamples is the PortAudio buffer size in samples.
	FrameSamples int
}

// Device describes an input device.
type Device struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// Source captures mono audio from a PortAudio input device.
type Source struct {
	cfg    Config
	device *portaudio.DeviceInfo

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	closed  bool
}

// New initialises PortAudio and resolves the configured device. The caller
// must Close the source to terminate PortAudio.
func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = DefaultFrameSamples
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	dev, err := resolveDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	slog.Info("microphone selected", "device", dev.Name, "sample_rate", cfg.SampleRate, "frame_samples", cfg.FrameSamples)
	return &Source{cfg: cfg, device: dev, buf: make([]int16, cfg.FrameSamples)}, nil
}

func resolveDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || strings.EqualFold(name, "default") {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("portaudio: default input device: %w", err)
		}
		return dev, nil
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	dev := matchDevice(devs, name)
	if dev == nil {
		return nil, fmt.Errorf("portaudio: no input device matching %q: %w", name, types.ErrInvalidArgument)
	}
	return dev, nil
}

// matchDevice returns the first input-capable device whose name contains
// name, ignoring case. An exact match wins over a substring match.
func matchDevice(devs []*portaudio.DeviceInfo, name string) *portaudio.DeviceInfo {
	needle := strings.ToLower(name)
	var partial *portaudio.DeviceInfo
	for _, d := range devs {
		if d == nil || d.MaxInputChannels < 1 {
			continue
		}
		hay := strings.ToLower(d.Name)
		if hay == needle {
			return d
		}
		if partial == nil && strings.Contains(hay, needle) {
			partial = d
		}
	}
	return partial
}

// Start opens and starts the input stream.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("portaudio: start: source closed: %w", types.ErrInvalidState)
	}
	if s.stream != nil {
		return nil
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   s.device,
			Channels: 1,
			Latency:  s.device.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return fmt.Errorf("portaudio: open stream on %q: %w", s.device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.stream = stream
	s.pending = s.pending[:0]
	return nil
}

// Stop stops and closes the input stream.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Source) stopLocked() error {
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	s.pending = s.pending[:0]
	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	return nil
}

// Read blocks for one device buffer and copies it into buf. When buf is
// shorter than the device buffer the remainder is returned by the next Read.
// An input overflow is logged and the captured buffer is still returned.
func (s *Source) Read(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0, fmt.Errorf("portaudio: read: stream not started: %w", types.ErrInvalidState)
	}
	if len(s.pending) > 0 {
		n := copy(buf, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return 0, fmt.Errorf("portaudio: read: %w", err)
		}
		slog.Debug("microphone input overflowed")
	}
	n := copy(buf, s.buf)
	s.pending = append(s.pending[:0], s.buf[n:]...)
	return n, nil
}

// SampleRate returns the configured capture rate.
func (s *Source) SampleRate() int { return s.cfg.SampleRate }

// Close stops the stream and terminates PortAudio.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stopLocked()
	if terr := portaudio.Terminate(); err == nil && terr != nil {
		err = fmt.Errorf("portaudio: terminate: %w", terr)
	}
	return err
}

// Devices lists the input-capable devices.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	var def string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		def = d.Name
	}
	return inputDevices(devs, def), nil
}

func inputDevices(devs []*portaudio.DeviceInfo, defaultName string) []Device {
	var out []Device
	for i, d := range devs {
		if d == nil || d.MaxInputChannels < 1 {
			continue
		}
		dev := Device{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		out = append(out, dev)
	}
	return out
}

var _ capture.Source = (*Source)(nil)
