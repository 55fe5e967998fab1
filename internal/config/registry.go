package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures per provider kind.
type (
	DecoderFactory   func(DecoderConfig) (stt.Decoder, error)
	DetectorFactory  func(*Config) (vad.Detector, error)
	SourceFactory    func(AudioConfig) (capture.Source, error)
	TriggerFactory   func(ControlConfig) (control.Trigger, error)
	TransportFactory func(context.Context, ActionsConfig) (action.Transport, error)
)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	decoders   map[string]DecoderFactory
	detectors  map[string]DetectorFactory
	sources    map[string]SourceFactory
	triggers   map[string]TriggerFactory
	transports map[string]TransportFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		decoders:   make(map[string]DecoderFactory),
		detectors:  make(map[string]DetectorFactory),
		sources:    make(map[string]SourceFactory),
		triggers:   make(map[string]TriggerFactory),
		transports: make(map[string]TransportFactory),
	}
}

// RegisterDecoder registers a speech decoder factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDecoder(name string, f DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[name] = f
}

// RegisterDetector registers a voice activity detector factory under name.
func (r *Registry) RegisterDetector(name string, f DetectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[name] = f
}

// RegisterSource registers a capture source factory under name.
func (r *Registry) RegisterSource(name string, f SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = f
}

// RegisterTrigger registers a push-to-talk trigger factory under name.
func (r *Registry) RegisterTrigger(name string, f TriggerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers[name] = f
}

// RegisterTransport registers an action transport factory under name.
func (r *Registry) RegisterTransport(name string, f TransportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[name] = f
}

// lookup returns the factory registered under name in m.
func lookup[F any](r *Registry, m map[string]F, kind, name string) (F, error) {
	r.mu.RLock()
	f, ok := m[name]
	r.mu.RUnlock()
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, name)
	}
	return f, nil
}

// CreateDecoder instantiates the decoder registered under dc.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name. The fallback chain is not followed; see the app package.
func (r *Registry) CreateDecoder(dc DecoderConfig) (stt.Decoder, error) {
	f, err := lookup(r, r.decoders, "decoder", dc.Name)
	if err != nil {
		return nil, err
	}
	return f(dc)
}

// CreateDetector instantiates the detector registered under cfg.VAD.Engine.
func (r *Registry) CreateDetector(cfg *Config) (vad.Detector, error) {
	f, err := lookup(r, r.detectors, "vad", cfg.VAD.Engine)
	if err != nil {
		return nil, err
	}
	return f(cfg)
}

// CreateSource instantiates the capture source registered under ac.Source.
func (r *Registry) CreateSource(ac AudioConfig) (capture.Source, error) {
	f, err := lookup(r, r.sources, "audio", ac.Source)
	if err != nil {
		return nil, err
	}
	return f(ac)
}

// CreateTrigger instantiates the trigger registered under cc.Trigger.
func (r *Registry) CreateTrigger(cc ControlConfig) (control.Trigger, error) {
	f, err := lookup(r, r.triggers, "trigger", cc.Trigger)
	if err != nil {
		return nil, err
	}
	return f(cc)
}

// CreateTransport instantiates the transport registered under ac.Transport.
func (r *Registry) CreateTransport(ctx context.Context, ac ActionsConfig) (action.Transport, error) {
	f, err := lookup(r, r.transports, "transport", ac.Transport)
	if err != nil {
		return nil, err
	}
	return f(ctx, ac)
}

// Names returns the sorted names registered for kind ("decoder", "vad",
// "audio", "trigger" or "transport").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "decoder":
		return slices.Sorted(maps.Keys(r.decoders))
	case "vad":
		return slices.Sorted(maps.Keys(r.detectors))
	case "audio":
		return slices.Sorted(maps.Keys(r.sources))
	case "trigger":
		return slices.Sorted(maps.Keys(r.triggers))
	case "transport":
		return slices.Sorted(maps.Keys(r.transports))
	}
	return nil
}
