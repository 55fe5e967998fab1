// This file contains the Native decoder backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

// whisperRate is the only sample rate whisper.cpp accepts.
const whisperRate = 16000

// Compile-time assertion that Native satisfies stt.Decoder.
var _ stt.Decoder = (*Native)(nil)

// Native implements stt.Decoder using whisper.cpp Go bindings. The model is
// loaded once and shared; every Decode call creates its own context, so
// concurrent decodes do not interfere.
type Native struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a Native decoder.
type NativeOption func(*Native)

// WithNativeLanguage sets the language code for transcription. Defaults to
// "ru".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative loads the whisper.cpp model from modelPath. The caller must call
// Close when the decoder is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	n := &Native{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Decode implements [stt.Decoder]. Audio at other rates is resampled to
// 16 kHz first.
func (n *Native) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	if err := stt.CheckInput(samples, sampleRate); err != nil {
		return types.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}

	pcm := samples
	if sampleRate != whisperRate {
		r, err := audio.NewResampler(sampleRate, whisperRate)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: %w", err)
		}
		if pcm, err = r.Process(samples); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: resample: %w", err)
		}
	}

	text, conf, err := n.infer(audio.Int16ToFloat32(pcm))
	if err != nil {
		return types.Transcript{}, err
	}
	return types.Transcript{
		Text:       cleanText(text),
		Confidence: conf,
		Language:   n.language,
		Duration:   stt.Duration(len(samples), sampleRate),
	}, nil
}

// infer runs whisper.cpp inference using a fresh context and returns the
// concatenated text and the mean probability of its text tokens.
func (n *Native) infer(samples []float32) (string, float64, error) {
	wctx, err := n.model.NewContext()
	if err != nil {
		return "", 0, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", 0, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts   []string
		probSum float64
		tokens  int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			probSum += float64(tok.P)
			tokens++
		}
	}

	conf := 0.0
	if tokens > 0 {
		conf = probSum / float64(tokens)
	}
	return strings.Join(parts, " "), conf, nil
}
