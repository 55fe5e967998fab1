// Package openai provides an STT decoder backed by the OpenAI audio
// transcription API. Any server speaking the same API (e.g. a local
// faster-whisper gateway) can be used through WithBaseURL.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = string(oai.AudioModelWhisper1)

var _ stt.Decoder = (*Decoder)(nil)

// Decoder implements stt.Decoder using the OpenAI API.
type Decoder struct {
	client     oai.Client
	model      string
	language   string
	prompt     string
	confidence float64
}

// config holds optional configuration for the decoder.
type config struct {
	baseURL    string
	model      string
	language   string
	prompt     string
	confidence float64
	timeout    time.Duration
}

// Option is a functional option for Decoder.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithPrompt sets a vocabulary prompt that biases recognition.
func WithPrompt(prompt string) Option {
	return func(c *config) { c.prompt = prompt }
}

// WithConfidence sets the confidence reported for non-empty results. The API
// does not return one for whisper-1.
func WithConfidence(conf float64) Option {
	return func(c *config) { c.confidence = conf }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Decoder.
func New(apiKey string, opts ...Option) (*Decoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel, confidence: 1.0}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Decoder{
		client:     oai.NewClient(reqOpts...),
		model:      cfg.model,
		language:   cfg.language,
		prompt:     cfg.prompt,
		confidence: cfg.confidence,
	}, nil
}

// Decode implements [stt.Decoder].
func (d *Decoder) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	if err := stt.CheckInput(samples, sampleRate); err != nil {
		return types.Transcript{}, err
	}
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai: encode wav: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(d.model),
	}
	if d.language != "" {
		params.Language = oai.String(d.language)
	}
	if d.prompt != "" {
		params.Prompt = oai.String(d.prompt)
	}

	res, err := d.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai: transcribe: %w", err)
	}

	tr := types.Transcript{
		Text:     res.Text,
		Language: d.language,
		Duration: stt.Duration(len(samples), sampleRate),
	}
	if tr.Text != "" {
		tr.Confidence = d.confidence
	}
	return tr, nil
}
