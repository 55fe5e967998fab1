// Package whisper provides whisper.cpp-backed STT decoders.
//
// [Server] talks to a running whisper-server binary, which exposes a REST API
// at POST /inference: each utterance is encoded as a WAV file and uploaded as
// multipart/form-data. [Native] links whisper.cpp directly through its Go
// bindings (CGO) and loads the model once at startup.
//
// whisper.cpp does not report a sentence-level confidence over HTTP; Server
// reports its configured confidence (default 1.0) for every non-empty result.
// Native derives confidence from the mean token probability.
//
// Usage:
//
//	d, err := whisper.NewServer("http://localhost:8080",
//	    whisper.WithLanguage("ru"),
//	    whisper.WithPrompt("привет, пробел, громче"),
//	)
//	tr, err := d.Decode(ctx, samples, 16000)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

const (
	defaultLanguage   = "ru"
	defaultConfidence = 1.0
	defaultTimeout    = 30 * time.Second
)

// Compile-time assertion that Server implements stt.Decoder.
var _ stt.Decoder = (*Server)(nil)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithLanguage sets the language code sent to the server (e.g., "ru", "en").
// Defaults to "ru".
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// WithPrompt sets an initial prompt that biases recognition towards the
// command vocabulary.
func WithPrompt(prompt string) Option {
	return func(s *Server) { s.prompt = prompt }
}

// WithConfidence sets the confidence reported for non-empty results.
func WithConfidence(c float64) Option {
	return func(s *Server) { s.confidence = c }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// Server implements stt.Decoder backed by a whisper.cpp HTTP server.
type Server struct {
	serverURL  string
	model      string
	language   string
	prompt     string
	confidence float64
	httpClient *http.Client
}

// NewServer creates a Server that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func NewServer(serverURL string, opts ...Option) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  serverURL,
		language:   defaultLanguage,
		confidence: defaultConfidence,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Decode implements [stt.Decoder]. The samples are uploaded as a 16-bit mono
// WAV file.
func (s *Server) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	if err := stt.CheckInput(samples, sampleRate); err != nil {
		return types.Transcript{}, err
	}
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: encode wav: %w", err)
	}
	text, err := s.infer(ctx, wav)
	if err != nil {
		return types.Transcript{}, err
	}

	tr := types.Transcript{
		Text:     cleanText(text),
		Language: s.language,
		Duration: stt.Duration(len(samples), sampleRate),
	}
	if tr.Text != "" {
		tr.Confidence = s.confidence
	}
	return tr, nil
}

// infer POSTs wav to the /inference endpoint as multipart/form-data and
// returns the raw transcribed text.
func (s *Server) infer(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"language":        s.language,
		"model":           s.model,
		"prompt":          s.prompt,
		"response_format": "json",
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
