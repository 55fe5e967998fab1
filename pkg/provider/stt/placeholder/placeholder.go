// Package placeholder provides a stand-in [stt.Decoder] that returns a fixed
// text for every utterance. It keeps the pipeline exercisable end to end on
// machines without a speech engine.
package placeholder

import (
	"context"

	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

const (
	// DefaultText is the transcript produced for every utterance.
	DefaultText = "voice command detected"

	// DefaultConfidence is the confidence reported with DefaultText.
	DefaultConfidence = 0.8
)

var _ stt.Decoder = (*Decoder)(nil)

// Decoder returns Text for any non-empty utterance.
type Decoder struct {
	Text       string
	Confidence float64
	Language   string
}

// New returns a Decoder with the default text and confidence.
func New(language string) *Decoder {
	return &Decoder{Text: DefaultText, Confidence: DefaultConfidence, Language: language}
}

// Decode implements [stt.Decoder].
func (d *Decoder) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	if err := stt.CheckInput(samples, sampleRate); err != nil {
		return types.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}
	return types.Transcript{
		Text:       d.Text,
		Confidence: d.Confidence,
		Language:   d.Language,
		Duration:   stt.Duration(len(samples), sampleRate),
	}, nil
}
