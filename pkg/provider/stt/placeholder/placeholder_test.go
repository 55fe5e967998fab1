package placeholder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voicekey/pkg/types"
)

func TestDecode(t *testing.T) {
	t.Parallel()
	d := New("ru")
	tr, err := d.Decode(context.Background(), make([]int16, 8000), 16000)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tr.Text != DefaultText {
		t.Errorf("Text = %q, want %q", tr.Text, DefaultText)
	}
	if tr.Confidence != DefaultConfidence {
		t.Errorf("Confidence = %v, want %v", tr.Confidence, DefaultConfidence)
	}
	if tr.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", tr.Duration)
	}
	if tr.Language != "ru" {
		t.Errorf("Language = %q, want ru", tr.Language)
	}
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()
	_, err := New("").Decode(context.Background(), nil, 16000)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestDecode_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("").Decode(ctx, make([]int16, 10), 16000); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
