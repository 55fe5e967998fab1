package webrtc

import (
	"errors"
	"testing"

	"github.com/MrWong99/voicekey/pkg/provider/vad"
	"github.com/MrWong99/voicekey/pkg/types"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		rate    int
		mode    int
		wantErr bool
	}{
		{"16k mode 2", 16000, 2, false},
		{"48k mode 0", 48000, 0, false},
		{"44.1k", 44100, 2, true},
		{"negative mode", 16000, -1, true},
		{"mode 4", 8000, 4, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateConfig(vad.Config{SampleRate: tc.rate}, tc.mode)
			if tc.wantErr && !errors.Is(err, types.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNew_RejectsBadRate(t *testing.T) {
	t.Parallel()
	if _, err := New(vad.Config{SampleRate: 22050}); err == nil {
		t.Fatal("expected error for 22.05 kHz")
	}
}
