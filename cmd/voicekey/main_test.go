package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicekey/internal/config"
	"github.com/MrWong99/voicekey/pkg/audio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "voicekey "+Version) {
		t.Errorf("output = %q, want version line", out)
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"exact", []string{"match", "сделай", "громче"}, []string{"type:       volume", "token:      up"}},
		{"unknown", []string{"match", "xyzzy"}, []string{"no command matched"}},
		{"fuzzy", []string{"match", "--fuzzy", "громчи"}, []string{"token:      up", "fuzzy:      yes"}},
		{"dispatch", []string{"match", "--dispatch", "пауза"}, []string{"action:     play_pause", "hid consumer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output = %q, want %q", out, w)
				}
			}
		})
	}
}

func TestMatch_RequiresText(t *testing.T) {
	t.Parallel()
	if _, err := execute(t, "match"); err == nil {
		t.Fatal("expected error without text, got nil")
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := execute(t, "match", "--config", missing, "пауза")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	if _, err := execute(t, "match", "--log-level", "loud", "пауза"); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestAnalyze_Silence(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	if err := audio.WriteWAV(fs, "/in.wav", make([]int16, 8000), 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	var out bytes.Buffer
	if err := analyze(context.Background(), &out, fs, cfg, "/in.wav"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"at 16000 Hz", "utterances: 0", "dsp:", "vad:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output = %q, want %q", out.String(), want)
		}
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	var out bytes.Buffer
	if err := analyze(context.Background(), &out, afero.NewMemMapFs(), cfg, "/missing.wav"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
