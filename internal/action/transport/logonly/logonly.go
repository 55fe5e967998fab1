// Package logonly provides a dry-run action.Transport that logs every HID
// report instead of sending it. It is always connected.
package logonly

import (
	"context"
	"log/slog"

	"github.com/MrWong99/voicekey/internal/action"
)

// Transport logs reports at the configured level.
type Transport struct {
	log   *slog.Logger
	level slog.Level
}

// Option is a functional option for [New].
type Option func(*Transport)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithLevel sets the level reports are logged at. Defaults to Info.
func WithLevel(level slog.Level) Option {
	return func(t *Transport) { t.level = level }
}

// New returns a log-only transport.
func New(opts ...Option) *Transport {
	t := &Transport{log: slog.Default(), level: slog.LevelInfo}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Connected() bool { return true }

func (t *Transport) PressKey(ctx context.Context, mods action.Modifier, key action.Key) error {
	t.log.Log(ctx, t.level, "hid key", "chord", action.Chord{Mods: mods, Key: key}.String(), "mods", uint8(mods), "key", uint8(key))
	return nil
}

func (t *Transport) ReleaseAll(ctx context.Context) error {
	t.log.Log(ctx, t.level, "hid release")
	return nil
}

func (t *Transport) PressButtons(ctx context.Context, b action.Button) error {
	t.log.Log(ctx, t.level, "hid buttons", "buttons", uint8(b))
	return nil
}

func (t *Transport) ReleaseButtons(ctx context.Context) error {
	t.log.Log(ctx, t.level, "hid buttons", "buttons", 0)
	return nil
}

func (t *Transport) Move(ctx context.Context, dx, dy int8) error {
	t.log.Log(ctx, t.level, "hid move", "dx", dx, "dy", dy)
	return nil
}

func (t *Transport) PressConsumer(ctx context.Context, u action.Usage) error {
	t.log.Log(ctx, t.level, "hid consumer", "usage", uint16(u))
	return nil
}

func (t *Transport) Close() error { return nil }

var _ action.Transport = (*Transport)(nil)
