// Package hotkey implements a push-to-talk control.Trigger on a global
// keyboard shortcut.
//
// Holding the shortcut records; releasing it ends the utterance. On macOS
// the hotkey library requires the event loop on the main thread (see
// golang.design/x/hotkey/mainthread); on Linux it needs an X11 display.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.design/x/hotkey"

	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/pkg/types"
)

// DefaultShortcut is used when no shortcut is configured.
const DefaultShortcut = "ctrl+shift+space"

var modifiers = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
}

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"a":     hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// Parse parses a shortcut such as "ctrl+shift+space" into modifiers and a
// key. Only modifiers available on every platform are accepted.
func Parse(shortcut string) ([]hotkey.Modifier, hotkey.Key, error) {
	var (
		mods []hotkey.Modifier
		key  hotkey.Key
		seen bool
	)
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(shortcut)), "+") {
		part = strings.TrimSpace(part)
		if m, ok := modifiers[part]; ok {
			mods = append(mods, m)
			continue
		}
		k, ok := keys[part]
		if !ok {
			return nil, 0, fmt.Errorf("hotkey: unknown key %q in %q: %w", part, shortcut, types.ErrInvalidArgument)
		}
		if seen {
			return nil, 0, fmt.Errorf("hotkey: more than one key in %q: %w", shortcut, types.ErrInvalidArgument)
		}
		key, seen = k, true
	}
	if !seen {
		return nil, 0, fmt.Errorf("hotkey: no key in %q: %w", shortcut, types.ErrInvalidArgument)
	}
	return mods, key, nil
}

// Trigger emits a press on keydown and a release on keyup of a global
// shortcut.
type Trigger struct {
	shortcut string
	mods     []hotkey.Modifier
	key      hotkey.Key
}

// New validates shortcut and returns a Trigger for it. An empty shortcut
// selects [DefaultShortcut].
func New(shortcut string) (*Trigger, error) {
	if shortcut == "" {
		shortcut = DefaultShortcut
	}
	mods, key, err := Parse(shortcut)
	if err != nil {
		return nil, err
	}
	return &Trigger{shortcut: shortcut, mods: mods, key: key}, nil
}

// Run registers the shortcut and forwards its edges until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context, edges chan<- control.Edge) error {
	hk := hotkey.New(t.mods, t.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("hotkey: register %q: %w", t.shortcut, err)
	}
	defer func() {
		if err := hk.Unregister(); err != nil {
			slog.Warn("failed to unregister hotkey", "shortcut", t.shortcut, "error", err)
		}
	}()
	slog.Info("hold the hotkey to record", "shortcut", t.shortcut)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hk.Keydown():
			if !control.Send(ctx, edges, control.EdgePress) {
				return nil
			}
		case <-hk.Keyup():
			if !control.Send(ctx, edges, control.EdgeRelease) {
				return nil
			}
		}
	}
}

var _ control.Trigger = (*Trigger)(nil)
