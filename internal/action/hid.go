package action

import (
	"fmt"
	"strings"

	"github.com/MrWong99/voicekey/pkg/types"
)

// Modifier is the HID keyboard modifier bitmask.
type Modifier uint8

const (
	ModLeftCtrl   Modifier = 0x01
	ModLeftShift  Modifier = 0x02
	ModLeftAlt    Modifier = 0x04
	ModLeftGUI    Modifier = 0x08
	ModRightCtrl  Modifier = 0x10
	ModRightShift Modifier = 0x20
	ModRightAlt   Modifier = 0x40
	ModRightGUI   Modifier = 0x80
)

// Key is a HID keyboard/keypad page usage.
type Key uint8

const (
	KeyNone      Key = 0x00
	KeyA         Key = 0x04
	Key1         Key = 0x1E
	Key0         Key = 0x27
	KeyEnter     Key = 0x28
	KeyEscape    Key = 0x29
	KeyBackspace Key = 0x2A
	KeyTab       Key = 0x2B
	KeySpace     Key = 0x2C
	KeyCapsLock  Key = 0x39
	KeyF1        Key = 0x3A
	KeyDelete    Key = 0x4C
	KeyRight     Key = 0x4F
	KeyLeft      Key = 0x50
	KeyDown      Key = 0x51
	KeyUp        Key = 0x52
	KeyMute      Key = 0x7F
	KeyVolumeUp  Key = 0x80
	KeyVolumeDn  Key = 0x81
)

// Button is a HID mouse button bit.
type Button uint8

const (
	ButtonLeft   Button = 0x01
	ButtonRight  Button = 0x02
	ButtonMiddle Button = 0x04
)

// Usage is a HID consumer page usage. UsageNone releases the consumer key.
type Usage uint16

const (
	UsageNone      Usage = 0x00
	UsageNextTrack Usage = 0xB5
	UsagePrevTrack Usage = 0xB6
	UsagePlayPause Usage = 0xCD
)

// Chord is a modifier mask plus at most one key.
type Chord struct {
	Mods Modifier
	Key  Key
}

// String renders the chord in the form ParseChord accepts.
func (c Chord) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if c.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	if c.Key != KeyNone {
		parts = append(parts, keyName(c.Key))
	}
	return strings.Join(parts, "+")
}

var modifierOrder = []struct {
	name string
	mod  Modifier
}{
	{"ctrl", ModLeftCtrl},
	{"shift", ModLeftShift},
	{"alt", ModLeftAlt},
	{"gui", ModLeftGUI},
	{"rctrl", ModRightCtrl},
	{"rshift", ModRightShift},
	{"ralt", ModRightAlt},
	{"rgui", ModRightGUI},
}

var modifierNames = map[string]Modifier{
	"ctrl": ModLeftCtrl, "control": ModLeftCtrl, "lctrl": ModLeftCtrl,
	"shift": ModLeftShift, "lshift": ModLeftShift,
	"alt": ModLeftAlt, "lalt": ModLeftAlt, "option": ModLeftAlt,
	"gui": ModLeftGUI, "lgui": ModLeftGUI, "win": ModLeftGUI, "super": ModLeftGUI, "meta": ModLeftGUI, "cmd": ModLeftGUI,
	"rctrl": ModRightCtrl, "rshift": ModRightShift, "ralt": ModRightAlt, "altgr": ModRightAlt, "rgui": ModRightGUI,
}

var keyNames = map[string]Key{
	"enter": KeyEnter, "return": KeyEnter,
	"escape": KeyEscape, "esc": KeyEscape,
	"backspace": KeyBackspace,
	"tab":       KeyTab,
	"space":     KeySpace,
	"capslock":  KeyCapsLock,
	"delete":    KeyDelete, "del": KeyDelete,
	"right": KeyRight, "left": KeyLeft, "down": KeyDown, "up": KeyUp,
	"mute": KeyMute, "volumeup": KeyVolumeUp, "volumedown": KeyVolumeDn,
}

// lookupKey resolves a key name: letters, digits, f1..f12 and the names in
// keyNames.
func lookupKey(name string) (Key, bool) {
	if k, ok := keyNames[name]; ok {
		return k, true
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return KeyA + Key(c-'a'), true
		case c >= '1' && c <= '9':
			return Key1 + Key(c-'1'), true
		case c == '0':
			return Key0, true
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 12 && name == fmt.Sprintf("f%d", n) {
		return KeyF1 + Key(n-1), true
	}
	return KeyNone, false
}

func keyName(k Key) string {
	switch {
	case k >= KeyA && k < KeyA+26:
		return string(rune('a' + k - KeyA))
	case k >= Key1 && k < Key0:
		return string(rune('1' + k - Key1))
	case k == Key0:
		return "0"
	case k >= KeyF1 && k < KeyF1+12:
		return fmt.Sprintf("f%d", k-KeyF1+1)
	}
	for _, name := range []string{"enter", "escape", "backspace", "tab", "space", "capslock", "delete", "right", "left", "down", "up", "mute", "volumeup", "volumedown"} {
		if keyNames[name] == k {
			return name
		}
	}
	return fmt.Sprintf("0x%02x", uint8(k))
}

// ParseChord parses "ctrl+alt+t", "shift" or "f5". Names are case-insensitive.
// A chord holds any number of modifiers and at most one key.
func ParseChord(s string) (Chord, error) {
	var c Chord
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return c, fmt.Errorf("action: empty chord: %w", types.ErrInvalidArgument)
	}
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if m, ok := modifierNames[part]; ok {
			c.Mods |= m
			continue
		}
		k, ok := lookupKey(part)
		if !ok {
			return Chord{}, fmt.Errorf("action: chord %q: unknown key %q: %w", s, part, types.ErrInvalidArgument)
		}
		if c.Key != KeyNone {
			return Chord{}, fmt.Errorf("action: chord %q has more than one key: %w", s, types.ErrInvalidArgument)
		}
		c.Key = k
	}
	return c, nil
}

// ParseSequence parses a list of chords executed one after another.
func ParseSequence(chords []string) ([]Chord, error) {
	seq := make([]Chord, 0, len(chords))
	for _, s := range chords {
		c, err := ParseChord(s)
		if err != nil {
			return nil, err
		}
		seq = append(seq, c)
	}
	return seq, nil
}
