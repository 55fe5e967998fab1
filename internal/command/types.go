// Package command maps recognized utterances onto typed voice commands.
//
// A [Matcher] lowercases the utterance and walks an ordered pattern table; the
// first pattern whose phrase occurs anywhere in the text wins. Ordering is
// significant: a short phrase listed before a longer one that contains it
// shadows the longer one ("play" before "playlist", "кликни" before
// "кликни правой"). The default table is bilingual, Russian and English
// phrases map onto the same canonical tokens.
package command

// Type is the category of a voice command. The dispatcher switches on it.
type Type int

const (
	TypeUnknown Type = iota
	TypeGreeting
	TypeGoodbye
	TypeKeyboard
	TypeMouse
	TypeSystem
	TypeVolume
	TypeMedia
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeGreeting:
		return "greeting"
	case TypeGoodbye:
		return "goodbye"
	case TypeKeyboard:
		return "keyboard"
	case TypeMouse:
		return "mouse"
	case TypeSystem:
		return "system"
	case TypeVolume:
		return "volume"
	case TypeMedia:
		return "media"
	default:
		return "invalid"
	}
}

// Action is the concrete operation within a [Type].
type Action int

const (
	ActionNone Action = iota
	ActionKeyPress
	ActionKeyHold
	ActionKeyRelease
	ActionMouseClick
	ActionMouseMove
	ActionVolumeUp
	ActionVolumeDown
	ActionVolumeMute
	ActionPlayPause
	ActionNextTrack
	ActionPrevTrack
	ActionSystemSleep
	ActionSystemLock
	ActionSystemWake
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionKeyPress:
		return "key_press"
	case ActionKeyHold:
		return "key_hold"
	case ActionKeyRelease:
		return "key_release"
	case ActionMouseClick:
		return "mouse_click"
	case ActionMouseMove:
		return "mouse_move"
	case ActionVolumeUp:
		return "volume_up"
	case ActionVolumeDown:
		return "volume_down"
	case ActionVolumeMute:
		return "volume_mute"
	case ActionPlayPause:
		return "play_pause"
	case ActionNextTrack:
		return "next_track"
	case ActionPrevTrack:
		return "prev_track"
	case ActionSystemSleep:
		return "system_sleep"
	case ActionSystemLock:
		return "system_lock"
	case ActionSystemWake:
		return "system_wake"
	default:
		return "invalid"
	}
}

// Pattern is one row of the command table.
type Pattern struct {
	// Phrase is matched case-insensitively as a substring of the utterance.
	Phrase string

	Type   Type
	Action Action

	// Token is the canonical command. For keyboard commands it is a chord
	// such as "space" or "ctrl+c"; for mouse clicks a button name, for mouse
	// moves a direction.
	Token string
}

// Command is a matched voice command. It is immutable and passed by value.
type Command struct {
	Type   Type
	Action Action
	Token  string

	// Param is the first integer that follows the matched phrase, or 0.
	Param int

	// Confidence is the recognizer confidence, scaled by the similarity
	// score for fuzzy matches.
	Confidence float64

	// Text is the utterance the command was matched from.
	Text string

	// Phrase is the pattern phrase that matched.
	Phrase string

	// Fuzzy reports whether the command came from the fuzzy fallback.
	Fuzzy bool

	// UtteranceID is the recognizer result the command was matched from.
	// The matcher leaves it empty; the pipeline fills it in.
	UtteranceID string
}

// Stats is a snapshot of the matcher statistics.
type Stats struct {
	Total      uint64
	Recognized uint64
	Unknown    uint64
	Fuzzy      uint64

	// AverageConfidence is the mean recognizer confidence over every input,
	// matched or not.
	AverageConfidence float64
}
