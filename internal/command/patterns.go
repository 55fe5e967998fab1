package command

import "slices"

// defaultPatterns is the built-in command dictionary. It is never mutated.
//
// Order matters. Known shadowing, all intentional:
//   - "hi" matches inside "shift" and "hibernate".
//   - "кликни" matches before "кликни правой" and "кликни левой".
//   - "click" matches before "right click", "left click" and "double click".
//   - "lock" matches inside "caps lock".
var defaultPatterns = []Pattern{
	// Greetings
	{"привет", TypeGreeting, ActionNone, "hello"},
	{"здравствуй", TypeGreeting, ActionNone, "hello"},
	{"hello", TypeGreeting, ActionNone, "hello"},
	{"hi", TypeGreeting, ActionNone, "hello"},

	// Goodbyes
	{"пока", TypeGoodbye, ActionNone, "goodbye"},
	{"до свидания", TypeGoodbye, ActionNone, "goodbye"},
	{"goodbye", TypeGoodbye, ActionNone, "goodbye"},
	{"bye", TypeGoodbye, ActionNone, "goodbye"},

	// Keyboard
	{"нажми пробел", TypeKeyboard, ActionKeyPress, "space"},
	{"нажми ввод", TypeKeyboard, ActionKeyPress, "enter"},
	{"нажми таб", TypeKeyboard, ActionKeyPress, "tab"},
	{"нажми эскейп", TypeKeyboard, ActionKeyPress, "escape"},
	{"нажми бэкспейс", TypeKeyboard, ActionKeyPress, "backspace"},
	{"press space", TypeKeyboard, ActionKeyPress, "space"},
	{"press enter", TypeKeyboard, ActionKeyPress, "enter"},
	{"press tab", TypeKeyboard, ActionKeyPress, "tab"},
	{"press escape", TypeKeyboard, ActionKeyPress, "escape"},
	{"press backspace", TypeKeyboard, ActionKeyPress, "backspace"},

	// Mouse
	{"кликни", TypeMouse, ActionMouseClick, "left"},
	{"кликни правой", TypeMouse, ActionMouseClick, "right"},
	{"кликни левой", TypeMouse, ActionMouseClick, "left"},
	{"двойной клик", TypeMouse, ActionMouseClick, "double_left"},
	{"click", TypeMouse, ActionMouseClick, "left"},
	{"right click", TypeMouse, ActionMouseClick, "right"},
	{"left click", TypeMouse, ActionMouseClick, "left"},
	{"double click", TypeMouse, ActionMouseClick, "double_left"},
	{"двигай вверх", TypeMouse, ActionMouseMove, "move_up"},
	{"двигай вниз", TypeMouse, ActionMouseMove, "move_down"},
	{"двигай влево", TypeMouse, ActionMouseMove, "move_left"},
	{"двигай вправо", TypeMouse, ActionMouseMove, "move_right"},
	{"move up", TypeMouse, ActionMouseMove, "move_up"},
	{"move down", TypeMouse, ActionMouseMove, "move_down"},
	{"move left", TypeMouse, ActionMouseMove, "move_left"},
	{"move right", TypeMouse, ActionMouseMove, "move_right"},

	// Volume
	{"громче", TypeVolume, ActionVolumeUp, "up"},
	{"тише", TypeVolume, ActionVolumeDown, "down"},
	{"выклюши звук", TypeVolume, ActionVolumeMute, "mute"},
	{"увеличь громкость", TypeVolume, ActionVolumeUp, "up"},
	{"уменьши громкость", TypeVolume, ActionVolumeDown, "down"},
	{"volume up", TypeVolume, ActionVolumeUp, "up"},
	{"volume down", TypeVolume, ActionVolumeDown, "down"},
	{"mute", TypeVolume, ActionVolumeMute, "mute"},
	{"louder", TypeVolume, ActionVolumeUp, "up"},
	{"quieter", TypeVolume, ActionVolumeDown, "down"},

	// Media
	{"играй", TypeMedia, ActionPlayPause, "play"},
	{"пауза", TypeMedia, ActionPlayPause, "pause"},
	{"следующий трек", TypeMedia, ActionNextTrack, "next"},
	{"предыдущий трек", TypeMedia, ActionPrevTrack, "previous"},
	{"play", TypeMedia, ActionPlayPause, "play"},
	{"pause", TypeMedia, ActionPlayPause, "pause"},
	{"next track", TypeMedia, ActionNextTrack, "next"},
	{"previous track", TypeMedia, ActionPrevTrack, "previous"},

	// System
	{"сон", TypeSystem, ActionSystemSleep, "sleep"},
	{"блокировка", TypeSystem, ActionSystemLock, "lock"},
	{"спящий режим", TypeSystem, ActionSystemSleep, "sleep"},
	{"sleep", TypeSystem, ActionSystemSleep, "sleep"},
	{"lock", TypeSystem, ActionSystemLock, "lock"},
	{"hibernate", TypeSystem, ActionSystemSleep, "sleep"},

	// Shortcuts. Chords come before the single keys they contain.
	{"контрол с", TypeKeyboard, ActionKeyPress, "ctrl+c"},
	{"контрол в", TypeKeyboard, ActionKeyPress, "ctrl+v"},
	{"контрол з", TypeKeyboard, ActionKeyPress, "ctrl+z"},
	{"альт таб", TypeKeyboard, ActionKeyPress, "alt+tab"},
	{"шифт таб", TypeKeyboard, ActionKeyPress, "shift+tab"},
	{"copy", TypeKeyboard, ActionKeyPress, "ctrl+c"},
	{"paste", TypeKeyboard, ActionKeyPress, "ctrl+v"},
	{"undo", TypeKeyboard, ActionKeyPress, "ctrl+z"},
	{"alt tab", TypeKeyboard, ActionKeyPress, "alt+tab"},
	{"стрелка вверх", TypeKeyboard, ActionKeyPress, "up"},
	{"стрелка вниз", TypeKeyboard, ActionKeyPress, "down"},
	{"стрелка влево", TypeKeyboard, ActionKeyPress, "left"},
	{"стрелка вправо", TypeKeyboard, ActionKeyPress, "right"},
	{"arrow up", TypeKeyboard, ActionKeyPress, "up"},
	{"arrow down", TypeKeyboard, ActionKeyPress, "down"},
	{"arrow left", TypeKeyboard, ActionKeyPress, "left"},
	{"arrow right", TypeKeyboard, ActionKeyPress, "right"},
	{"пробел", TypeKeyboard, ActionKeyPress, "space"},
	{"ввод", TypeKeyboard, ActionKeyPress, "enter"},
	{"таб", TypeKeyboard, ActionKeyPress, "tab"},
	{"удалить", TypeKeyboard, ActionKeyPress, "delete"},
	{"бэкспейс", TypeKeyboard, ActionKeyPress, "backspace"},
	{"экранировать", TypeKeyboard, ActionKeyPress, "escape"},
	{"капс лок", TypeKeyboard, ActionKeyPress, "capslock"},
	{"delete", TypeKeyboard, ActionKeyPress, "delete"},

	// Hold and release
	{"зажми шифт", TypeKeyboard, ActionKeyHold, "shift"},
	{"зажми контрол", TypeKeyboard, ActionKeyHold, "ctrl"},
	{"зажми альт", TypeKeyboard, ActionKeyHold, "alt"},
	{"hold control", TypeKeyboard, ActionKeyHold, "ctrl"},
	{"hold alt", TypeKeyboard, ActionKeyHold, "alt"},
	{"отпусти", TypeKeyboard, ActionKeyRelease, "all"},
	{"release", TypeKeyboard, ActionKeyRelease, "all"},

	// Extra phrases
	{"выключи звук", TypeVolume, ActionVolumeMute, "mute"},
	{"средний клик", TypeMouse, ActionMouseClick, "middle"},
	{"проснись", TypeSystem, ActionSystemWake, "wake"},
	{"wake up", TypeSystem, ActionSystemWake, "wake"},
}

// DefaultPatterns returns a copy of the built-in command table.
func DefaultPatterns() []Pattern {
	return slices.Clone(defaultPatterns)
}
