package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CommandsChanged means the matcher must be rebuilt.
	CommandsChanged bool
	NewCommands     CommandsConfig

	// RestartRequired lists the top-level sections that changed but can only
	// take effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CommandsChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Commands != new.Commands {
		d.CommandsChanged = true
		d.NewCommands = new.Commands
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	sections := []struct {
		name     string
		old, new any
	}{
		{"audio", old.Audio, new.Audio},
		{"dsp", old.DSP, new.DSP},
		{"vad", old.VAD, new.VAD},
		{"recognizer", old.Recognizer, new.Recognizer},
		{"decoder", old.Decoder, new.Decoder},
		{"control", old.Control, new.Control},
		{"actions", old.Actions, new.Actions},
		{"pipeline", old.Pipeline, new.Pipeline},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
