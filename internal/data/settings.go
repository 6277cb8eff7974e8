package data

import "strings"

// CommandPlaceholder is replaced by the game executable path in the
// configured command line.
const CommandPlaceholder = "%command%"

// Settings is the persisted launcher configuration.
type Settings struct {
	InstallPath    string `json:"installPath" yaml:"install_path" toml:"install_path"`
	CommandLine    string `json:"commandLine" yaml:"command_line" toml:"command_line"`
	CurrentVersion string `json:"currentVersion,omitempty" yaml:"current_version,omitempty" toml:"current_version,omitempty"`
}

// WithDefaults fills unset fields. The version marker is never defaulted.
func (s Settings) WithDefaults(installPath string) Settings {
	if strings.TrimSpace(s.InstallPath) == "" {
		s.InstallPath = installPath
	}
	if strings.TrimSpace(s.CommandLine) == "" {
		s.CommandLine = CommandPlaceholder
	}
	return s
}

// Installed reports whether a version marker has ever been persisted.
func (s Settings) Installed() bool { return s.CurrentVersion != "" }
