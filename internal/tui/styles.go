// Package tui is the terminal front end: status line, progress bar, news
// and a settings panel, driven by the orchestrator's status stream.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinoosan/launcher/internal/data"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	MutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	NewsTitleStyle = lipgloss.NewStyle().Bold(true)
)

// StateStyle colours the status message by state.
func StateStyle(s data.State) lipgloss.Style {
	switch s {
	case data.StateReadyToLaunch, data.StateCompleted:
		return SuccessStyle
	case data.StateDownloading, data.StatePreparing, data.StatePaused, data.StateCheckingVersion:
		return WarningStyle
	case data.StateError:
		return ErrorStyle
	default:
		return lipgloss.NewStyle()
	}
}
