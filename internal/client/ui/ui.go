// Package ui provides the Bubble Tea prompts and lipgloss styles used by the
// sentinel CLIs.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kamikazebr/sentinel/pkg/models"
)

// Styles for the UI components
var (
	// Colors
	primaryColor   = lipgloss.Color("#5FAFFF")
	secondaryColor = lipgloss.Color("#888888")
	warningColor   = lipgloss.Color("#FFAA00")
	errorColor     = lipgloss.Color("#FF5555")
	successColor   = lipgloss.Color("#00FF00")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	CursorStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Italic(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)
)

// LevelStyle colours an audit log level
func LevelStyle(level models.LogLevel) lipgloss.Style {
	switch level {
	case models.LevelSuccess:
		return SuccessStyle
	case models.LevelWarn:
		return WarningStyle
	case models.LevelError:
		return ErrorStyle
	default:
		return UnselectedStyle
	}
}

// StatusStyle colours a device status
func StatusStyle(status models.DeviceStatus) lipgloss.Style {
	switch status {
	case models.StatusConnected:
		return SuccessStyle
	case models.StatusLocked:
		return WarningStyle
	default:
		return UnselectedStyle
	}
}
