package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive colors keep the transcript readable on light terminals.
var (
	colorBrand     = lipgloss.AdaptiveColor{Light: "#8A5A00", Dark: "#E8B04B"}
	colorGuest     = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#79C0FF"}
	colorOK        = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#56D364"}
	colorFailure   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF7B72"}
	colorCaution   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F0B72F"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	colorBody      = lipgloss.AdaptiveColor{Light: "#24292F", Dark: "#E6EDF3"}
)

var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1B1B1B")).
			Background(colorBrand).
			Padding(0, 1).
			Bold(true)

	// Transcript speakers
	StyleGuest     = lipgloss.NewStyle().Foreground(colorGuest).Bold(true)
	StyleAssistant = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)
	StyleText      = lipgloss.NewStyle().Foreground(colorBody)

	StyleSuccess = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(colorFailure).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(colorCaution)
	StyleMuted   = lipgloss.NewStyle().Foreground(colorSecondary)
	StyleSpinner = lipgloss.NewStyle().Foreground(colorBrand)
)

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconBullet  = "•"
	IconArrow   = "→"
)
