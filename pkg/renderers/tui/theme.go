package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles used for session messages. Colors are ANSI 256
// codes for broad terminal compatibility.
type Theme struct {
	Title   lipgloss.Style
	Step    lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultTheme is the dark-terminal scheme.
func DefaultTheme() Theme {
	return Theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Step:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// PlainTheme renders text without styling.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{Title: plain, Step: plain, Error: plain, Success: plain, Muted: plain}
}
