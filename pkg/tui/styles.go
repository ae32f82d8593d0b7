package tui

import "github.com/charmbracelet/lipgloss"

var (
	recordingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	elapsedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)
