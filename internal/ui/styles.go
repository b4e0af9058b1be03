package ui

import "github.com/charmbracelet/lipgloss"

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("238")).
			PaddingRight(1)
	sidebarTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sessionStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	currentSessionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	documentStyle       = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("178"))
	timestampStyle      = lipgloss.NewStyle().Faint(true)
	sourcesStyle        = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245"))

	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("130")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
