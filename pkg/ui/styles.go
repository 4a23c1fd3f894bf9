package ui

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
	Light   = lipgloss.Color("#F9FAFB")
)

var (
	badgeStyle = lipgloss.NewStyle().
			Foreground(Light).
			Padding(0, 1).
			Bold(true)

	ConnectedBadge  = badgeStyle.Background(Success)
	ConnectingBadge = badgeStyle.Background(Warning)
	ErrorBadge      = badgeStyle.Background(Error)
	InfoBadge       = badgeStyle.Background(Primary)

	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	TitleStyle   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
)
