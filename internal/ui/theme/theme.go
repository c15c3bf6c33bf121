package theme

import "charm.land/lipgloss/v2"

// Palette. The photo gauge uses Film, answers use Text on the card.
var (
	Primary = lipgloss.Color("#38BDF8")
	Film    = lipgloss.Color("#14B8A6")
	Accent  = lipgloss.Color("#F59E0B")
	Success = lipgloss.Color("#22C55E")
	Error   = lipgloss.Color("#F43F5E")
	Text    = lipgloss.Color("#F8FAFC")
	TextDim = lipgloss.Color("#94A3B8")
	Panel   = lipgloss.Color("#1E293B")
	Border  = lipgloss.Color("#334155")
)

var (
	Title    = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Subtitle = lipgloss.NewStyle().Foreground(TextDim)
	Body     = lipgloss.NewStyle().Foreground(Text)
	Hint     = lipgloss.NewStyle().Foreground(TextDim).Italic(true)

	Selected   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Unselected = lipgloss.NewStyle().Foreground(Text)
	Disabled   = lipgloss.NewStyle().Foreground(TextDim)
	Good       = lipgloss.NewStyle().Foreground(Success).Bold(true)
	Bad        = lipgloss.NewStyle().Foreground(Error).Bold(true)
)

// Card frames an answer; ErrorCard frames a failed one.
var (
	Card      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Border).Padding(0, 1)
	ErrorCard = Card.BorderForeground(Error)

	// Bar is the header and footer chrome.
	Bar = lipgloss.NewStyle().Background(Panel).Border(lipgloss.RoundedBorder()).BorderForeground(Border)
)

var (
	GaugeFilled = lipgloss.NewStyle().Background(Film)
	GaugeEmpty  = lipgloss.NewStyle().Background(Border)
)
