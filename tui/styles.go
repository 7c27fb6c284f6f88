package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorPurple  = lipgloss.Color("#9333EA")
	ColorPink    = lipgloss.Color("#DB2777")
	ColorRed     = lipgloss.Color("#DC2626")
	ColorGreen   = lipgloss.Color("#16A34A")
	ColorYellow  = lipgloss.Color("#EAB308")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorPink)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPurple)

	StartButtonStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWhite).
				Background(ColorPurple).
				Padding(0, 2)

	StopButtonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorRed).
			Padding(0, 2)

	BusyButtonStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorDimGray).
			Padding(0, 2)

	ConnectedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	DisconnectedStyle = lipgloss.NewStyle().
				Foreground(ColorGray)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorPurple).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	AssistantLogStyle = lipgloss.NewStyle().
				Foreground(ColorPink)

	UserLogStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	ViewerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPurple).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
