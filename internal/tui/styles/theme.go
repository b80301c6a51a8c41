package styles

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, the subset the watch view uses
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Text)

	TableBorderColor = Subtext0

	PinHighStyle = lipgloss.NewStyle().Foreground(Green)
	PinLowStyle  = lipgloss.NewStyle().Foreground(Overlay0)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	// Info styles
	InfoStyle = lipgloss.NewStyle().
			Foreground(Subtext1).
			Italic(true)
)

// StateStyle colors a device lifecycle state name.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "running", "valid":
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case "starting", "stopping":
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	}
}
