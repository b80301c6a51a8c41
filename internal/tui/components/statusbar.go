package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-firmata/internal/tui/styles"
)

// StatusBar is the single line at the bottom of the watch view.
type StatusBar struct {
	title   string
	devices int
	alive   int
	fps     int
	message string
	err     error
	width   int
}

func NewStatusBar(title string, fps int) *StatusBar {
	return &StatusBar{
		title:   title,
		fps:     fps,
		message: "Scanning...",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// SetDevices records how many devices are shown and how many still run.
func (sb *StatusBar) SetDevices(total, alive int) {
	sb.devices = total
	sb.alive = alive
}

func (sb *StatusBar) SetMessage(msg string) {
	sb.message = msg
	sb.err = nil
}

func (sb *StatusBar) SetError(err error) {
	sb.err = err
}

func (sb *StatusBar) View(timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	mode := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(styles.Blue).
		Bold(true).
		Padding(0, 1).
		Render(sb.title)

	var indicator string
	switch {
	case sb.err != nil:
		indicator = lipgloss.NewStyle().Foreground(styles.Red).Render("✗")
	case sb.alive > 0:
		indicator = lipgloss.NewStyle().Foreground(styles.Green).Render("●")
	default:
		indicator = lipgloss.NewStyle().Foreground(styles.Yellow).Render("○")
	}

	text := sb.message
	if sb.err != nil {
		text = sb.err.Error()
	}
	message := lipgloss.NewStyle().
		Foreground(styles.Peach).
		Padding(0, 1).
		Render(text)

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	counts := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(fmt.Sprintf("%d/%d devices  %d fps", sb.alive, sb.devices, sb.fps))

	clock := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, " ", indicator, message)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, divider, counts, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
