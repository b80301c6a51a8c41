package models

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-firmata"
	"github.com/allbin/go-firmata/internal/tui/components"
	"github.com/allbin/go-firmata/internal/tui/keys"
	"github.com/allbin/go-firmata/internal/tui/styles"
)

// DeviceSource finds devices and lists the ones it holds.
type DeviceSource interface {
	firmata.Scanner
	Devices() []*firmata.Device
}

type frameMsg time.Time

// ScanResultMsg carries the outcome of a rescan.
type ScanResultMsg struct {
	Found []*firmata.Device
	Err   error
}

// WatchModel polls every device once per frame and shows the published
// values.
type WatchModel struct {
	ctx      context.Context
	source   DeviceSource
	readouts *components.Readouts
	interval time.Duration

	table     *components.PinTable
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.WatchKeys
	showHelp  bool

	// Clipboard writer, atotto/clipboard in production.
	copy func(string) error

	scanning bool
	width    int
}

func NewWatchModel(ctx context.Context, source DeviceSource, readouts *components.Readouts, fps int, copyFn func(string) error) *WatchModel {
	if fps <= 0 {
		fps = 10
	}
	return &WatchModel{
		ctx:       ctx,
		source:    source,
		readouts:  readouts,
		interval:  time.Second / time.Duration(fps),
		table:     components.NewPinTable(firmata.AnalogChannels),
		statusBar: components.NewStatusBar("firmata watch", fps),
		help:      help.New(),
		keys:      keys.NewWatchKeys(),
		copy:      copyFn,
		scanning:  true,
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.scan(), m.tick())
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *WatchModel) scan() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		found, err := source.Scan(ctx)
		return ScanResultMsg{Found: found, Err: err}
	}
}

// poll publishes one frame of every device and rebuilds the table rows.
func (m *WatchModel) poll() {
	devices := m.source.Devices()
	rows := make([]components.PinRow, 0, len(devices))
	alive := 0
	for _, dev := range devices {
		err := dev.Update()
		if err == nil {
			alive++
		}
		analog, digital, frames := m.readouts.For(dev.Port()).Values()
		rows = append(rows, components.PinRow{
			Port:    dev.Port(),
			Name:    dev.Name(),
			State:   dev.State().String(),
			Frames:  frames,
			Analog:  analog,
			Digital: digital,
			Err:     err,
		})
	}
	m.table.SetRows(rows)
	m.statusBar.SetDevices(len(rows), alive)
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		// Title, status bar and table borders
		m.table.SetHeight(msg.Height - 8)

	case frameMsg:
		m.poll()
		return m, m.tick()

	case ScanResultMsg:
		m.scanning = false
		if msg.Err != nil {
			m.statusBar.SetError(msg.Err)
			return m, nil
		}
		m.statusBar.SetMessage(fmt.Sprintf("found %d new device(s)", len(msg.Found)))
		m.poll()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Rescan):
			if m.scanning {
				return m, nil
			}
			m.scanning = true
			m.statusBar.SetMessage("Scanning...")
			return m, m.scan()
		case key.Matches(msg, m.keys.Copy):
			m.copySelected()
			return m, nil
		}
		return m, m.table.Update(msg)
	}
	return m, nil
}

func (m *WatchModel) copySelected() {
	row, ok := m.table.Selected()
	if !ok {
		m.statusBar.SetMessage("nothing to copy")
		return
	}
	if m.copy == nil {
		m.statusBar.SetMessage("clipboard unavailable")
		return
	}
	if err := m.copy(components.FormatReadout(row)); err != nil {
		m.statusBar.SetError(fmt.Errorf("copy: %w", err))
		return
	}
	m.statusBar.SetMessage("copied " + row.Port)
}

// Rows returns what the table currently shows.
func (m *WatchModel) Rows() []components.PinRow {
	return m.table.Rows()
}

func (m *WatchModel) View() string {
	title := styles.TitleStyle.Render("Firmata devices")

	var body string
	if len(m.table.Rows()) == 0 {
		body = styles.InfoStyle.Render("No devices yet. Press r to rescan.")
	} else {
		body = m.table.View()
	}

	parts := []string{title, body}
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, m.statusBar.View(time.Now().Format(time.TimeOnly)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
