package components

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/allbin/go-firmata/internal/tui/styles"
)

const (
	colPort    = "port"
	colName    = "name"
	colState   = "state"
	colFrames  = "frames"
	colDigital = "digital"
)

// PinRow is one device line of the pin table.
type PinRow struct {
	Port    string
	Name    string
	State   string
	Frames  uint64
	Analog  []float64
	Digital []bool
	Err     error
}

// PinTable shows one row per device: its state, six analog channels and
// the digital pins.
type PinTable struct {
	table    table.Model
	rows     []PinRow
	channels int
	height   int
}

func NewPinTable(channels int) *PinTable {
	pt := &PinTable{channels: channels, height: 10}
	pt.table = table.New(pt.columns()).
		BorderRounded().
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(lipgloss.NewStyle().Foreground(styles.Text).BorderForeground(styles.TableBorderColor)).
		WithPageSize(pt.height).
		Focused(true)
	return pt
}

func (pt *PinTable) columns() []table.Column {
	cols := []table.Column{
		table.NewColumn(colPort, "Port", 16),
		table.NewColumn(colName, "Device", 26),
		table.NewColumn(colState, "State", 9),
		table.NewColumn(colFrames, "Frames", 7),
	}
	for ch := 0; ch < pt.channels; ch++ {
		cols = append(cols, table.NewColumn(analogKey(ch), fmt.Sprintf("A%d", ch), 5))
	}
	return append(cols, table.NewColumn(colDigital, "D0-13", 16))
}

func analogKey(ch int) string {
	return fmt.Sprintf("a%d", ch)
}

// SetRows replaces the table contents, keeping the highlighted line.
func (pt *PinTable) SetRows(rows []PinRow) {
	pt.rows = rows
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		data := table.RowData{
			colPort:    r.Port,
			colName:    r.Name,
			colState:   table.NewStyledCell(r.State, styles.StateStyle(r.State)),
			colFrames:  fmt.Sprintf("%d", r.Frames),
			colDigital: FormatDigital(r.Digital),
		}
		for ch := 0; ch < pt.channels; ch++ {
			value := "-"
			if ch < len(r.Analog) {
				value = fmt.Sprintf("%.0f", r.Analog[ch])
			}
			data[analogKey(ch)] = value
		}
		out = append(out, table.NewRow(data))
	}
	pt.table = pt.table.WithRows(out)
}

// Rows returns the rows last set.
func (pt *PinTable) Rows() []PinRow {
	return pt.rows
}

// Selected returns the highlighted row.
func (pt *PinTable) Selected() (PinRow, bool) {
	if len(pt.rows) == 0 {
		return PinRow{}, false
	}
	port, ok := pt.table.HighlightedRow().Data[colPort].(string)
	if !ok {
		return PinRow{}, false
	}
	for _, r := range pt.rows {
		if r.Port == port {
			return r, true
		}
	}
	return PinRow{}, false
}

func (pt *PinTable) SetHeight(height int) {
	if height < 3 {
		height = 3
	}
	pt.height = height
	pt.table = pt.table.WithPageSize(height)
}

func (pt *PinTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	pt.table, cmd = pt.table.Update(msg)
	return cmd
}

func (pt *PinTable) View() string {
	return pt.table.View()
}
