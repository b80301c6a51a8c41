package components

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/allbin/go-firmata"
)

// Readout is a firmata.Sink that keeps the last published frame of one
// device. The watch view reads it once per frame.
type Readout struct {
	mu      sync.Mutex
	analog  []float64
	digital []bool
	frames  uint64
	updated time.Time
}

func (r *Readout) SetAnalog(values []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analog = values
	r.frames++
	r.updated = time.Now()
}

func (r *Readout) SetDigital(values []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digital = values
}

// Values returns the last frame and how many frames were published.
func (r *Readout) Values() (analog []float64, digital []bool, frames uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analog, r.digital, r.frames
}

// Updated returns when the last frame was published.
func (r *Readout) Updated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updated
}

// Readouts hands out one Readout per port.
type Readouts struct {
	mu     sync.Mutex
	byPort map[string]*Readout
}

func NewReadouts() *Readouts {
	return &Readouts{byPort: make(map[string]*Readout)}
}

// For returns the readout of port, creating it on first use.
func (r *Readouts) For(port string) *Readout {
	r.mu.Lock()
	defer r.mu.Unlock()
	ro, ok := r.byPort[port]
	if !ok {
		ro = &Readout{}
		r.byPort[port] = ro
	}
	return ro
}

// Sink matches the detector's sink factory.
func (r *Readouts) Sink(port string) firmata.Sink {
	return r.For(port)
}

// FormatDigital renders pins as 0/1, grouped by 8-pin port.
func FormatDigital(pins []bool) string {
	var b strings.Builder
	for i, high := range pins {
		if i > 0 && i%8 == 0 {
			b.WriteByte(' ')
		}
		if high {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// FormatAnalog renders raw 10-bit readings separated by spaces.
func FormatAnalog(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%4.0f", v)
	}
	return strings.Join(parts, " ")
}

// FormatReadout renders one device as plain text, suitable for the
// clipboard.
func FormatReadout(row PinRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s\n", row.Port, row.Name, row.State)
	for i, v := range row.Analog {
		fmt.Fprintf(&b, "A%d=%.0f ", i, v)
	}
	b.WriteString("\n")
	if len(row.Digital) > 0 {
		fmt.Fprintf(&b, "D0-%d=%s\n", len(row.Digital)-1, FormatDigital(row.Digital))
	}
	return b.String()
}
