/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allbin/go-firmata"
	"github.com/allbin/go-firmata/internal/tui/components"
)

// Output formats for read
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// readout is one published frame of a device.
type readout struct {
	Port     string    `json:"port" yaml:"port"`
	Device   string    `json:"device" yaml:"device"`
	Firmware string    `json:"firmware" yaml:"firmware"`
	Version  string    `json:"version" yaml:"version"`
	State    string    `json:"state" yaml:"state"`
	Time     time.Time `json:"time" yaml:"time"`
	Analog   []float64 `json:"analog" yaml:"analog,flow"`
	Digital  []bool    `json:"digital" yaml:"digital,flow"`
}

func newReadout(dev *firmata.Device, analog []float64, digital []bool, at time.Time) readout {
	id := dev.Identity()
	return readout{
		Port:     dev.Port(),
		Device:   dev.Name(),
		Firmware: id.Name,
		Version:  fmt.Sprintf("%d.%d", id.Major, id.Minor),
		State:    dev.State().String(),
		Time:     at,
		Analog:   analog,
		Digital:  digital,
	}
}

// readoutWriter encodes a stream of readouts in one format.
type readoutWriter struct {
	w      io.Writer
	format string
	json   *json.Encoder
	yaml   *yaml.Encoder
}

func newReadoutWriter(w io.Writer, format string) (*readoutWriter, error) {
	rw := &readoutWriter{w: w, format: strings.ToLower(format)}
	switch rw.format {
	case outputText:
	case outputJSON:
		rw.json = json.NewEncoder(w)
		rw.json.SetIndent("", "  ")
	case outputYAML:
		rw.yaml = yaml.NewEncoder(w)
		rw.yaml.SetIndent(2)
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
	return rw, nil
}

func (rw *readoutWriter) Write(r readout) error {
	switch rw.format {
	case outputJSON:
		return rw.json.Encode(r)
	case outputYAML:
		return rw.yaml.Encode(r)
	default:
		return writeText(rw.w, r)
	}
}

// Close finishes the stream; the yaml encoder buffers its last document.
func (rw *readoutWriter) Close() error {
	if rw.yaml != nil {
		return rw.yaml.Close()
	}
	return nil
}

func writeText(w io.Writer, r readout) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s  %s\n", r.Time.Format("15:04:05.000"), r.Port, r.Device, r.State)
	b.WriteString("  analog: ")
	for i, v := range r.Analog {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "A%d=%-4.0f", i, v)
	}
	fmt.Fprintf(&b, "\n  digital: %s\n", components.FormatDigital(r.Digital))
	_, err := io.WriteString(w, b.String())
	return err
}
