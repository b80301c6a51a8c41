/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-firmata/internal/transport"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports a board could be attached to",
	Long: `List the serial ports that detection would probe.

Sources:
- dev: USB serial adapters and CDC/ACM devices found under /dev (default)
- all: every serial-capable device under /dev, including ttyS* and ttyAMA*
- usb: USB ports reported by the OS enumerator, optionally limited by vendor

Examples:
  firmata list
  firmata list --source all --table
  firmata list --source usb --vendor 2341 --vendor 1a86`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source := viper.GetString("discovery.source")
		tableFormat, _ := cmd.Flags().GetBool("table")

		infos, err := listPortInfos(source)
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(infos) == 0 {
			fmt.Fprintln(out, "No serial ports found")
			return nil
		}

		if tableFormat {
			renderTable(out, infos)
		} else {
			renderSimple(out, infos)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// listPortInfos lists ports from source with whatever detail it offers.
func listPortInfos(source string) ([]transport.PortInfo, error) {
	if source == "usb" {
		return transport.USBLister{VendorIDs: viper.GetStringSlice("discovery.vendors")}.Details()
	}

	lister, err := newLister(source)
	if err != nil {
		return nil, err
	}
	ports, err := lister.ListPorts()
	if err != nil {
		return nil, err
	}

	infos := make([]transport.PortInfo, 0, len(ports))
	for _, port := range ports {
		info, err := transport.GetPortInfo(port)
		if err != nil {
			infos = append(infos, transport.PortInfo{Path: port, Name: port, Description: err.Error()})
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// renderTable renders the port list in a styled static table format
func renderTable(w io.Writer, infos []transport.PortInfo) {
	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(infos))

	portWidth := 20
	typeWidth := 16
	idWidth := 10
	descWidth := 30

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		portWidth, "Port",
		typeWidth, "Type",
		idWidth, "VID:PID",
		descWidth, "Description")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, info := range infos {
		ids := "-"
		if info.VendorID != "" {
			ids = info.VendorID + ":" + info.ProductID
		}
		desc := info.Description
		if info.Product != "" {
			desc = info.Product
		}
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			portWidth, info.Path,
			typeWidth, getPortType(info.Name),
			idWidth, ids,
			descWidth, desc)
		fmt.Fprintln(w, cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(w io.Writer, infos []transport.PortInfo) {
	for _, info := range infos {
		fmt.Fprintln(w, info.Path)
	}
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"), strings.HasPrefix(name, "cu.usbmodem"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "cu.usbserial"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}

