/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/go-firmata"
	"github.com/allbin/go-firmata/internal/transport"
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe <port>",
	Short: "Check whether a port holds a Firmata board",
	Long: `Open a port, configure the board and wait for it to identify itself.

Prints the port's USB metadata and the reported firmware. Exits non-zero when
the port cannot be opened or the board does not report the expected firmware
within the grace period.

Examples:
  firmata probe /dev/ttyACM0
  firmata probe /dev/ttyUSB0 --grace 5s --settle 2s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]
		out := cmd.OutOrStdout()

		log, err := newLogger()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Port Information: %s\n\n", portPath)
		if info, err := transport.GetPortInfo(portPath); err == nil {
			fmt.Fprintf(out, "  Name:         %s\n", info.Name)
			fmt.Fprintf(out, "  Description:  %s\n", info.Description)
			if info.VendorID != "" {
				fmt.Fprintf(out, "  Vendor ID:    %s\n", info.VendorID)
				fmt.Fprintf(out, "  Product ID:   %s\n", info.ProductID)
			}
			if info.Manufacturer != "" {
				fmt.Fprintf(out, "  Manufacturer: %s\n", info.Manufacturer)
			}
			if info.Product != "" {
				fmt.Fprintf(out, "  Product:      %s\n", info.Product)
			}
			if info.SerialNumber != "" {
				fmt.Fprintf(out, "  Serial:       %s\n", info.SerialNumber)
			}
		}

		dev, err := firmata.Open(cmd.Context(), portPath, deviceOptions(log)...)
		if dev != nil {
			defer dev.Close()
		}

		fmt.Fprintln(out, "\nFirmata:")
		if err != nil {
			fmt.Fprintf(out, "  Result:       %s\n", probeVerdict(err))
			return err
		}
		id := dev.Identity()
		fmt.Fprintf(out, "  Result:       found\n")
		fmt.Fprintf(out, "  Firmware:     %s\n", id.Name)
		fmt.Fprintf(out, "  Version:      %d.%d\n", id.Major, id.Minor)
		fmt.Fprintf(out, "  Device:       %s\n", dev.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

// probeVerdict summarizes why a port is not a usable board.
func probeVerdict(err error) string {
	switch {
	case errors.Is(err, firmata.ErrPortUnavailable):
		return "port unavailable"
	case errors.Is(err, firmata.ErrHandshakeMismatch):
		return "different firmware"
	case errors.Is(err, firmata.ErrHandshakeTimeout):
		return "no answer"
	case errors.Is(err, firmata.ErrTransportFault):
		return "transport fault"
	default:
		return "failed"
	}
}
