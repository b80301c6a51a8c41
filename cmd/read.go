/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/go-firmata"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <port>",
	Short: "Print the pin values of one board",
	Long: `Connect to a board, let it stream for a moment and print its pins.

The six analog channels are raw 10-bit readings; the fourteen digital pins
are inputs. With --count above one the board is read repeatedly.

Examples:
  firmata read /dev/ttyACM0
  firmata read /dev/ttyACM0 --output json
  firmata read /dev/ttyACM0 --output yaml --count 10 --interval 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]
		format, _ := cmd.Flags().GetString("output")
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")
		wait, _ := cmd.Flags().GetDuration("wait")

		rw, err := newReadoutWriter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}
		defer rw.Close()

		log, err := newLogger()
		if err != nil {
			return err
		}

		var analog []float64
		var digital []bool
		sink := firmata.SinkFuncs{
			Analog:  func(v []float64) { analog = v },
			Digital: func(v []bool) { digital = v },
		}

		opts := append(deviceOptions(log), firmata.WithSink(sink))
		dev, err := firmata.Open(cmd.Context(), portPath, opts...)
		if err != nil {
			return err
		}
		defer dev.Close()

		ctx := cmd.Context()
		delay := wait
		for i := 0; count <= 0 || i < count; i++ {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = interval

			if err := dev.Update(); err != nil {
				return fmt.Errorf("reading %s: %w", portPath, err)
			}
			if err := rw.Write(newReadout(dev, analog, digital, time.Now())); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().StringP("output", "o", outputText, "Output format: text, json, yaml")
	readCmd.Flags().IntP("count", "n", 1, "Number of readings, 0 for unlimited")
	readCmd.Flags().Duration("interval", time.Second, "Time between readings")
	readCmd.Flags().Duration("wait", 500*time.Millisecond, "Time to let the board stream before the first reading")
}
