/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-firmata"
	"github.com/allbin/go-firmata/internal/logging"
	"github.com/allbin/go-firmata/internal/tui/components"
	"github.com/allbin/go-firmata/internal/tui/models"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [port...]",
	Short: "Live view of every connected board",
	Long: `Show the pins of every board in a live table.

Without arguments the ports come from the configured source and can be
rescanned with r. With arguments only those ports are probed. Each frame
publishes every device once; y copies the highlighted readout to the
clipboard.

Examples:
  firmata watch
  firmata watch /dev/ttyACM0 /dev/ttyACM1
  firmata watch --fps 30 --source usb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lister, err := watchLister(args)
		if err != nil {
			return err
		}

		log, err := watchLogger()
		if err != nil {
			return err
		}

		readouts := components.NewReadouts()
		det := firmata.NewDetector(lister,
			firmata.WithDeviceOptions(deviceOptions(log)...),
			firmata.WithConcurrency(viper.GetInt("discovery.concurrency")),
			firmata.WithSinkFactory(readouts.Sink),
			firmata.WithDetectorLogger(log),
		)
		defer det.Close()

		var copyFn func(string) error
		if !clipboard.Unsupported {
			copyFn = clipboard.WriteAll
		}

		m := models.NewWatchModel(cmd.Context(), det, readouts, viper.GetInt("watch.fps"), copyFn)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
			return fmt.Errorf("watch: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int("fps", 10, "Frames per second; every device is published once per frame")
	watchCmd.Flags().String("log-file", "", "Write logs to this file while the view is open")
	if err := viper.BindPFlag("watch.fps", watchCmd.Flags().Lookup("fps")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("watch.log", watchCmd.Flags().Lookup("log-file")); err != nil {
		panic(err)
	}
}

func watchLister(ports []string) (firmata.Lister, error) {
	if len(ports) > 0 {
		return firmata.ListerFunc(func() ([]string, error) { return ports, nil }), nil
	}
	return newLister(viper.GetString("discovery.source"))
}

// watchLogger keeps log lines off the alternate screen unless a log file
// is configured.
func watchLogger() (zerolog.Logger, error) {
	path := viper.GetString("watch.log")
	if path == "" {
		return logging.New(io.Discard, viper.GetString("log.level"), logging.FormatJSON)
	}
	f, err := tea.LogToFile(path, "firmata")
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.New(f, viper.GetString("log.level"), logging.FormatJSON)
}
