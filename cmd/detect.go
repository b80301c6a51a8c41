/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-firmata"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect boards continuously and log their values",
	Long: `Run detection in the foreground without a UI.

Ports are rescanned every --interval; boards that disappear are released and
picked up again when they return. Each claimed board is published every
--rate and its values are logged at debug level. Press Ctrl+C to stop.

Examples:
  firmata detect
  firmata detect --interval 10s --log-level debug --log-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, _ := cmd.Flags().GetDuration("rate")

		log, err := newLogger()
		if err != nil {
			return err
		}
		lister, err := newLister(viper.GetString("discovery.source"))
		if err != nil {
			return err
		}

		det := firmata.NewDetector(lister,
			firmata.WithDeviceOptions(deviceOptions(log)...),
			firmata.WithConcurrency(viper.GetInt("discovery.concurrency")),
			firmata.WithSinkFactory(func(port string) firmata.Sink { return logSink(log, port) }),
			firmata.WithDetectorLogger(log),
		)
		defer det.Close()

		ctx := cmd.Context()
		go publish(ctx, det, rate, log)

		interval := viper.GetDuration("discovery.interval")
		log.Info().Dur("interval", interval).Msg("detecting boards")
		err = det.Run(ctx, interval, func(devices []*firmata.Device) {
			for _, dev := range devices {
				log.Info().Str("port", dev.Port()).Str("device", dev.Name()).Msg("board attached")
			}
		})
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("stopping")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Duration("interval", 5*time.Second, "Time between port scans")
	detectCmd.Flags().Duration("rate", time.Second, "Time between publishes of each board")
	if err := viper.BindPFlag("discovery.interval", detectCmd.Flags().Lookup("interval")); err != nil {
		panic(err)
	}
}

// publish calls Update on every claimed device until ctx is done.
func publish(ctx context.Context, det *firmata.Detector, rate time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, dev := range det.Devices() {
			if err := dev.Update(); err != nil {
				log.Warn().Str("port", dev.Port()).Err(err).Msg("board stopped")
			}
		}
	}
}

func logSink(log zerolog.Logger, port string) firmata.Sink {
	log = log.With().Str("port", port).Logger()
	return firmata.SinkFuncs{
		Analog: func(values []float64) {
			log.Debug().Floats64("analog", values).Msg("analog")
		},
		Digital: func(values []bool) {
			log.Debug().Bools("digital", values).Msg("digital")
		},
	}
}
