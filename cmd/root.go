/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-firmata"
	"github.com/allbin/go-firmata/internal/logging"
	"github.com/allbin/go-firmata/internal/transport"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "firmata",
	Short: "Find and read Firmata boards on serial ports",
	Long: `Find boards running StandardFirmata on serial ports and read their pins.

Every command accepts its settings as flags, as FIRMATA_* environment
variables, or from a firmata.yaml file in the working directory or
$HOME/.config/firmata.

Examples:
  firmata list --source usb
  firmata probe /dev/ttyACM0
  firmata read /dev/ttyACM0 --output json
  firmata watch
  firmata detect --interval 5s`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./firmata.yaml)")
	flags.String("firmware", firmata.DefaultFirmwareName, "firmware name the board must report")
	flags.Duration("grace", firmata.DefaultGracePeriod, "how long to wait for the board to identify itself")
	flags.Duration("settle", 0, "pause after opening a port, for boards that reset on connect")
	flags.IntP("baud", "b", firmata.DefaultBaudRate, "baud rate")
	flags.String("transport", transport.BackendTermios, "serial backend: termios, portable")
	flags.Bool("reset", false, "pulse DTR on open to reboot auto-reset boards (combine with --settle)")
	flags.StringP("source", "s", "dev", "port source: dev, all, usb")
	flags.StringSlice("vendor", nil, "USB vendor IDs to keep (usb source only)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", logging.FormatAuto, "log format: auto, console, json")

	bind := map[string]string{
		"firmware":          "firmware",
		"grace":             "grace",
		"settle":            "settle",
		"baud":              "baud",
		"transport":         "transport",
		"serial.reset":      "reset",
		"discovery.source":  "source",
		"discovery.vendors": "vendor",
		"log.level":         "log-level",
		"log.format":        "log-format",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetDefault("discovery.interval", 5*time.Second)
	viper.SetDefault("discovery.concurrency", 4)
	viper.SetDefault("watch.fps", 10)
}

// initConfig reads in the config file and environment variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("firmata")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/firmata")
		}
	}

	viper.SetEnvPrefix("FIRMATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func newLogger() (zerolog.Logger, error) {
	return logging.New(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"))
}

// deviceOptions turns the loaded configuration into device options.
func deviceOptions(log zerolog.Logger) []firmata.Option {
	return []firmata.Option{
		firmata.WithFirmwareName(viper.GetString("firmware")),
		firmata.WithGracePeriod(viper.GetDuration("grace")),
		firmata.WithSettleDelay(viper.GetDuration("settle")),
		firmata.WithBaudRate(viper.GetInt("baud")),
		firmata.WithBackend(viper.GetString("transport")),
		firmata.WithResetOnOpen(viper.GetBool("serial.reset")),
		firmata.WithLogger(log),
	}
}

// newLister returns the port source named by discovery.source.
func newLister(source string) (firmata.Lister, error) {
	switch source {
	case "", "dev":
		return transport.DevLister{USBOnly: true}, nil
	case "all":
		return transport.DevLister{}, nil
	case "usb":
		return transport.USBLister{VendorIDs: viper.GetStringSlice("discovery.vendors")}, nil
	default:
		return nil, fmt.Errorf("unknown port source %q (want dev, all or usb)", source)
	}
}
