package firmata

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-firmata/internal/protocol"
	"github.com/allbin/go-firmata/internal/transport"
)

// Pin layout of an Uno-class board. Every device reports exactly this many
// values regardless of the board actually attached.
const (
	AnalogChannels = 6
	DigitalPins    = 14
)

// digitalPinMode is the mode every digital pin is put in.
const digitalPinMode = protocol.PinModeInput

// digitalReportPorts lists the 8-pin ports streamed with REPORT_DIGITAL.
// Ports 0 and 1 cover pins 0-15, which includes every digital pin above.
var digitalReportPorts = [...]int{0, 1}

const (
	DefaultFirmwareName = "StandardFirmata.ino"
	DefaultGracePeriod  = 3 * time.Second
	DefaultBaudRate     = 57600
	DefaultReadTimeout  = 100 * time.Millisecond
)

// Conn is the byte stream a device talks Firmata over. Reads must return
// within a bounded time even when the board is silent; the worker checks
// for shutdown between reads.
type Conn interface {
	io.ReadWriteCloser
}

// Opener opens the connection for a port path.
type Opener func(port string) (Conn, error)

// Config holds the settings for one device
type Config struct {
	FirmwareName string        // exact name expected in REPORT_FIRMWARE
	GracePeriod  time.Duration // upper bound on the handshake wait in Open
	SettleDelay  time.Duration // pause after opening, before configuration
	BaudRate     int
	ReadTimeout  time.Duration
	Backend      string // transport backend of the default opener
	ResetOnOpen  bool   // pulse DTR on open so auto-reset boards reboot
	Opener       Opener // nil opens Backend through internal/transport
	Sink         Sink   // receives values on Update; may be nil
	Logger       zerolog.Logger
}

// Option is a functional option for configuring a device
type Option func(*Config) error

// DefaultConfig returns a configuration matching StandardFirmata on an
// Uno-class board.
func DefaultConfig() Config {
	return Config{
		FirmwareName: DefaultFirmwareName,
		GracePeriod:  DefaultGracePeriod,
		BaudRate:     DefaultBaudRate,
		ReadTimeout:  DefaultReadTimeout,
		Logger:       zerolog.Nop(),
	}
}

// WithFirmwareName sets the firmware name the board must report
func WithFirmwareName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return ErrInvalidConfig
		}
		c.FirmwareName = name
		return nil
	}
}

// WithGracePeriod sets how long Open waits for the firmware identity
func WithGracePeriod(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.GracePeriod = d
		return nil
	}
}

// WithSettleDelay waits after opening the port before sending anything.
// Boards that reset on connect drop bytes while their bootloader runs.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return ErrInvalidConfig
		}
		c.SettleDelay = d
		return nil
	}
}

// WithBaudRate sets the baud rate used by the default opener
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if rate <= 0 {
			return ErrInvalidConfig
		}
		c.BaudRate = rate
		return nil
	}
}

// WithReadTimeout bounds a single read of the default opener, and with it
// how long Close waits for the worker. The accepted range is the one every
// transport backend accepts.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if err := transport.CheckReadTimeout(d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		c.ReadTimeout = d
		return nil
	}
}

// WithBackend selects the serial backend of the default opener:
// transport.BackendTermios (the default) or transport.BackendPortable.
func WithBackend(name string) Option {
	return func(c *Config) error {
		switch name {
		case "", transport.BackendTermios, transport.BackendPortable:
			c.Backend = name
			return nil
		}
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, name)
	}
}

// WithResetOnOpen makes the default opener pulse DTR, rebooting boards with
// an auto-reset circuit. Pair it with WithSettleDelay so the bootloader has
// finished before configuration is sent.
func WithResetOnOpen(reset bool) Option {
	return func(c *Config) error {
		c.ResetOnOpen = reset
		return nil
	}
}

// WithOpener replaces the serial transport
func WithOpener(open Opener) Option {
	return func(c *Config) error {
		if open == nil {
			return ErrInvalidConfig
		}
		c.Opener = open
		return nil
	}
}

// WithSink sets where Update publishes values
func WithSink(sink Sink) Option {
	return func(c *Config) error {
		c.Sink = sink
		return nil
	}
}

// WithLogger sets the logger; the device adds a port field
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// openTransport is swapped out by tests.
var openTransport = transport.OpenWith

func (c *Config) opener() Opener {
	if c.Opener != nil {
		return c.Opener
	}
	backend := c.Backend
	opts := []transport.Option{
		transport.WithBaudRate(c.BaudRate),
		transport.WithReadTimeout(c.ReadTimeout),
		transport.WithHangupReset(c.ResetOnOpen),
	}
	return func(port string) (Conn, error) {
		conn, err := openTransport(backend, port, opts...)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func buildConfig(opts []Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	return config, nil
}
