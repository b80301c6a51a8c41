package transport

import (
	"fmt"
	"time"
)

// Config holds the line settings for a Firmata serial link. Firmata always
// runs 8N1 without flow control, so only the knobs that vary are exposed.
type Config struct {
	BaudRate    int
	ReadTimeout time.Duration // poll timeout, millisecond resolution
	Exclusive   bool          // take an advisory flock on the device
	HangupReset bool          // drop DTR on open so auto-reset boards reboot
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns 57600 baud, the StandardFirmata default, with a
// 100ms read timeout so readers can notice shutdown requests.
func DefaultConfig() Config {
	return Config{
		BaudRate:    57600,
		ReadTimeout: 100 * time.Millisecond,
		Exclusive:   true,
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, ok := baudRates[rate]; !ok {
			return ErrInvalidBaudRate
		}
		c.BaudRate = rate
		return nil
	}
}

// Read timeout bounds. A read that never waits would spin, and Close waits
// out one read before the port is released.
const (
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = time.Minute
)

// CheckReadTimeout reports whether d is a read timeout every backend accepts.
func CheckReadTimeout(d time.Duration) error {
	if d < MinReadTimeout || d > MaxReadTimeout {
		return fmt.Errorf("%w: read timeout %v outside [%v, %v]", ErrInvalidConfig, d, MinReadTimeout, MaxReadTimeout)
	}
	return nil
}

// WithReadTimeout sets how long a read waits for the first byte.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if err := CheckReadTimeout(d); err != nil {
			return err
		}
		c.ReadTimeout = d
		return nil
	}
}

// WithExclusive toggles the advisory lock taken on open.
func WithExclusive(exclusive bool) Option {
	return func(c *Config) error {
		c.Exclusive = exclusive
		return nil
	}
}

// WithHangupReset pulses DTR after open. Arduino-style boards reboot into
// their bootloader and then re-announce their firmware.
func WithHangupReset(reset bool) Option {
	return func(c *Config) error {
		c.HangupReset = reset
		return nil
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
