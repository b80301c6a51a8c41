package firmata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// State is the lifecycle position of a Device.
type State int32

const (
	StateStarting State = iota // handshake in progress
	StateValid                 // identity accepted, not yet polled
	StateRunning               // polled at least once
	StateStopping              // Close waiting for the worker
	StateStopped               // worker gone
	StateInvalid               // handshake failed; terminal
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateValid:
		return "valid"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Device is one Firmata board behind a serial port. A background worker
// keeps the pin state current; Update and Snapshot read it without
// touching the port.
type Device struct {
	port  string
	cfg   Config
	log   zerolog.Logger
	state *deviceState
	done  chan struct{}

	lifecycle atomic.Int32
	valid     atomic.Bool
	err       error // handshake outcome, written before Open returns

	closeOnce sync.Once
}

// Open connects to port, configures the board and waits up to the grace
// period for it to identify itself. It returns early once the identity is
// known or the worker fails.
//
// On failure the returned Device is non-nil, already closed, and reports
// Valid() == false; the error wraps ErrPortUnavailable,
// ErrHandshakeTimeout, ErrHandshakeMismatch or ErrTransportFault. A nil
// Device is only returned for invalid options.
func Open(ctx context.Context, port string, opts ...Option) (*Device, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	d := &Device{
		port:  port,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("port", port).Logger(),
		state: newDeviceState(),
		done:  make(chan struct{}),
	}

	d.log.Info().Str("firmware", cfg.FirmwareName).Msg("searching for device")
	go d.work()

	if err := d.awaitHandshake(ctx); err != nil {
		d.err = err
		d.lifecycle.Store(int32(StateInvalid))
		d.log.Info().Err(err).Msg("not found")
		d.Close()
		return d, err
	}

	d.valid.Store(true)
	d.lifecycle.Store(int32(StateValid))
	d.log.Info().Str("device", d.Name()).Msg("found")
	return d, nil
}

func (d *Device) work() {
	defer close(d.done)

	s := &session{port: d.port, cfg: &d.cfg, state: d.state, log: d.log}
	err := s.run()
	d.state.setStopped(err)
	if err != nil {
		d.log.Debug().Err(err).Msg("worker exited")
	}
}

func (d *Device) awaitHandshake(ctx context.Context) error {
	timer := time.NewTimer(d.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-d.state.decided:
		return d.state.handshake()
	case <-d.done:
		if err := d.state.exitError(); err != nil {
			return err
		}
		return ErrHandshakeTimeout
	case <-timer.C:
		return ErrHandshakeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Port returns the serial port path.
func (d *Device) Port() string {
	return d.port
}

// Identity returns the reported firmware, zero until the handshake.
func (d *Device) Identity() Identity {
	return d.state.currentIdentity()
}

// Name returns "<firmware>-<major>.<minor>", or the port path before the
// board identified itself.
func (d *Device) Name() string {
	if name := d.Identity().String(); name != "" {
		return name
	}
	return d.port
}

// Valid reports whether the handshake succeeded.
func (d *Device) Valid() bool {
	return d.valid.Load()
}

// Alive reports whether the device is valid and its worker still runs.
func (d *Device) Alive() bool {
	if !d.Valid() {
		return false
	}
	snap := d.state.snapshot()
	return !snap.Ended && !snap.Stopped
}

// State returns the current lifecycle state. A valid device whose worker
// exited on its own reports StateStopped.
func (d *Device) State() State {
	st := State(d.lifecycle.Load())
	if st == StateValid || st == StateRunning {
		if d.state.snapshot().Stopped {
			return StateStopped
		}
	}
	return st
}

// Err returns why the device is not usable: the handshake error for an
// invalid device, or the worker's exit error once it has stopped.
func (d *Device) Err() error {
	if d.err != nil {
		return d.err
	}
	return d.state.exitError()
}

// Snapshot returns a copy of the current state. It may be called at any
// time; before the handshake it holds zeros and after Close the last known
// values.
func (d *Device) Snapshot() Snapshot {
	return d.state.snapshot()
}

// Update publishes the cached values to the configured sink. It never
// waits for new data. It returns ErrClosed after Close and wraps
// ErrWorkerStopped when the worker died without being asked to.
func (d *Device) Update() error {
	snap := d.state.snapshot()
	if snap.Ended {
		return ErrClosed
	}
	if snap.Stopped {
		if err := d.state.exitError(); err != nil {
			return fmt.Errorf("%w: %w", ErrWorkerStopped, err)
		}
		return ErrWorkerStopped
	}
	if !snap.Ready {
		return nil
	}

	d.lifecycle.CompareAndSwap(int32(StateValid), int32(StateRunning))
	if sink := d.cfg.Sink; sink != nil {
		sink.SetAnalog(snap.Analog[:])
		sink.SetDigital(snap.Digital[:])
	}
	return nil
}

// Close stops the worker and waits for it to release the port. The wait
// is bounded by one read timeout. Close is safe to call more than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		invalid := State(d.lifecycle.Load()) == StateInvalid
		if !invalid {
			d.lifecycle.Store(int32(StateStopping))
		}

		d.state.setEnded()
		<-d.done

		if !invalid {
			d.lifecycle.Store(int32(StateStopped))
		}
		d.log.Debug().Msg("device closed")
	})
	return nil
}
