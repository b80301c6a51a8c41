package transport

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	"go.bug.st/serial"
	"go.uber.org/atomic"
)

// openPortable is swapped out by tests.
var openPortable = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

type portablePort struct {
	serial.Port
	path   string
	closed atomic.Bool
}

// OpenPortable opens device through go.bug.st/serial. It is slower to
// configure than termios but works on every platform that library supports.
func OpenPortable(device string, opts ...Option) (Conn, error) {
	config, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if !config.HangupReset {
		mode.InitialStatusBits = &serial.ModemOutputBits{DTR: true, RTS: true}
	}

	p, err := openPortable(device, mode)
	if err != nil {
		return nil, portableError(device, err)
	}

	if err := p.SetReadTimeout(config.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", device, err)
	}

	if config.HangupReset {
		if err := p.SetDTR(false); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to reset %s: %w", device, err)
		}
		time.Sleep(100 * time.Millisecond)
		if err := p.SetDTR(true); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to reset %s: %w", device, err)
		}
	}

	return &portablePort{Port: p, path: device}, nil
}

func portableError(device string, err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		switch perr.Code() {
		case serial.PortNotFound:
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
		case serial.PortBusy:
			return fmt.Errorf("%w: %s", ErrDeviceInUse, device)
		case serial.PermissionDenied:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, device)
		case serial.InvalidSpeed:
			return ErrInvalidBaudRate
		}
	}
	return fmt.Errorf("failed to open %s: %w", device, err)
}

// Read reports an unplugged device as ErrDisconnected, like the termios
// backend. The library signals both a local Close and a hangup as
// PortClosed; only the first one is ours.
func (p *portablePort) Read(buf []byte) (int, error) {
	n, err := p.Port.Read(buf)
	if err == nil {
		return n, nil
	}
	if p.closed.Load() {
		return n, ErrPortClosed
	}
	var perr *serial.PortError
	if (errors.As(err, &perr) && perr.Code() == serial.PortClosed) || errors.Is(err, syscall.EIO) {
		return n, fmt.Errorf("%w: %s: %w", ErrDisconnected, p.path, io.EOF)
	}
	return n, err
}

func (p *portablePort) Close() error {
	p.closed.Store(true)
	return p.Port.Close()
}

func (p *portablePort) FlushInput() error {
	return p.ResetInputBuffer()
}

func (p *portablePort) String() string {
	return p.path
}
