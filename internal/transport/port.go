//go:build linux

package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// port is a raw termios serial port.
type port struct {
	mu     sync.RWMutex
	fd     int
	path   string
	config Config
	closed bool
}

// Ensure port implements Conn interface at compile time
var _ Conn = (*port)(nil)

var baudRates = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	2000000: unix.B2000000,
}

// Open opens a serial device in raw 8N1 mode using termios directly.
func Open(device string, opts ...Option) (Conn, error) {
	config, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	// O_NONBLOCK keeps open from hanging on modem lines; cleared below.
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, openError(device, err)
	}

	if config.Exclusive {
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			unix.Close(fd)
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s", ErrDeviceInUse, device)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", device, err)
		}
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to clear O_NONBLOCK on %s: %w", device, err)
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, err
	}

	if config.HangupReset {
		if err := pulseDTR(fd); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to reset %s: %w", device, err)
		}
	}

	return &port{fd: fd, path: device, config: config}, nil
}

func openError(device string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, device)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %s", ErrDeviceInUse, device)
	}
	return fmt.Errorf("failed to open %s: %w", device, err)
}

// configurePort puts the line into raw mode. VMIN and VTIME are both zero:
// Read waits in poll, so the read syscall itself never blocks.
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	speed, ok := baudRates[config.BaudRate]
	if !ok {
		return ErrInvalidBaudRate
	}

	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0
	termios.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL | unix.HUPCL | speed
	termios.Ispeed = speed
	termios.Ospeed = speed
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}

func setDTR(fd int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR)
}

func pulseDTR(fd int) error {
	if err := setDTR(fd, false); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return setDTR(fd, true)
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return unix.Close(p.fd)
}

// Read waits up to the read timeout for input and returns (0, nil) if none
// arrived. A hung-up line reports ErrDisconnected, which wraps io.EOF.
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, pollTimeout(p.config.ReadTimeout))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll %s: %w", p.path, err)
		}
		if n == 0 {
			return 0, nil
		}
		break
	}

	if rev := fds[0].Revents; rev&unix.POLLIN == 0 && rev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return 0, p.disconnected()
	}

	for {
		n, err := unix.Read(p.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		// A readable tty that yields nothing, or EIO, means the other end is gone.
		if (err == nil && n == 0) || errors.Is(err, unix.EIO) {
			return 0, p.disconnected()
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (p *port) disconnected() error {
	return fmt.Errorf("%w: %s: %w", ErrDisconnected, p.path, io.EOF)
}

func pollTimeout(d time.Duration) int {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	return int(ms)
}

// Write writes data to the serial port
func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	written := 0
	for written < len(data) {
		n, err := unix.Write(p.fd, data[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

func (p *port) String() string {
	return p.path
}
