package transport

import "io"

// Conn is an open serial link. Read must return within the configured
// read timeout, reporting (0, nil) when no data arrived and an error
// wrapping ErrDisconnected once the device is gone.
type Conn interface {
	io.ReadWriteCloser
	FlushInput() error
}

// Backend names accepted by OpenWith.
const (
	BackendTermios  = "termios"
	BackendPortable = "portable"
)

// OpenWith opens device using the named backend. An empty name selects
// termios.
func OpenWith(backend, device string, opts ...Option) (Conn, error) {
	switch backend {
	case "", BackendTermios:
		return Open(device, opts...)
	case BackendPortable:
		return OpenPortable(device, opts...)
	default:
		return nil, ErrInvalidConfig
	}
}
