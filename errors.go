package firmata

import "errors"

// Predefined error types. Handshake and transport failures are reported
// wrapped, so check them with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid device configuration")

	// Open failures
	ErrPortUnavailable   = errors.New("serial port unavailable")
	ErrHandshakeTimeout  = errors.New("no firmware identity within grace period")
	ErrHandshakeMismatch = errors.New("unexpected firmware")

	// Run-time failures
	ErrTransportFault = errors.New("serial transport fault")
	ErrWorkerStopped  = errors.New("device worker stopped")
	ErrClosed         = errors.New("device closed")
)
