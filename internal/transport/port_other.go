//go:build !linux

package transport

var baudRates = map[int]uint32{
	1200: 1200, 2400: 2400, 4800: 4800, 9600: 9600, 19200: 19200,
	38400: 38400, 57600: 57600, 115200: 115200, 230400: 230400,
	460800: 460800, 500000: 500000, 921600: 921600,
	1000000: 1000000, 2000000: 2000000,
}

// Open falls back to the portable backend where termios ioctls are not
// available.
func Open(device string, opts ...Option) (Conn, error) {
	return OpenPortable(device, opts...)
}
