package firmata

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/allbin/go-firmata/internal/protocol"
)

const fakeReadTimeout = 5 * time.Millisecond

// fakeBoard is an in-memory Conn. Reads block for at most fakeReadTimeout,
// like a termios port waiting in poll.
type fakeBoard struct {
	in chan []byte

	mu       sync.Mutex
	pending  []byte
	written  bytes.Buffer
	closed   bool
	closes   int
	flushes  int
	readErr  error
	instant  bool   // reads return (0, nil) without waiting
	firmware []byte // sent in reply to a firmware query; nil stays silent
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{in: make(chan []byte, 64)}
}

// standardBoard answers firmware queries like StandardFirmata 2.5.
func standardBoard() *fakeBoard {
	b := newFakeBoard()
	b.firmware = protocol.Firmware(2, 5, DefaultFirmwareName)
	return b
}

func (b *fakeBoard) send(p ...[]byte) {
	for _, frame := range p {
		b.in <- frame
	}
}

func (b *fakeBoard) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

// stall makes every later read return at once with no data, like a tty
// that hung up under VMIN=0.
func (b *fakeBoard) stall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instant = true
}

func (b *fakeBoard) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if b.readErr != nil {
		err := b.readErr
		b.mu.Unlock()
		return 0, err
	}
	if b.instant {
		b.mu.Unlock()
		return 0, nil
	}
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		b.mu.Unlock()
		return n, nil
	}
	b.mu.Unlock()

	select {
	case frame := <-b.in:
		n := copy(p, frame)
		if n < len(frame) {
			b.mu.Lock()
			b.pending = append(b.pending, frame[n:]...)
			b.mu.Unlock()
		}
		return n, nil
	case <-time.After(fakeReadTimeout):
		return 0, nil
	}
}

func (b *fakeBoard) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.written.Write(p)
	if b.firmware != nil && bytes.Contains(p, protocol.QueryFirmware()) {
		b.in <- b.firmware
	}
	return len(p), nil
}

// FlushInput drops everything queued for reading.
func (b *fakeBoard) FlushInput() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushes++
	b.pending = nil
	for {
		select {
		case <-b.in:
		default:
			return nil
		}
	}
}

func (b *fakeBoard) flushCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushes
}

func (b *fakeBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	if b.closed {
		return errors.New("already closed")
	}
	b.closed = true
	return nil
}

func (b *fakeBoard) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBoard) sent() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.written.Bytes())
}

func openerFor(b *fakeBoard) Opener {
	return func(string) (Conn, error) { return b, nil }
}

// recordingSink keeps the last values it was given.
type recordingSink struct {
	mu      sync.Mutex
	calls   int
	analog  []float64
	digital []bool
}

func (s *recordingSink) SetAnalog(values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.analog = values
}

func (s *recordingSink) SetDigital(values []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digital = values
}

func (s *recordingSink) last() (int, []float64, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.analog, s.digital
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
