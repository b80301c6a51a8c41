package firmata

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-firmata/internal/protocol"
)

const readBufferSize = 256

// A Conn whose empty reads keep returning faster than minIdleRead is not
// honoring its read timeout; after maxInstantReads in a row the session
// gives up instead of spinning.
const (
	minIdleRead     = time.Millisecond
	maxInstantReads = 64
)

// inputFlusher is implemented by transports that can drop buffered input.
type inputFlusher interface {
	FlushInput() error
}

// session owns one connection and its decoder. Only the worker goroutine
// touches conn and dec.
type session struct {
	port  string
	cfg   *Config
	state *deviceState
	log   zerolog.Logger

	conn Conn
	dec  *protocol.Decoder
}

// run opens the port, configures the board and parses input until the
// state is ended or the transport fails. The returned error is the reason
// the worker stopped; nil means a requested shutdown.
func (s *session) run() error {
	if err := s.open(); err != nil {
		return err
	}
	defer s.close()

	if !s.settle() {
		return nil
	}
	s.flush()
	if err := s.configure(); err != nil {
		return err
	}
	return s.loop()
}

func (s *session) open() error {
	conn, err := s.cfg.opener()(s.port)
	if err != nil {
		s.log.Debug().Err(err).Msg("open failed")
		return fmt.Errorf("%w: %w", ErrPortUnavailable, err)
	}
	s.conn = conn
	s.dec = protocol.NewDecoder()
	return nil
}

// settle waits out the configured delay. It returns false if shutdown was
// requested meanwhile.
func (s *session) settle() bool {
	if s.cfg.SettleDelay <= 0 {
		return true
	}
	timer := time.NewTimer(s.cfg.SettleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.state.stop:
		return false
	}
}

// flush drops whatever the board sent before configuration, typically
// bootloader output after a reset.
func (s *session) flush() {
	f, ok := s.conn.(inputFlusher)
	if !ok {
		return
	}
	if err := f.FlushInput(); err != nil {
		s.log.Debug().Err(err).Msg("flush failed")
	}
}

// configure streams all analog channels, makes every digital pin an input
// and enables digital reporting. It is sent once per session.
func (s *session) configure() error {
	var buf []byte
	for ch := 0; ch < AnalogChannels; ch++ {
		buf = append(buf, protocol.ReportAnalog(ch, true)...)
	}
	for pin := 0; pin < DigitalPins; pin++ {
		buf = append(buf, protocol.SetPinMode(pin, digitalPinMode)...)
	}
	for _, port := range digitalReportPorts {
		buf = append(buf, protocol.ReportDigital(port, true)...)
	}

	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("%w: configure: %w", ErrTransportFault, err)
	}
	s.state.setConfigured()

	// Boards that did not reset on open never volunteer their identity.
	if _, err := s.conn.Write(protocol.QueryFirmware()); err != nil {
		return fmt.Errorf("%w: query firmware: %w", ErrTransportFault, err)
	}
	s.log.Debug().Int("bytes", len(buf)).Stringer("pin_mode", digitalPinMode).Msg("configuration sent")
	return nil
}

func (s *session) loop() error {
	buf := make([]byte, readBufferSize)
	instant := 0
	for !s.state.isEnded() {
		start := time.Now()
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dispatch(s.dec.Feed(buf[:n]))
		}
		if err == nil && n == 0 && time.Since(start) < minIdleRead {
			instant++
			if instant >= maxInstantReads {
				err = io.ErrNoProgress
			}
		} else {
			instant = 0
		}
		if err != nil {
			if s.state.isEnded() {
				return nil
			}
			s.log.Error().Err(err).Msg("serial read failed")
			return fmt.Errorf("%w: %w", ErrTransportFault, err)
		}
	}
	return nil
}

func (s *session) dispatch(events []protocol.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		switch ev := ev.(type) {
		case protocol.FirmwareEvent:
			s.log.Debug().Str("name", ev.Name).Int("major", ev.Major).Int("minor", ev.Minor).Msg("firmware reported")
		case protocol.VersionEvent:
			s.log.Debug().Int("major", ev.Major).Int("minor", ev.Minor).Msg("protocol version")
		}
	}
	s.state.apply(events, s.cfg.FirmwareName)
}

func (s *session) close() {
	if err := s.conn.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close failed")
	}
}
