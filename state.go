package firmata

import (
	"fmt"
	"sync"

	"github.com/allbin/go-firmata/internal/protocol"
)

// Identity is the firmware a board reported during the handshake.
type Identity struct {
	Name  string
	Major int
	Minor int
}

// String renders the identity as "<name>-<major>.<minor>".
func (id Identity) String() string {
	if id.Name == "" {
		return ""
	}
	return fmt.Sprintf("%s-%d.%d", id.Name, id.Major, id.Minor)
}

// Snapshot is a consistent copy of a device's pin state.
type Snapshot struct {
	Analog   [AnalogChannels]float64
	Digital  [DigitalPins]bool
	Identity Identity
	Ready    bool // configured and identity accepted
	Ended    bool // Close was called
	Stopped  bool // the worker has exited, for any reason
}

// deviceState is shared between the worker (the only writer of pin values)
// and any number of readers. One mutex guards the whole record.
type deviceState struct {
	mu sync.Mutex

	analog   [AnalogChannels]float64
	digital  [DigitalPins]bool
	identity Identity

	configured bool
	ready      bool
	ended      bool
	stopped    bool

	decidedFlag  bool
	handshakeErr error
	exitErr      error

	stop    chan struct{} // closed with ended
	decided chan struct{} // closed once the identity was accepted or rejected
}

func newDeviceState() *deviceState {
	return &deviceState{
		stop:    make(chan struct{}),
		decided: make(chan struct{}),
	}
}

func (s *deviceState) setAnalog(channel int, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAnalogLocked(channel, value)
}

func (s *deviceState) setDigital(pin int, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDigitalLocked(pin, value)
}

func (s *deviceState) setAnalogLocked(channel int, value float64) {
	if channel >= 0 && channel < AnalogChannels {
		s.analog[channel] = value
	}
}

func (s *deviceState) setDigitalLocked(pin int, value bool) {
	if pin >= 0 && pin < DigitalPins {
		s.digital[pin] = value
	}
}

// apply writes a batch of decoded events in one critical section, so a
// snapshot sees either none or all of them.
func (s *deviceState) apply(events []protocol.Event, firmware string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		switch ev := ev.(type) {
		case protocol.AnalogEvent:
			s.setAnalogLocked(ev.Channel, float64(ev.Value))
		case protocol.DigitalEvent:
			base := ev.Port * protocol.PinsPerPort
			for i := 0; i < protocol.PinsPerPort; i++ {
				s.setDigitalLocked(base+i, ev.Pin(i))
			}
		case protocol.FirmwareEvent:
			s.identifyLocked(Identity{Name: ev.Name, Major: ev.Major, Minor: ev.Minor}, firmware)
		}
	}
}

// identifyLocked records the first identity report. Later reports, sent
// when a board resets, do not change the outcome.
func (s *deviceState) identifyLocked(id Identity, want string) {
	if s.decidedFlag {
		return
	}
	s.identity = id
	if id.Name == want {
		s.ready = s.configured
	} else {
		s.handshakeErr = fmt.Errorf("%w: got %q, want %q", ErrHandshakeMismatch, id.Name, want)
	}
	s.decidedFlag = true
	close(s.decided)
}

func (s *deviceState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Analog:   s.analog,
		Digital:  s.digital,
		Identity: s.identity,
		Ready:    s.ready,
		Ended:    s.ended,
		Stopped:  s.stopped,
	}
}

func (s *deviceState) setConfigured() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = true
}

// setEnded requests shutdown. It reports whether this call made the
// transition.
func (s *deviceState) setEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return false
	}
	s.ended = true
	close(s.stop)
	return true
}

func (s *deviceState) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// setStopped is called by the worker on every exit path.
func (s *deviceState) setStopped(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.exitErr = err
}

func (s *deviceState) handshake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakeErr
}

func (s *deviceState) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *deviceState) currentIdentity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
