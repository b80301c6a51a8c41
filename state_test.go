package firmata

import (
	"errors"
	"sync"
	"testing"

	"github.com/allbin/go-firmata/internal/protocol"
)

func TestStateLastWriteWins(t *testing.T) {
	s := newDeviceState()

	s.setAnalog(2, 100)
	s.setAnalog(2, 512)
	s.setDigital(7, true)
	s.setDigital(7, false)
	s.setDigital(13, true)

	snap := s.snapshot()
	if snap.Analog[2] != 512 {
		t.Errorf("Expected analog[2] 512, got %v", snap.Analog[2])
	}
	if snap.Digital[7] {
		t.Error("Expected digital[7] false")
	}
	if !snap.Digital[13] {
		t.Error("Expected digital[13] true")
	}
}

func TestStateIgnoresOutOfRange(t *testing.T) {
	s := newDeviceState()

	s.setAnalog(-1, 1)
	s.setAnalog(AnalogChannels, 1)
	s.setDigital(DigitalPins, true)
	s.setDigital(-3, true)

	if snap := s.snapshot(); snap != (Snapshot{}) {
		t.Errorf("Expected zero snapshot, got %+v", snap)
	}
}

func TestStateDigitalFanOut(t *testing.T) {
	s := newDeviceState()

	// Port 1 holds pins 8-15; bits 6 and 7 fall outside the 14 pins.
	s.apply([]protocol.Event{
		protocol.DigitalEvent{Port: 0, Mask: 0b10000001},
		protocol.DigitalEvent{Port: 1, Mask: 0b11100010},
	}, DefaultFirmwareName)

	want := [DigitalPins]bool{
		0: true, 7: true,
		9: true, 13: true,
	}
	if got := s.snapshot().Digital; got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestStateIdentify(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		reported   string
		wantReady  bool
		wantErr    error
	}{
		{"match", true, DefaultFirmwareName, true, nil},
		{"match before configuration", false, DefaultFirmwareName, false, nil},
		{"mismatch", true, "ConfigurableFirmata.ino", false, ErrHandshakeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newDeviceState()
			if tt.configured {
				s.setConfigured()
			}
			s.apply([]protocol.Event{
				protocol.FirmwareEvent{Major: 2, Minor: 5, Name: tt.reported},
			}, DefaultFirmwareName)

			select {
			case <-s.decided:
			default:
				t.Fatal("Expected decided to be closed")
			}
			if err := s.handshake(); !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Expected handshake error %v, got %v", tt.wantErr, err)
			}
			snap := s.snapshot()
			if snap.Ready != tt.wantReady {
				t.Errorf("Expected Ready %v, got %v", tt.wantReady, snap.Ready)
			}
			if snap.Identity.Name != tt.reported {
				t.Errorf("Expected identity %q, got %q", tt.reported, snap.Identity.Name)
			}
		})
	}
}

func TestStateIdentifyOnlyOnce(t *testing.T) {
	s := newDeviceState()
	s.setConfigured()

	s.apply([]protocol.Event{protocol.FirmwareEvent{Major: 2, Minor: 5, Name: DefaultFirmwareName}}, DefaultFirmwareName)
	s.apply([]protocol.Event{protocol.FirmwareEvent{Major: 9, Minor: 9, Name: "Other"}}, DefaultFirmwareName)

	snap := s.snapshot()
	if !snap.Ready {
		t.Error("Expected Ready to stay true")
	}
	if got := snap.Identity.String(); got != "StandardFirmata.ino-2.5" {
		t.Errorf("Expected first identity kept, got %q", got)
	}
}

func TestStateSetEnded(t *testing.T) {
	s := newDeviceState()

	if !s.setEnded() {
		t.Error("Expected first setEnded to report the transition")
	}
	if s.setEnded() {
		t.Error("Expected second setEnded to be a no-op")
	}
	select {
	case <-s.stop:
	default:
		t.Error("Expected stop channel closed")
	}
	if !s.isEnded() {
		t.Error("Expected isEnded")
	}
}

// A reader racing a writer must never see half of a batch.
func TestStateSnapshotConsistent(t *testing.T) {
	s := newDeviceState()

	batch := func(v int) []protocol.Event {
		events := make([]protocol.Event, 0, AnalogChannels)
		for ch := 0; ch < AnalogChannels; ch++ {
			events = append(events, protocol.AnalogEvent{Channel: ch, Value: v})
		}
		return events
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := 1; ; v++ {
			select {
			case <-done:
				return
			default:
			}
			s.apply(batch(v%1024), DefaultFirmwareName)
		}
	}()

	for n := 0; n < 2000; n++ {
		snap := s.snapshot()
		for ch := 1; ch < AnalogChannels; ch++ {
			if snap.Analog[ch] != snap.Analog[0] {
				close(done)
				wg.Wait()
				t.Fatalf("Torn snapshot: %v", snap.Analog)
			}
		}
	}
	close(done)
	wg.Wait()
}

func TestIdentityString(t *testing.T) {
	if got := (Identity{}).String(); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
	id := Identity{Name: "StandardFirmata.ino", Major: 2, Minor: 5}
	if got := id.String(); got != "StandardFirmata.ino-2.5" {
		t.Errorf("Expected StandardFirmata.ino-2.5, got %q", got)
	}
}
