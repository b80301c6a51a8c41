package firmata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/allbin/go-firmata/internal/protocol"
)

const testGrace = 200 * time.Millisecond

func openFake(t *testing.T, b *fakeBoard, opts ...Option) (*Device, error) {
	t.Helper()
	opts = append([]Option{WithOpener(openerFor(b)), WithGracePeriod(testGrace)}, opts...)
	return Open(context.Background(), "/dev/fake0", opts...)
}

func TestOpenValidDevice(t *testing.T) {
	b := standardBoard()
	sink := &recordingSink{}

	dev, err := openFake(t, b, WithSink(sink))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()

	if !dev.Valid() {
		t.Error("Expected device to be valid")
	}
	if dev.State() != StateValid {
		t.Errorf("Expected StateValid, got %v", dev.State())
	}
	if got := dev.Name(); got != "StandardFirmata.ino-2.5" {
		t.Errorf("Expected name StandardFirmata.ino-2.5, got %q", got)
	}

	// No data arrived yet, so the first publish carries zeros.
	if err := dev.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	calls, analog, digital := sink.last()
	if calls != 1 {
		t.Fatalf("Expected 1 sink call, got %d", calls)
	}
	if len(analog) != AnalogChannels || len(digital) != DigitalPins {
		t.Fatalf("Expected %d/%d values, got %d/%d", AnalogChannels, DigitalPins, len(analog), len(digital))
	}
	for i, v := range analog {
		if v != 0 {
			t.Errorf("Expected analog[%d] 0, got %v", i, v)
		}
	}
	if dev.State() != StateRunning {
		t.Errorf("Expected StateRunning after Update, got %v", dev.State())
	}
}

func TestOpenSendsConfiguration(t *testing.T) {
	b := standardBoard()

	dev, err := openFake(t, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()

	sent := b.sent()
	for ch := 0; ch < AnalogChannels; ch++ {
		if !bytes.Contains(sent, protocol.ReportAnalog(ch, true)) {
			t.Errorf("Expected REPORT_ANALOG for channel %d", ch)
		}
	}
	for pin := 0; pin < DigitalPins; pin++ {
		if !bytes.Contains(sent, protocol.SetPinMode(pin, protocol.PinModeInput)) {
			t.Errorf("Expected SET_PIN_MODE input for pin %d", pin)
		}
	}
	for _, port := range []int{0, 1} {
		if !bytes.Contains(sent, protocol.ReportDigital(port, true)) {
			t.Errorf("Expected REPORT_DIGITAL for port %d", port)
		}
	}
}

func TestUpdatePublishesLatestValues(t *testing.T) {
	b := standardBoard()
	sink := &recordingSink{}

	dev, err := openFake(t, b, WithSink(sink))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()

	b.send(
		protocol.Analog(0, 100),
		protocol.Analog(0, 1023),
		protocol.Analog(5, 7),
		protocol.Digital(1, 0b00100000),
	)
	ok := eventually(func() bool {
		snap := dev.Snapshot()
		return snap.Analog[0] == 1023 && snap.Analog[5] == 7 && snap.Digital[13]
	})
	if !ok {
		t.Fatalf("Values never arrived: %+v", dev.Snapshot())
	}

	if err := dev.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	_, analog, digital := sink.last()
	if analog[0] != 1023 || analog[5] != 7 {
		t.Errorf("Expected analog 1023/7, got %v", analog)
	}
	if !digital[13] {
		t.Errorf("Expected digital[13] true, got %v", digital)
	}
}

func TestOpenFirmwareMismatch(t *testing.T) {
	b := newFakeBoard()
	b.firmware = protocol.Firmware(2, 5, "ConfigurableFirmata.ino")

	start := time.Now()
	dev, err := openFake(t, b, WithGracePeriod(5*time.Second))
	if !errors.Is(err, ErrHandshakeMismatch) {
		t.Fatalf("Expected ErrHandshakeMismatch, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected Open to return before the grace period")
	}
	if dev == nil {
		t.Fatal("Expected a non-nil device on handshake failure")
	}
	if dev.Valid() {
		t.Error("Expected device to be invalid")
	}
	if dev.State() != StateInvalid {
		t.Errorf("Expected StateInvalid, got %v", dev.State())
	}
	if !b.isClosed() {
		t.Error("Expected port released after failed handshake")
	}
}

func TestOpenSilentPortTimesOut(t *testing.T) {
	b := newFakeBoard()

	start := time.Now()
	dev, err := openFake(t, b)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("Expected ErrHandshakeTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < testGrace {
		t.Errorf("Expected to wait the grace period, waited %v", elapsed)
	}
	if dev.Valid() {
		t.Error("Expected device to be invalid")
	}
	if !b.isClosed() {
		t.Error("Expected worker joined and port closed")
	}
	if !dev.Snapshot().Stopped {
		t.Error("Expected worker stopped")
	}
}

func TestOpenPortUnavailable(t *testing.T) {
	openErr := errors.New("no such device")
	dev, err := Open(context.Background(), "/dev/missing",
		WithOpener(func(string) (Conn, error) { return nil, openErr }),
		WithGracePeriod(5*time.Second),
	)
	if !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("Expected ErrPortUnavailable, got %v", err)
	}
	if !errors.Is(err, openErr) {
		t.Errorf("Expected underlying error wrapped, got %v", err)
	}
	if dev == nil || dev.Valid() {
		t.Error("Expected a non-nil invalid device")
	}
}

func TestOpenInvalidOption(t *testing.T) {
	dev, err := Open(context.Background(), "/dev/fake0", WithGracePeriod(0))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if dev != nil {
		t.Error("Expected nil device for invalid options")
	}
}

func TestOpenContextCanceled(t *testing.T) {
	b := newFakeBoard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev, err := Open(ctx, "/dev/fake0", WithOpener(openerFor(b)), WithGracePeriod(5*time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if dev.Valid() {
		t.Error("Expected device to be invalid")
	}
}

func TestCloseJoinsWorker(t *testing.T) {
	b := standardBoard()

	dev, err := openFake(t, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		dev.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	if !b.isClosed() {
		t.Error("Expected port closed")
	}
	if dev.State() != StateStopped {
		t.Errorf("Expected StateStopped, got %v", dev.State())
	}
	if err := dev.Update(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}

func TestCloseKeepsLastValues(t *testing.T) {
	b := standardBoard()

	dev, err := openFake(t, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b.send(protocol.Analog(3, 321))
	if !eventually(func() bool { return dev.Snapshot().Analog[3] == 321 }) {
		t.Fatal("Value never arrived")
	}
	dev.Close()

	if got := dev.Snapshot().Analog[3]; got != 321 {
		t.Errorf("Expected last value 321 after Close, got %v", got)
	}
}

func TestTransportFaultStopsWorker(t *testing.T) {
	b := standardBoard()

	dev, err := openFake(t, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()

	b.fail(io.ErrUnexpectedEOF)
	if !eventually(func() bool { return dev.State() == StateStopped }) {
		t.Fatalf("Expected StateStopped, got %v", dev.State())
	}

	err = dev.Update()
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Expected ErrWorkerStopped, got %v", err)
	}
	if !errors.Is(err, ErrTransportFault) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected transport cause wrapped, got %v", err)
	}
	if dev.Alive() {
		t.Error("Expected device not alive")
	}
}

func TestTransportStopsWorker(t *testing.T) {
	tests := []struct {
		name  string
		cut   func(b *fakeBoard)
		cause error
	}{
		{"hangup reported as EOF", func(b *fakeBoard) { b.fail(io.EOF) }, io.EOF},
		{"reads return instantly with no data", (*fakeBoard).stall, io.ErrNoProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := standardBoard()
			dev, err := openFake(t, b)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer dev.Close()

			tt.cut(b)
			if !eventually(func() bool { return dev.State() == StateStopped }) {
				t.Fatalf("Expected StateStopped, got %v", dev.State())
			}
			if dev.Alive() {
				t.Error("Expected device not alive")
			}
			if err := dev.Err(); !errors.Is(err, ErrTransportFault) || !errors.Is(err, tt.cause) {
				t.Errorf("Expected ErrTransportFault wrapping %v, got %v", tt.cause, err)
			}
			if !b.isClosed() {
				t.Error("Expected port released")
			}
		})
	}
}

func TestFlushBeforeConfiguration(t *testing.T) {
	b := standardBoard()
	// Left over from before the session, e.g. bootloader chatter.
	b.send(protocol.Analog(0, 999))

	dev, err := openFake(t, b, WithSettleDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()

	if n := b.flushCount(); n != 1 {
		t.Errorf("Expected 1 flush, got %d", n)
	}
	if got := dev.Snapshot().Analog[0]; got != 0 {
		t.Errorf("Expected stale input dropped, got analog[0] %v", got)
	}
}

func TestSettleDelayInterruptedByClose(t *testing.T) {
	b := standardBoard()
	cfg, err := buildConfig([]Option{WithOpener(openerFor(b)), WithSettleDelay(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	d := &Device{port: "/dev/fake0", cfg: cfg, log: cfg.Logger, state: newDeviceState(), done: make(chan struct{})}
	go d.work()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on settle delay")
	}
	if len(b.sent()) != 0 {
		t.Error("Expected nothing sent before the settle delay elapsed")
	}
	if n := b.flushCount(); n != 0 {
		t.Errorf("Expected no flush before the settle delay elapsed, got %d", n)
	}
	if err := d.Err(); err != nil {
		t.Errorf("Expected clean exit, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "starting"},
		{StateValid, "valid"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateInvalid, "invalid"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
