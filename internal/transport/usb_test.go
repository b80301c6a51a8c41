package transport

import (
	"errors"
	"reflect"
	"testing"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func withDetailedPorts(t *testing.T, list []*enumerator.PortDetails, err error) {
	t.Helper()
	orig := detailedPorts
	detailedPorts = func() ([]*enumerator.PortDetails, error) { return list, err }
	t.Cleanup(func() { detailedPorts = orig })
}

func TestUSBListerFiltersVendors(t *testing.T) {
	withDetailedPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", SerialNumber: "X1", Product: "Arduino Uno"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "16C0", PID: "0483"},
	}, nil)

	ports, err := USBLister{VendorIDs: []string{VendorArduino, VendorWCH}}.ListPorts()
	if err != nil {
		t.Fatalf("ListPorts failed: %v", err)
	}
	want := []string{"/dev/ttyACM0", "/dev/ttyUSB0"}
	if !reflect.DeepEqual(ports, want) {
		t.Errorf("ListPorts() = %v, want %v", ports, want)
	}

	all, err := USBLister{}.Details()
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 USB ports, got %d", len(all))
	}
	if all[0].Name != "ttyACM0" || all[0].Product != "Arduino Uno" || all[0].VendorID != "2341" {
		t.Errorf("unexpected first entry %+v", all[0])
	}
	if all[2].VendorID != "1a86" {
		t.Errorf("VendorID not lower-cased: %q", all[2].VendorID)
	}
}

func TestUSBListerError(t *testing.T) {
	boom := errors.New("boom")
	withDetailedPorts(t, nil, boom)

	if _, err := (USBLister{}).ListPorts(); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped enumerator error, got %v", err)
	}
}

func TestOpenPortableUsesMode(t *testing.T) {
	var gotName string
	var gotMode serial.Mode
	refused := errors.New("refused")
	orig := openPortable
	openPortable = func(name string, mode *serial.Mode) (serial.Port, error) {
		gotName, gotMode = name, *mode
		return nil, refused
	}
	t.Cleanup(func() { openPortable = orig })

	_, err := OpenPortable("/dev/ttyACM3", WithBaudRate(115200))
	if !errors.Is(err, refused) {
		t.Errorf("Expected wrapped open error, got %v", err)
	}
	if gotName != "/dev/ttyACM3" {
		t.Errorf("opened %q", gotName)
	}
	if gotMode.BaudRate != 115200 || gotMode.DataBits != 8 || gotMode.StopBits != serial.OneStopBit {
		t.Errorf("unexpected mode %+v", gotMode)
	}
	if gotMode.InitialStatusBits == nil || !gotMode.InitialStatusBits.DTR {
		t.Error("Expected DTR asserted on open without hangup reset")
	}
}

func TestOpenPortableInvalidOption(t *testing.T) {
	if _, err := OpenPortable("/dev/ttyACM3", WithReadTimeout(50)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
