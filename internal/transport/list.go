package transport

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Device name patterns for ports a microcontroller board can show up on.
var devicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters (CH340, FTDI)
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM (Uno R3, Leonardo, Due)
	regexp.MustCompile(`^ttyS\d+$`),
	regexp.MustCompile(`^ttyAMA\d+$`),
	regexp.MustCompile(`^ttymxc\d+$`),
	regexp.MustCompile(`^ttyO\d+$`),
	regexp.MustCompile(`^ttySAC\d+$`),
	regexp.MustCompile(`^ttyTHS\d+$`),
	regexp.MustCompile(`^cu\.usb(modem|serial).+$`), // macOS
}

// DevLister finds serial ports by scanning a device directory.
type DevLister struct {
	Dir     string // defaults to /dev
	USBOnly bool   // only ttyUSB*/ttyACM*/cu.usb*
}

// ListPorts returns the ports under the default /dev directory.
func ListPorts() ([]string, error) {
	return DevLister{}.ListPorts()
}

// ListPorts returns matching character devices in sorted order.
func (l DevLister) ListPorts() ([]string, error) {
	dir := l.Dir
	if dir == "" {
		dir = "/dev"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if !matchesDevice(name) {
			continue
		}
		if l.USBOnly && !isUSBName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if isCharacterDevice(path) {
			ports = append(ports, path)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

func matchesDevice(name string) bool {
	for _, pattern := range devicePatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

func isUSBName(name string) bool {
	return strings.HasPrefix(name, "ttyUSB") ||
		strings.HasPrefix(name, "ttyACM") ||
		strings.HasPrefix(name, "cu.usb")
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial port and, for USB devices, the board behind it.
type PortInfo struct {
	Name            string
	Path            string
	Description     string
	IsUSB           bool
	VendorID        string
	ProductID       string
	SerialNumber    string
	Manufacturer    string
	Product         string
	InterfaceNumber string
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}
	return portInfo(portPath, "/sys"), nil
}

func portInfo(portPath, sysRoot string) *PortInfo {
	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: portDescription(name),
		IsUSB:       isUSBName(name),
	}
	if info.IsUSB {
		enrichUSBInfo(info, sysRoot)
	}
	return info
}

// portDescription provides human-readable descriptions for different port types
func portDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Adapter"
	case strings.HasPrefix(name, "ttyACM"), strings.HasPrefix(name, "cu.usbmodem"):
		return "USB CDC/ACM Board"
	case strings.HasPrefix(name, "cu.usbserial"):
		return "USB Serial Adapter"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM UART"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX UART"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung UART"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra UART"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP UART"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo follows /sys/class/tty/<name>/device up to the USB device
// directory (the first ancestor holding idVendor) and reads its attributes.
// Missing attributes leave fields empty.
func enrichUSBInfo(info *PortInfo, sysRoot string) {
	link := filepath.Join(sysRoot, "class", "tty", info.Name, "device")
	dir, err := filepath.EvalSymlinks(link)
	if err != nil {
		return
	}

	for n := 0; n < 4; n++ {
		if info.InterfaceNumber == "" {
			info.InterfaceNumber = readSysfsFile(filepath.Join(dir, "bInterfaceNumber"))
		}
		if vid := readSysfsFile(filepath.Join(dir, "idVendor")); vid != "" {
			info.VendorID = vid
			info.ProductID = readSysfsFile(filepath.Join(dir, "idProduct"))
			info.SerialNumber = readSysfsFile(filepath.Join(dir, "serial"))
			info.Manufacturer = readSysfsFile(filepath.Join(dir, "manufacturer"))
			info.Product = readSysfsFile(filepath.Join(dir, "product"))
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
