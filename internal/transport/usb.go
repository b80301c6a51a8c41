package transport

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// detailedPorts is swapped out by tests.
var detailedPorts = enumerator.GetDetailedPortsList

// USBLister lists USB serial ports through go.bug.st/serial/enumerator,
// optionally restricted to a set of vendor IDs (hex, case-insensitive).
type USBLister struct {
	VendorIDs []string
}

// Well-known vendor IDs of boards that commonly run Firmata.
const (
	VendorArduino  = "2341"
	VendorWCH      = "1a86" // CH340 clones
	VendorFTDI     = "0403"
	VendorSilabs   = "10c4"
	VendorAdafruit = "239a"
)

// ListPorts returns the names of matching USB ports in sorted order.
func (l USBLister) ListPorts() ([]string, error) {
	infos, err := l.Details()
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(infos))
	for _, info := range infos {
		ports = append(ports, info.Path)
	}
	return ports, nil
}

// Details returns enumerator metadata for matching USB ports.
func (l USBLister) Details() ([]PortInfo, error) {
	list, err := detailedPorts()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	var infos []PortInfo
	for _, p := range list {
		if !p.IsUSB || !l.wants(p.VID) {
			continue
		}
		infos = append(infos, PortInfo{
			Name:         baseName(p.Name),
			Path:         p.Name,
			Description:  portDescription(baseName(p.Name)),
			IsUSB:        true,
			VendorID:     strings.ToLower(p.VID),
			ProductID:    strings.ToLower(p.PID),
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (l USBLister) wants(vid string) bool {
	if len(l.VendorIDs) == 0 {
		return true
	}
	for _, want := range l.VendorIDs {
		if strings.EqualFold(want, vid) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
