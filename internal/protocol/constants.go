package protocol

// Command bytes. Channel/port commands carry the channel in the low nibble.
const (
	AnalogMessage  byte = 0xE0
	DigitalMessage byte = 0x90
	ReportAnalogCh byte = 0xC0
	ReportDigitalP byte = 0xD0
	SetPinModeCmd  byte = 0xF4
	ReportVersion  byte = 0xF9
	StartSysex     byte = 0xF0
	EndSysex       byte = 0xF7
)

// Sysex sub-commands
const (
	ReportFirmware byte = 0x79
	StringData     byte = 0x71
)

// PinMode is the mode argument of SET_PIN_MODE.
type PinMode byte

// PinModeInput is the only mode this driver sets; every pin is read.
const PinModeInput PinMode = 0x00

func (m PinMode) String() string {
	if m == PinModeInput {
		return "input"
	}
	return "unknown"
}

// PinsPerPort is the number of digital pins carried by one DIGITAL_MESSAGE.
const PinsPerPort = 8

// MaxSysexSize bounds the payload kept for a single sysex frame.
const MaxSysexSize = 512
