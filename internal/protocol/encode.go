package protocol

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ReportAnalog enables or disables streaming of one analog channel.
func ReportAnalog(channel int, enable bool) []byte {
	return []byte{ReportAnalogCh | byte(channel&0x0F), boolByte(enable)}
}

// ReportDigital enables or disables streaming of one 8-pin digital port.
func ReportDigital(port int, enable bool) []byte {
	return []byte{ReportDigitalP | byte(port&0x0F), boolByte(enable)}
}

// SetPinMode configures a single pin.
func SetPinMode(pin int, mode PinMode) []byte {
	return []byte{SetPinModeCmd, byte(pin & 0x7F), byte(mode)}
}

// QueryFirmware asks the board to send its REPORT_FIRMWARE sysex.
func QueryFirmware() []byte {
	return []byte{StartSysex, ReportFirmware, EndSysex}
}

// The builders below produce board-to-host frames. They are used by
// simulated boards and tests.

// Analog encodes a 14-bit ANALOG_MESSAGE.
func Analog(channel, value int) []byte {
	return []byte{AnalogMessage | byte(channel&0x0F), byte(value & 0x7F), byte((value >> 7) & 0x7F)}
}

// Digital encodes a DIGITAL_MESSAGE for one port; bit i is pin port*8+i.
func Digital(port int, mask uint8) []byte {
	return []byte{DigitalMessage | byte(port&0x0F), mask & 0x7F, (mask >> 7) & 0x01}
}

// Version encodes a REPORT_VERSION reply.
func Version(major, minor int) []byte {
	return []byte{ReportVersion, byte(major & 0x7F), byte(minor & 0x7F)}
}

// Firmware encodes a REPORT_FIRMWARE sysex carrying name as 7-bit pairs.
func Firmware(major, minor int, name string) []byte {
	out := make([]byte, 0, 5+2*len(name))
	out = append(out, StartSysex, ReportFirmware, byte(major&0x7F), byte(minor&0x7F))
	for i := 0; i < len(name); i++ {
		out = append(out, name[i]&0x7F, name[i]>>7)
	}
	return append(out, EndSysex)
}
