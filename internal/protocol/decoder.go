package protocol

// Event is a single decoded board-to-host message.
type Event interface {
	event()
}

// AnalogEvent carries a 14-bit reading for one analog channel.
type AnalogEvent struct {
	Channel int
	Value   int
}

// DigitalEvent carries the input state of one 8-pin port.
type DigitalEvent struct {
	Port int
	Mask uint8
}

// Pin reports the state of bit i within the port.
func (e DigitalEvent) Pin(i int) bool {
	return e.Mask&(1<<uint(i)) != 0
}

// VersionEvent is the protocol version announced by the board.
type VersionEvent struct {
	Major int
	Minor int
}

// FirmwareEvent is the firmware identity from REPORT_FIRMWARE.
type FirmwareEvent struct {
	Major int
	Minor int
	Name  string
}

// SysexEvent is any sysex frame the decoder has no dedicated type for.
type SysexEvent struct {
	Command byte
	Data    []byte
}

func (AnalogEvent) event()   {}
func (DigitalEvent) event()  {}
func (VersionEvent) event()  {}
func (FirmwareEvent) event() {}
func (SysexEvent) event()    {}

// Decoder turns an arbitrarily chunked byte stream into events. Bytes that
// do not belong to a known frame are skipped. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	cmd      byte
	need     int
	data     [2]byte
	have     int
	inSysex  bool
	overflow bool
	sysex    []byte
}

// NewDecoder returns a decoder waiting for a command byte.
func NewDecoder() *Decoder {
	return &Decoder{sysex: make([]byte, 0, 64)}
}

// Feed consumes p and returns the events completed by it.
func (d *Decoder) Feed(p []byte) []Event {
	var events []Event
	for _, b := range p {
		if ev := d.step(b); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func (d *Decoder) step(b byte) Event {
	if d.inSysex {
		switch {
		case b == EndSysex:
			return d.endSysex()
		case b&0x80 == 0:
			if len(d.sysex) >= MaxSysexSize {
				d.overflow = true
				return nil
			}
			d.sysex = append(d.sysex, b)
			return nil
		}
		// A command byte inside sysex means the frame was truncated.
		d.inSysex = false
		d.sysex = d.sysex[:0]
	}

	if b&0x80 != 0 {
		d.command(b)
		return nil
	}
	if d.need == 0 {
		return nil
	}
	d.data[d.have] = b
	d.have++
	if d.have < d.need {
		return nil
	}
	return d.complete()
}

func (d *Decoder) command(b byte) {
	d.have = 0
	d.need = 0
	d.cmd = b

	switch {
	case b == StartSysex:
		d.inSysex = true
		d.overflow = false
		d.sysex = d.sysex[:0]
	case b == ReportVersion:
		d.need = 2
	case b&0xF0 == AnalogMessage, b&0xF0 == DigitalMessage:
		d.need = 2
	}
}

func (d *Decoder) complete() Event {
	lsb, msb := int(d.data[0]), int(d.data[1])
	cmd := d.cmd
	d.have = 0
	// Analog and digital messages may be repeated without a command byte
	// (running status); version replies may not.
	if cmd == ReportVersion {
		d.need = 0
		return VersionEvent{Major: lsb, Minor: msb}
	}

	switch cmd & 0xF0 {
	case AnalogMessage:
		return AnalogEvent{Channel: int(cmd & 0x0F), Value: lsb | msb<<7}
	case DigitalMessage:
		return DigitalEvent{Port: int(cmd & 0x0F), Mask: uint8(lsb | msb<<7)}
	}
	return nil
}

func (d *Decoder) endSysex() Event {
	d.inSysex = false
	defer func() { d.sysex = d.sysex[:0] }()

	if d.overflow || len(d.sysex) == 0 {
		return nil
	}

	switch d.sysex[0] {
	case ReportFirmware:
		if len(d.sysex) < 3 {
			return nil
		}
		return FirmwareEvent{
			Major: int(d.sysex[1]),
			Minor: int(d.sysex[2]),
			Name:  decodeString(d.sysex[3:]),
		}
	default:
		data := append([]byte(nil), d.sysex[1:]...)
		return SysexEvent{Command: d.sysex[0], Data: data}
	}
}

// decodeString joins 7-bit lsb/msb pairs into a string. A trailing odd
// byte is dropped.
func decodeString(p []byte) string {
	out := make([]byte, 0, len(p)/2)
	for i := 0; i+1 < len(p); i += 2 {
		out = append(out, p[i]|p[i+1]<<7)
	}
	return string(out)
}
