package firmata

// Sink receives the values published by Device.Update. Slices are fresh
// copies owned by the sink.
type Sink interface {
	SetAnalog(values []float64)
	SetDigital(values []bool)
}

// SinkFuncs adapts two functions to Sink. Either may be nil.
type SinkFuncs struct {
	Analog  func(values []float64)
	Digital func(values []bool)
}

func (f SinkFuncs) SetAnalog(values []float64) {
	if f.Analog != nil {
		f.Analog(values)
	}
}

func (f SinkFuncs) SetDigital(values []bool) {
	if f.Digital != nil {
		f.Digital(values)
	}
}
