// Package firmata reads pin state from boards running StandardFirmata over
// a serial port.
//
// Each Device owns one port and one background worker. The worker
// configures the board to stream its six analog channels and fourteen
// digital pins, then decodes the incoming Firmata stream into a shared
// snapshot. Readers never touch the port.
//
// # Basic Usage
//
//	dev, err := firmata.Open(ctx, "/dev/ttyACM0",
//	    firmata.WithGracePeriod(3*time.Second),
//	    firmata.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err) // dev is already closed
//	}
//	defer dev.Close()
//
//	snap := dev.Snapshot()
//	fmt.Println(snap.Analog[0], snap.Digital[13])
//
// Open returns once the board reported its firmware or the grace period
// ran out. A board reporting a different firmware name is rejected with
// ErrHandshakeMismatch.
//
// # Publishing
//
// Update copies the cached values to the configured Sink once per call. It
// is meant to be called from a polling loop and never blocks on I/O:
//
//	dev, _ := firmata.Open(ctx, port, firmata.WithSink(firmata.SinkFuncs{
//	    Analog:  func(v []float64) { ... },
//	    Digital: func(v []bool) { ... },
//	}))
//	for range ticker.C {
//	    if err := dev.Update(); errors.Is(err, firmata.ErrWorkerStopped) {
//	        break
//	    }
//	}
//
// # Discovery
//
// A Detector probes candidate ports and claims the ones that hold a valid
// board. Repeated scans never report a claimed port twice:
//
//	det := firmata.NewDetector(firmata.ListerFunc(listPorts))
//	defer det.Close()
//	devices, err := det.Scan(ctx)
//
// # Errors
//
// Errors wrap the sentinel values in errors.go and can be checked with
// errors.Is. Transport failures additionally wrap the underlying
// transport error.
package firmata
