package firmata

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Lister enumerates candidate serial port paths.
type Lister interface {
	ListPorts() ([]string, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func() ([]string, error)

func (f ListerFunc) ListPorts() ([]string, error) { return f() }

// Scanner finds newly attached devices.
type Scanner interface {
	Scan(ctx context.Context) ([]*Device, error)
}

const defaultScanConcurrency = 4

// Detector probes serial ports for Firmata boards. A port that produced a
// valid device is claimed and skipped by later scans until that device
// dies; ports that failed the handshake are retried on every scan.
type Detector struct {
	lister      Lister
	opts        []Option
	concurrency int
	log         zerolog.Logger
	sinkFor     func(port string) Sink
	open        func(ctx context.Context, port string, opts ...Option) (*Device, error)

	scanMu sync.Mutex // serializes Scan

	mu      sync.Mutex
	claimed map[string]*Device
	closed  bool

	scans atomic.Int64
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDeviceOptions sets the options every probed device is opened with.
func WithDeviceOptions(opts ...Option) DetectorOption {
	return func(d *Detector) {
		d.opts = append(d.opts, opts...)
	}
}

// WithConcurrency bounds how many ports are probed at once.
func WithConcurrency(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithSinkFactory gives every probed device its own sink.
func WithSinkFactory(sinkFor func(port string) Sink) DetectorOption {
	return func(d *Detector) {
		d.sinkFor = sinkFor
	}
}

// WithDetectorLogger sets the detector's logger.
func WithDetectorLogger(logger zerolog.Logger) DetectorOption {
	return func(d *Detector) {
		d.log = logger
	}
}

// NewDetector returns a detector that probes the ports lister reports.
func NewDetector(lister Lister, opts ...DetectorOption) *Detector {
	d := &Detector{
		lister:      lister,
		concurrency: defaultScanConcurrency,
		log:         zerolog.Nop(),
		open:        Open,
		claimed:     make(map[string]*Device),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Scan lists ports, probes every unclaimed one and returns the devices that
// passed the handshake. Each returned device is new: a port is never
// reported twice while its device is alive. Listing errors are returned;
// probe failures are only logged.
func (d *Detector) Scan(ctx context.Context) ([]*Device, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	n := d.scans.Inc()
	log := d.log.With().Int64("scan", n).Logger()

	ports, err := d.lister.ListPorts()
	if err != nil {
		return nil, err
	}

	d.prune()
	candidates := d.candidates(ports)
	if len(candidates) == 0 {
		log.Debug().Int("ports", len(ports)).Msg("no new ports")
		return nil, nil
	}
	log.Debug().Strs("ports", candidates).Msg("probing")

	found := make([]*Device, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, port := range candidates {
		i, port := i, port
		g.Go(func() error {
			dev, err := d.open(gctx, port, d.deviceOptions(port)...)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Debug().Str("port", port).Err(err).Msg("probe failed")
				return nil
			}
			found[i] = dev
			return nil
		})
	}
	waitErr := g.Wait()

	var devices []*Device
	for _, dev := range found {
		if dev == nil {
			continue
		}
		if !d.claim(dev) {
			dev.Close()
			continue
		}
		devices = append(devices, dev)
	}
	if waitErr != nil {
		return devices, waitErr
	}
	if len(devices) > 0 {
		log.Info().Int("devices", len(devices)).Msg("scan found devices")
	}
	return devices, nil
}

func (d *Detector) deviceOptions(port string) []Option {
	if d.sinkFor == nil {
		return d.opts
	}
	opts := make([]Option, 0, len(d.opts)+1)
	opts = append(opts, d.opts...)
	return append(opts, WithSink(d.sinkFor(port)))
}

// prune releases ports whose device stopped, so they can be probed again.
func (d *Detector) prune() {
	d.mu.Lock()
	var dead []*Device
	for port, dev := range d.claimed {
		if !dev.Alive() {
			delete(d.claimed, port)
			dead = append(dead, dev)
		}
	}
	d.mu.Unlock()

	for _, dev := range dead {
		d.log.Info().Str("port", dev.Port()).Err(dev.Err()).Msg("device lost")
		dev.Close()
	}
}

func (d *Detector) candidates(ports []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool, len(ports))
	var out []string
	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true
		if _, ok := d.claimed[port]; ok {
			continue
		}
		out = append(out, port)
	}
	return out
}

func (d *Detector) claim(dev *Device) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if _, ok := d.claimed[dev.Port()]; ok {
		return false
	}
	d.claimed[dev.Port()] = dev
	return true
}

// Devices returns the claimed devices ordered by port.
func (d *Detector) Devices() []*Device {
	d.mu.Lock()
	defer d.mu.Unlock()

	devices := make([]*Device, 0, len(d.claimed))
	for _, dev := range d.claimed {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Port() < devices[j].Port()
	})
	return devices
}

// Claimed reports whether port belongs to a live device of this detector.
func (d *Detector) Claimed(port string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.claimed[port]
	return ok
}

// Run scans immediately and then every interval until ctx is done. found
// is called with each non-empty scan result.
func (d *Detector) Run(ctx context.Context, interval time.Duration, found func([]*Device)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		devices, err := d.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Warn().Err(err).Msg("scan failed")
		}
		if len(devices) > 0 && found != nil {
			found(devices)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes every claimed device. Later scans find nothing to claim.
func (d *Detector) Close() error {
	d.mu.Lock()
	d.closed = true
	devices := make([]*Device, 0, len(d.claimed))
	for port, dev := range d.claimed {
		devices = append(devices, dev)
		delete(d.claimed, port)
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, dev := range devices {
		dev := dev
		wg.Add(1)
		go func() {
			defer wg.Done()
			dev.Close()
		}()
	}
	wg.Wait()
	return nil
}
