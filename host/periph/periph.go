// Package periph drives the machine lines directly from SBC header pins
// through periph.io. Pins are looked up by their gpioreg name, e.g.
// "GPIO17" for header pin 11 on a Raspberry Pi style 40-pin header.
package periph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"clawgate/core"
)

var ErrUnknownLine = errors.New("periph: line not configured")

// Resolver maps a pin name to a pin; gpioreg.ByName is the default
type Resolver func(name string) gpio.PinIO

// Board is a core.DigitalIO on local GPIO pins
type Board struct {
	mu      sync.Mutex
	pins    map[core.LineID]gpio.PinIO
	outputs []core.LineID
	log     *slog.Logger
}

// Open loads the periph host drivers and configures every line. Outputs
// start low.
func Open(lines []core.LineSpec, log *slog.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph: host init: %w", err)
	}
	return New(lines, gpioreg.ByName, log)
}

// New configures lines using resolve. Open is the usual entry point.
func New(lines []core.LineSpec, resolve Resolver, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Board{
		pins: make(map[core.LineID]gpio.PinIO, len(lines)),
		log:  log.With("component", "periph"),
	}
	for _, spec := range lines {
		p := resolve(spec.Pin)
		if p == nil {
			_ = b.Close()
			return nil, fmt.Errorf("periph: no pin named %q for %s", spec.Pin, spec.ID)
		}
		if err := configure(p, spec.Mode); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("periph: configure %s on %s: %w", spec.ID, spec.Pin, err)
		}
		b.pins[spec.ID] = p
		if !spec.Mode.IsInput() {
			b.outputs = append(b.outputs, spec.ID)
		}
		b.log.Debug("line configured", "line", spec.ID, "pin", p.Name(), "mode", spec.Mode)
	}
	return b, nil
}

func configure(p gpio.PinIO, mode core.LineMode) error {
	switch mode {
	case core.LineInputPullUp:
		return p.In(gpio.PullUp, gpio.NoEdge)
	case core.LineInputPullDown:
		return p.In(gpio.PullDown, gpio.NoEdge)
	case core.LineInputFloat:
		return p.In(gpio.Float, gpio.NoEdge)
	default:
		return p.Out(gpio.Low)
	}
}

func (b *Board) ReadLine(line core.LineID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[line]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	return p.Read() == gpio.High, nil
}

func (b *Board) WriteLine(line core.LineID, level bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[line]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	return p.Out(gpio.Level(level))
}

// Close drives every output low. Pins stay configured.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, id := range b.outputs {
		if err := b.pins[id].Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
