// Axis drivers: timed open-loop pulses on a pair of mutually exclusive lines
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPulse is the move duration when an axis sets none
const DefaultPulse = 200 * time.Millisecond

// MoveResult is the outcome of one commanded move
type MoveResult int

const (
	Moved       MoveResult = iota
	VetoLimit              // limit switch asserted toward the direction
	VetoCounter            // travel counter at its bound
	MoveFailed             // returned with a non-nil error
)

func (r MoveResult) String() string {
	switch r {
	case Moved:
		return "moved"
	case VetoLimit:
		return "limit"
	case VetoCounter:
		return "counter"
	case MoveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Vetoed reports whether the interlock refused the move
func (r MoveResult) Vetoed() bool {
	return r == VetoLimit || r == VetoCounter
}

// AxisConfig describes one axis's outputs
type AxisConfig struct {
	Axis  Axis
	Lines map[Direction]LineID
	Pulse time.Duration // zero means DefaultPulse
}

func (c AxisConfig) validate() error {
	dirs := c.Axis.Directions()
	if len(c.Lines) != 2 {
		return configErr("axis %s needs exactly two lines", c.Axis)
	}
	for _, d := range dirs {
		if c.Lines[d] == "" {
			return configErr("axis %s has no line for %s", c.Axis, d)
		}
	}
	if c.Lines[dirs[0]] == c.Lines[dirs[1]] {
		return configErr("axis %s uses line %s for both directions", c.Axis, c.Lines[dirs[0]])
	}
	return nil
}

// CounterBinding attaches a TravelCounter to one axis
type CounterBinding struct {
	Axis       Axis
	Min, Max   int
	Saturating Direction
	Reference  Direction
}

// AxisDriver pulses one axis. It owns the axis's two output lines and, for
// the counter axis, the TravelCounter.
type AxisDriver struct {
	cfg     AxisConfig
	io      DigitalIO
	limits  *LimitSwitchMonitor
	counter *TravelCounter
	clock   Clock
	halt    func() error

	log      *slog.Logger
	observer Observer
}

// Axis returns the driven axis
func (d *AxisDriver) Axis() Axis {
	return d.cfg.Axis
}

// Counter returns the axis's travel counter, or nil
func (d *AxisDriver) Counter() *TravelCounter {
	return d.counter
}

// Move pulses the axis in dir for its configured duration
func (d *AxisDriver) Move(ctx context.Context, dir Direction) (MoveResult, error) {
	return d.MoveFor(ctx, dir, 0)
}

// MoveFor pulses the axis in dir for pulse (zero means the axis default).
// The counter axis always uses its configured pulse, since each counter
// step stands for exactly one such pulse.
//
// The sequence is: stop every axis output, re-sample the limit switches,
// veto if a switch or the travel counter forbids dir, otherwise assert the
// line for the pulse and drop it. The pulse hold is not interrupted by ctx.
// A veto is a normal outcome and returns a nil error. When err is non-nil
// the result is MoveFailed.
func (d *AxisDriver) MoveFor(ctx context.Context, dir Direction, pulse time.Duration) (MoveResult, error) {
	axis := d.cfg.Axis
	if !axis.Legal(dir) {
		return MoveFailed, fmt.Errorf("%w: %s/%s", ErrIllegalDirection, axis, dir)
	}

	if err := d.halt(); err != nil {
		return MoveFailed, err
	}
	if err := ctx.Err(); err != nil {
		return MoveFailed, err
	}

	if err := d.limits.Refresh(); err != nil {
		return MoveFailed, err
	}

	result := Moved
	if d.limits.IsBlocked(axis, dir) {
		result = VetoLimit
	} else if d.counter != nil && dir == d.counter.Saturating() && !d.counter.CanAdvance(dir) {
		result = VetoCounter
	}
	if result.Vetoed() {
		d.log.Info("move vetoed", "axis", axis, "direction", dir, "reason", result)
		d.observer.Vetoed(axis, dir, result)
		return result, nil
	}

	if d.counter != nil && pulse > 0 && pulse != d.cfg.Pulse {
		d.log.Info("pulse fixed on counter axis", "axis", axis, "requested", pulse, "pulse", d.cfg.Pulse)
		pulse = d.cfg.Pulse
	}
	if pulse <= 0 {
		pulse = d.cfg.Pulse
	}
	line := d.cfg.Lines[dir]
	if err := d.io.WriteLine(line, true); err != nil {
		_ = d.io.WriteLine(line, false)
		return MoveFailed, writeErr(line, err)
	}
	_ = d.clock.Sleep(context.WithoutCancel(ctx), pulse)
	if err := d.io.WriteLine(line, false); err != nil {
		return MoveFailed, writeErr(line, err)
	}

	if d.counter != nil {
		d.counter.Advance(dir)
	}
	d.log.Debug("moved", "axis", axis, "direction", dir, "pulse", pulse)
	d.observer.Moved(axis, dir, pulse)
	return Moved, nil
}

// Stop drives both of the axis's lines low
func (d *AxisDriver) Stop() error {
	var first error
	for _, dir := range d.cfg.Axis.Directions() {
		line := d.cfg.Lines[dir]
		if err := d.io.WriteLine(line, false); err != nil && first == nil {
			first = writeErr(line, err)
		}
	}
	return first
}

// Gantry owns every AxisDriver and the stop-all operation that each move
// starts with, so axes are only ever driven one command at a time.
type Gantry struct {
	axes   map[Axis]*AxisDriver
	limits *LimitSwitchMonitor
	clock  Clock
	log    *slog.Logger
}

// NewGantry builds one AxisDriver per config. counter may be nil.
func NewGantry(io DigitalIO, limits *LimitSwitchMonitor, clock Clock, axes []AxisConfig, counter *CounterBinding, opts ...Option) (*Gantry, error) {
	o := buildOptions(opts)
	if clock == nil {
		clock = SystemClock{}
	}
	g := &Gantry{
		axes:   make(map[Axis]*AxisDriver, len(axes)),
		limits: limits,
		clock:  clock,
		log:    o.log,
	}

	used := make(map[LineID]Axis)
	for _, cfg := range axes {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		if _, dup := g.axes[cfg.Axis]; dup {
			return nil, configErr("axis %s configured twice", cfg.Axis)
		}
		for _, line := range cfg.Lines {
			if other, taken := used[line]; taken {
				return nil, configErr("line %s shared by axes %s and %s", line, other, cfg.Axis)
			}
			used[line] = cfg.Axis
		}
		if cfg.Pulse <= 0 {
			cfg.Pulse = DefaultPulse
		}
		g.axes[cfg.Axis] = &AxisDriver{
			cfg:      cfg,
			io:       io,
			limits:   limits,
			clock:    clock,
			halt:     g.StopAll,
			log:      o.log.With("component", "axis"),
			observer: o.observer,
		}
	}

	if counter != nil {
		d, ok := g.axes[counter.Axis]
		if !ok {
			return nil, configErr("counter bound to unconfigured axis %s", counter.Axis)
		}
		if !counter.Axis.Legal(counter.Saturating) || counter.Axis.Opposite(counter.Saturating) != counter.Reference {
			return nil, configErr("counter directions %s/%s do not match axis %s", counter.Saturating, counter.Reference, counter.Axis)
		}
		if limits.Has(counter.Axis, counter.Saturating) {
			return nil, configErr("counter direction %s/%s already has a limit switch", counter.Axis, counter.Saturating)
		}
		c, err := NewTravelCounter(counter.Min, counter.Max, counter.Saturating, counter.Reference)
		if err != nil {
			return nil, err
		}
		d.counter = c
	}
	return g, nil
}

// Move drives axis one pulse in dir through its interlock
func (g *Gantry) Move(ctx context.Context, axis Axis, dir Direction) (MoveResult, error) {
	return g.MoveFor(ctx, axis, dir, 0)
}

// MoveFor is Move with an explicit pulse duration
func (g *Gantry) MoveFor(ctx context.Context, axis Axis, dir Direction, pulse time.Duration) (MoveResult, error) {
	d, ok := g.axes[axis]
	if !ok {
		return MoveFailed, fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	return d.MoveFor(ctx, dir, pulse)
}

// StopAll drives every axis output low. Every line is attempted even if
// one write fails; the first failure is returned.
func (g *Gantry) StopAll() error {
	var first error
	for _, a := range Axes {
		d, ok := g.axes[a]
		if !ok {
			continue
		}
		if err := d.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Driver returns the driver for axis
func (g *Gantry) Driver(axis Axis) (*AxisDriver, bool) {
	d, ok := g.axes[axis]
	return d, ok
}

// Counter returns the travel counter and the axis it belongs to
func (g *Gantry) Counter() (*TravelCounter, Axis, bool) {
	for _, a := range Axes {
		if d, ok := g.axes[a]; ok && d.counter != nil {
			return d.counter, a, true
		}
	}
	return nil, 0, false
}

// Clock returns the clock used for pulse holds
func (g *Gantry) Clock() Clock {
	return g.clock
}

// Limits returns the shared limit switch monitor
func (g *Gantry) Limits() *LimitSwitchMonitor {
	return g.limits
}

// OutputLines lists every axis output line
func (g *Gantry) OutputLines() []LineID {
	var out []LineID
	for _, a := range Axes {
		if d, ok := g.axes[a]; ok {
			for _, dir := range a.Directions() {
				out = append(out, d.cfg.Lines[dir])
			}
		}
	}
	return out
}
