package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clawgate/core"
	"clawgate/host/link"
	"clawgate/host/serial"
	"clawgate/host/sim"
	"clawgate/logging"
)

var ErrInvalid = errors.New("config: invalid")

// Backends lists the accepted backend names
var Backends = []string{"periph", "serial", "sim"}

// machine is the parsed form of the wiring sections
type machine struct {
	axes       []core.AxisConfig
	limits     []core.LimitBinding
	counter    core.CounterBinding
	references map[core.Axis]core.Direction
	grip       []core.LineID
	coin       core.LineID
	coinPull   core.LineMode
	play       core.SequencerConfig
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	known := false
	for _, b := range Backends {
		known = known || c.Backend == b
	}
	if !known {
		add("backend %q not one of %s", c.Backend, strings.Join(Backends, ", "))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log level: %v", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		add("log format %q", c.Log.Format)
	}
	if c.Backend == "serial" && c.Serial.Device == "" {
		add("serial backend needs serial.device")
	}

	m, err := c.resolve()
	if err != nil {
		errs = append(errs, err)
	} else {
		specs, err := c.lineSpecs(m)
		if err != nil {
			errs = append(errs, err)
		}
		seen := make(map[string]core.LineID, len(specs))
		for _, s := range specs {
			if other, dup := seen[s.Pin]; dup {
				add("pin %s used by %s and %s", s.Pin, other, s.ID)
			}
			seen[s.Pin] = s.ID
		}
		if c.Backend == "sim" {
			if _, err := c.SimConfig(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Config) resolve() (*machine, error) {
	m := &machine{references: make(map[core.Axis]core.Direction)}
	for _, a := range core.Axes {
		ac, ok := c.Axes[a.String()]
		if !ok {
			return nil, fmt.Errorf("%w: axis %s not configured", ErrInvalid, a)
		}
		axis := core.AxisConfig{Axis: a, Lines: make(map[core.Direction]core.LineID), Pulse: ac.Pulse}
		for d, line := range ac.Lines {
			dir, err := parseDirection(a, d)
			if err != nil {
				return nil, err
			}
			axis.Lines[dir] = core.LineID(line)
		}
		dirs := a.Directions()
		if len(axis.Lines) != 2 || axis.Lines[dirs[0]] == "" || axis.Lines[dirs[1]] == "" {
			return nil, fmt.Errorf("%w: axis %s needs a line for %s and %s", ErrInvalid, a, dirs[0], dirs[1])
		}
		if axis.Lines[dirs[0]] == axis.Lines[dirs[1]] {
			return nil, fmt.Errorf("%w: axis %s uses %s for both directions", ErrInvalid, a, axis.Lines[dirs[0]])
		}
		for d, line := range ac.Limits {
			if line == "" {
				continue
			}
			dir, err := parseDirection(a, d)
			if err != nil {
				return nil, err
			}
			m.limits = append(m.limits, core.LimitBinding{Axis: a, Direction: dir, Line: core.LineID(line), ActiveHigh: ac.LimitsActiveHigh})
		}
		m.axes = append(m.axes, axis)
	}

	a, err := core.ParseAxis(c.Counter.Axis)
	if err != nil {
		return nil, fmt.Errorf("%w: counter: %v", ErrInvalid, err)
	}
	sat, err := parseDirection(a, c.Counter.Saturating)
	if err != nil {
		return nil, err
	}
	if c.Counter.Min >= c.Counter.Max {
		return nil, fmt.Errorf("%w: counter range %d..%d", ErrInvalid, c.Counter.Min, c.Counter.Max)
	}
	m.counter = core.CounterBinding{Axis: a, Min: c.Counter.Min, Max: c.Counter.Max, Saturating: sat, Reference: a.Opposite(sat)}

	for as, ds := range c.Homing.References {
		a, err := core.ParseAxis(as)
		if err != nil {
			return nil, fmt.Errorf("%w: homing: %v", ErrInvalid, err)
		}
		d, err := parseDirection(a, ds)
		if err != nil {
			return nil, err
		}
		m.references[a] = d
	}

	if c.Grip.Line == "" {
		return nil, fmt.Errorf("%w: grip.line is empty", ErrInvalid)
	}
	m.grip = []core.LineID{core.LineID(c.Grip.Line)}
	if c.Grip.Mirror != "" {
		m.grip = append(m.grip, core.LineID(c.Grip.Mirror))
	}

	if c.Coin.Line == "" {
		return nil, fmt.Errorf("%w: coin.line is empty", ErrInvalid)
	}
	m.coin = core.LineID(c.Coin.Line)
	switch strings.ToLower(c.Coin.Pull) {
	case "up":
		m.coinPull = core.LineInputPullUp
	case "down":
		m.coinPull = core.LineInputPullDown
	case "", "none":
		m.coinPull = core.LineInputFloat
	default:
		return nil, fmt.Errorf("%w: coin.pull %q", ErrInvalid, c.Coin.Pull)
	}

	if c.Play.Cadence <= 0 {
		return nil, fmt.Errorf("%w: play.cadence must be positive", ErrInvalid)
	}
	lift, err := parseTarget(c.Play.Lift)
	if err != nil {
		return nil, fmt.Errorf("play.lift: %w", err)
	}
	chute, err := parseTarget(c.Play.Chute)
	if err != nil {
		return nil, fmt.Errorf("play.chute: %w", err)
	}
	m.play = core.SequencerConfig{Cadence: c.Play.Cadence, QueueSize: c.Play.QueueSize, Lift: lift, Chute: chute}
	return m, nil
}

func parseDirection(a core.Axis, s string) (core.Direction, error) {
	d, err := core.ParseDirection(s)
	if err != nil {
		return 0, fmt.Errorf("%w: axis %s: %v", ErrInvalid, a, err)
	}
	if !a.Legal(d) {
		return 0, fmt.Errorf("%w: axis %s has no direction %s", ErrInvalid, a, d)
	}
	return d, nil
}

func parseTarget(s string) (core.Target, error) {
	as, ds, ok := strings.Cut(s, "/")
	if !ok {
		return core.Target{}, fmt.Errorf("%w: target %q is not axis/direction", ErrInvalid, s)
	}
	a, err := core.ParseAxis(as)
	if err != nil {
		return core.Target{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	d, err := parseDirection(a, ds)
	if err != nil {
		return core.Target{}, err
	}
	return core.Target{Axis: a, Direction: d}, nil
}

// LineSpecs lists every line with its pin and mode: axis outputs, grip
// outputs, limit inputs and the coin input, in that order
func (c *Config) LineSpecs() ([]core.LineSpec, error) {
	m, err := c.resolve()
	if err != nil {
		return nil, err
	}
	return c.lineSpecs(m)
}

func (c *Config) lineSpecs(m *machine) ([]core.LineSpec, error) {
	var specs []core.LineSpec
	var missing []string
	add := func(id core.LineID, mode core.LineMode) {
		pin, ok := c.Pins[string(id)]
		if !ok || pin == "" {
			missing = append(missing, string(id))
			return
		}
		specs = append(specs, core.LineSpec{ID: id, Pin: pin, Mode: mode})
	}
	for _, a := range m.axes {
		for _, d := range a.Axis.Directions() {
			if line, ok := a.Lines[d]; ok {
				add(line, core.LineOutput)
			}
		}
	}
	for _, g := range m.grip {
		add(g, core.LineOutput)
	}
	for _, l := range m.limits {
		mode := core.LineInputPullUp
		if l.ActiveHigh {
			mode = core.LineInputPullDown
		}
		add(l.Line, mode)
	}
	add(m.coin, m.coinPull)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no pin for %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return specs, nil
}

// MotorLines returns every axis output line
func (c *Config) MotorLines() []core.LineID {
	m, err := c.resolve()
	if err != nil {
		return nil
	}
	var out []core.LineID
	for _, a := range m.axes {
		for _, d := range a.Axis.Directions() {
			if line, ok := a.Lines[d]; ok {
				out = append(out, line)
			}
		}
	}
	return out
}

// SerialPort returns the serial port settings
func (c *Config) SerialPort() serial.Config {
	cfg := serial.DefaultConfig(c.Serial.Device)
	if c.Serial.Baud > 0 {
		cfg.Baud = c.Serial.Baud
	}
	return cfg
}

// LinkConfig returns the bridge line setup. Motor lines get the bridge-side
// max duration.
func (c *Config) LinkConfig() (link.Config, error) {
	specs, err := c.LineSpecs()
	if err != nil {
		return link.Config{}, err
	}
	cfg := link.Config{Lines: specs, CommandTimeout: c.Serial.CommandTimeout}
	if c.Serial.MaxDuration > 0 {
		cfg.MaxDuration = make(map[core.LineID]time.Duration)
		for _, line := range c.MotorLines() {
			cfg.MaxDuration[line] = c.Serial.MaxDuration
		}
	}
	return cfg, nil
}

// SimConfig returns the simulated machine matching the wiring
func (c *Config) SimConfig() (sim.Config, error) {
	m, err := c.resolve()
	if err != nil {
		return sim.Config{}, err
	}
	out := sim.Config{Axes: make(map[core.Axis]sim.Axis), Coin: m.coin, CoinActiveHigh: c.Coin.ActiveHigh}
	for _, a := range m.axes {
		sc, ok := c.Sim[a.Axis.String()]
		if !ok {
			return sim.Config{}, fmt.Errorf("%w: sim.%s not configured", ErrInvalid, a.Axis)
		}
		home, err := parseDirection(a.Axis, sc.Home)
		if err != nil {
			return sim.Config{}, err
		}
		limits := make(map[core.Direction]core.LineID)
		for _, l := range m.limits {
			if l.Axis != a.Axis {
				continue
			}
			if l.ActiveHigh {
				return sim.Config{}, fmt.Errorf("%w: sim switches are active-low", ErrInvalid)
			}
			limits[l.Direction] = l.Line
		}
		out.Axes[a.Axis] = sim.Axis{Home: home, Lines: a.Lines, Limits: limits, Span: sc.Span, Start: sc.Start}
	}
	return out, nil
}

// Machine is the assembled core
type Machine struct {
	Limits    *core.LimitSwitchMonitor
	Gantry    *core.Gantry
	Grip      *core.GripActuator
	Coin      *core.CoinEdgeDetector
	Homing    *core.HomingRoutine
	Sequencer *core.PlaySequencer
}

// Build assembles the core on io. When io is also a core.StatusLight the
// cabinet light follows the play state. A nil clock means the system clock.
func (c *Config) Build(io core.DigitalIO, clock core.Clock, log *slog.Logger, observers ...core.Observer) (*Machine, error) {
	m, err := c.resolve()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNop()
	}
	if light, ok := io.(core.StatusLight); ok {
		observers = append(observers, core.NewStatusObserver(light, nil, log.With("component", "status_light")))
	}
	opts := []core.Option{core.WithLogger(log), core.WithObserver(core.Observers(observers))}

	out := &Machine{}
	if out.Limits, err = core.NewLimitSwitchMonitor(io, clock, m.limits...); err != nil {
		return nil, err
	}
	if out.Gantry, err = core.NewGantry(io, out.Limits, clock, m.axes, &m.counter, opts...); err != nil {
		return nil, err
	}
	if out.Grip, err = core.NewGripActuator(io, m.grip...); err != nil {
		return nil, err
	}
	out.Coin = core.NewCoinEdgeDetector(io, m.coin, c.Coin.ActiveHigh)
	if out.Homing, err = core.NewHomingRoutine(out.Gantry, m.references, c.Homing.MaxAttempts, opts...); err != nil {
		return nil, err
	}
	if out.Sequencer, err = core.NewPlaySequencer(out.Gantry, out.Grip, out.Coin, out.Homing, m.play, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
