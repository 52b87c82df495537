// Package sim is an in-memory claw machine. It implements core.DigitalIO
// and core.StatusLight so the whole stack can run without hardware.
package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"clawgate/core"
)

// Axis describes one simulated axis. Position 0 is the end reached by
// moving toward Home; Span is the other end.
type Axis struct {
	Home   core.Direction
	Lines  map[core.Direction]core.LineID
	Limits map[core.Direction]core.LineID // active-low switches
	Span   int
	Start  int
}

// Config describes the simulated machine
type Config struct {
	Axes           map[core.Axis]Axis
	Coin           core.LineID
	CoinActiveHigh bool
}

type drive struct {
	axis core.Axis
	step int
}

// Machine is the simulated plant. A pulse moves its axis one step when the
// line is released.
type Machine struct {
	mu     sync.Mutex
	cfg    Config
	levels map[core.LineID]bool
	drives map[core.LineID]drive
	limits map[core.LineID]core.Target
	pos    map[core.Axis]int
	coin   bool
	color  core.Color
	pulses int
	log    *slog.Logger
}

// New builds a machine at its configured start positions
func New(cfg Config, log *slog.Logger) (*Machine, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := &Machine{
		cfg:    cfg,
		levels: make(map[core.LineID]bool),
		drives: make(map[core.LineID]drive),
		limits: make(map[core.LineID]core.Target),
		pos:    make(map[core.Axis]int),
		log:    log.With("component", "sim"),
	}
	for a, ax := range cfg.Axes {
		if ax.Span <= 0 || ax.Start < 0 || ax.Start > ax.Span {
			return nil, fmt.Errorf("sim: axis %s start %d outside 0..%d", a, ax.Start, ax.Span)
		}
		if !a.Legal(ax.Home) {
			return nil, fmt.Errorf("sim: axis %s cannot home %s", a, ax.Home)
		}
		for _, d := range a.Directions() {
			step := 1
			if d == ax.Home {
				step = -1
			}
			if line, ok := ax.Lines[d]; ok {
				m.drives[line] = drive{a, step}
			}
			if line, ok := ax.Limits[d]; ok {
				m.limits[line] = core.Target{Axis: a, Direction: d}
			}
		}
		m.pos[a] = ax.Start
	}
	return m, nil
}

func (m *Machine) ReadLine(line core.LineID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.limits[line]; ok {
		return !m.atEnd(t), nil
	}
	if line == m.cfg.Coin {
		present := m.coin
		m.coin = false
		return present == m.cfg.CoinActiveHigh, nil
	}
	return m.levels[line], nil
}

func (m *Machine) WriteLine(line core.LineID, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.levels[line]
	m.levels[line] = level
	if d, ok := m.drives[line]; ok && was && !level {
		m.step(d)
	}
	return nil
}

func (m *Machine) SetStatus(r, g, b uint8) error {
	m.mu.Lock()
	m.color = core.Color{R: r, G: g, B: b}
	m.mu.Unlock()
	return nil
}

// InsertCoin presents a coin for exactly one sample
func (m *Machine) InsertCoin() {
	m.mu.Lock()
	m.coin = true
	m.mu.Unlock()
	m.log.Info("coin inserted")
}

// Position returns the axis position
func (m *Machine) Position(a core.Axis) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos[a]
}

// Place moves an axis directly
func (m *Machine) Place(a core.Axis, pos int) {
	m.mu.Lock()
	m.pos[a] = pos
	m.mu.Unlock()
}

// Level returns the last written level of an output
func (m *Machine) Level(line core.LineID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[line]
}

// Color returns the last status light color
func (m *Machine) Color() core.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.color
}

// Pulses counts completed motor pulses
func (m *Machine) Pulses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses
}

func (m *Machine) atEnd(t core.Target) bool {
	if t.Direction == m.cfg.Axes[t.Axis].Home {
		return m.pos[t.Axis] <= 0
	}
	return m.pos[t.Axis] >= m.cfg.Axes[t.Axis].Span
}

func (m *Machine) step(d drive) {
	m.pulses++
	next := m.pos[d.axis] + d.step
	if next < 0 || next > m.cfg.Axes[d.axis].Span {
		m.log.Debug("axis at hard stop", "axis", d.axis, "pos", m.pos[d.axis])
		return
	}
	m.pos[d.axis] = next
	m.log.Debug("axis moved", "axis", d.axis, "pos", next)
}
