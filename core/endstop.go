// Limit switch sampling
// Switches are wired active-low: a triggered switch pulls its input to 0.
package core

import (
	"sync"
	"time"
)

// LimitBinding attaches a limit switch input to the (axis, direction) it blocks
type LimitBinding struct {
	Axis       Axis
	Direction  Direction
	Line       LineID
	ActiveHigh bool // true when a triggered switch reads 1
}

// LimitSnapshot is one consistent sample of every bound limit switch
type LimitSnapshot struct {
	Taken   time.Time
	blocked map[Target]bool
}

// Blocked reports whether the switch guarding (axis, dir) was asserted.
// Pairs without a switch are never blocked.
func (s LimitSnapshot) Blocked(axis Axis, dir Direction) bool {
	return s.blocked[Target{axis, dir}]
}

// Map returns the snapshot keyed by "axis/direction"
func (s LimitSnapshot) Map() map[string]bool {
	out := make(map[string]bool, len(s.blocked))
	for t, b := range s.blocked {
		out[t.String()] = b
	}
	return out
}

// LimitSwitchMonitor samples all limit inputs once per check
type LimitSwitchMonitor struct {
	io       DigitalIO
	clock    Clock
	bindings []LimitBinding

	mu   sync.RWMutex
	snap LimitSnapshot
}

// NewLimitSwitchMonitor creates a monitor; a binding for an illegal
// direction or a duplicated (axis, direction) pair is rejected.
func NewLimitSwitchMonitor(io DigitalIO, clock Clock, bindings ...LimitBinding) (*LimitSwitchMonitor, error) {
	seen := make(map[Target]bool, len(bindings))
	for _, b := range bindings {
		t := Target{b.Axis, b.Direction}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t] {
			return nil, configErr("limit switch for %s bound twice", t)
		}
		if b.Line == "" {
			return nil, configErr("limit switch for %s has no line", t)
		}
		seen[t] = true
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &LimitSwitchMonitor{
		io:       io,
		clock:    clock,
		bindings: append([]LimitBinding(nil), bindings...),
		snap:     LimitSnapshot{blocked: map[Target]bool{}},
	}, nil
}

// Refresh reads every bound input and replaces the snapshot.
// On a read failure the previous snapshot is kept and the error returned.
func (m *LimitSwitchMonitor) Refresh() error {
	blocked := make(map[Target]bool, len(m.bindings))
	for _, b := range m.bindings {
		level, err := m.io.ReadLine(b.Line)
		if err != nil {
			return readErr(b.Line, err)
		}
		blocked[Target{b.Axis, b.Direction}] = level == b.ActiveHigh
	}

	m.mu.Lock()
	m.snap = LimitSnapshot{Taken: m.clock.Now(), blocked: blocked}
	m.mu.Unlock()
	return nil
}

// IsBlocked returns the last refreshed value for (axis, dir)
func (m *LimitSwitchMonitor) IsBlocked(axis Axis, dir Direction) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Blocked(axis, dir)
}

// Has reports whether a switch guards (axis, dir)
func (m *LimitSwitchMonitor) Has(axis Axis, dir Direction) bool {
	for _, b := range m.bindings {
		if b.Axis == axis && b.Direction == dir {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the last sample
func (m *LimitSwitchMonitor) Snapshot() LimitSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blocked := make(map[Target]bool, len(m.snap.blocked))
	for k, v := range m.snap.blocked {
		blocked[k] = v
	}
	return LimitSnapshot{Taken: m.snap.Taken, blocked: blocked}
}
