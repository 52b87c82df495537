// Grip actuator and coin sensor lines
package core

import "sync"

// GripState is the commanded claw state
type GripState bool

const (
	GripOpen   GripState = false
	GripClosed GripState = true
)

func (s GripState) String() string {
	if s {
		return "closed"
	}
	return "open"
}

// MarshalText renders the state as "open"/"closed"
func (s GripState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GripActuator toggles the claw and mirrors the state onto every grip line.
// The grip has no limit switches, so no interlock applies.
type GripActuator struct {
	io    DigitalIO
	lines []LineID

	mu    sync.Mutex
	state GripState
}

// NewGripActuator creates an open grip driving lines (at least one)
func NewGripActuator(io DigitalIO, lines ...LineID) (*GripActuator, error) {
	if len(lines) == 0 {
		return nil, configErr("grip needs at least one line")
	}
	return &GripActuator{io: io, lines: append([]LineID(nil), lines...)}, nil
}

// Toggle flips the state and writes it synchronously to all lines
func (g *GripActuator) Toggle() (GripState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := !g.state
	if err := g.write(next); err != nil {
		return g.state, err
	}
	g.state = next
	return next, nil
}

// Reassert rewrites the last commanded state (used at start and shutdown)
func (g *GripActuator) Reassert() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.write(g.state)
}

func (g *GripActuator) State() GripState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Lines returns the mirrored output lines
func (g *GripActuator) Lines() []LineID {
	return append([]LineID(nil), g.lines...)
}

func (g *GripActuator) write(s GripState) error {
	for _, line := range g.lines {
		if err := g.io.WriteLine(line, bool(s)); err != nil {
			return writeErr(line, err)
		}
	}
	return nil
}

// CoinEdgeDetector turns the coin-sensor level into one event per
// not-present -> present transition.
//
// It must be polled faster than the shortest coin pulse; a pulse that starts
// and ends between two polls is lost.
type CoinEdgeDetector struct {
	io         DigitalIO
	line       LineID
	activeHigh bool
	present    bool
}

// NewCoinEdgeDetector creates a detector; the previous sample starts as
// not-present.
func NewCoinEdgeDetector(io DigitalIO, line LineID, activeHigh bool) *CoinEdgeDetector {
	return &CoinEdgeDetector{io: io, line: line, activeHigh: activeHigh}
}

// Poll samples the coin input once and reports whether a coin edge occurred.
// The stored sample is updated on every successful read.
func (c *CoinEdgeDetector) Poll() (bool, error) {
	level, err := c.io.ReadLine(c.line)
	if err != nil {
		return false, readErr(c.line, err)
	}
	present := level == c.activeHigh
	edge := present && !c.present
	c.present = present
	return edge, nil
}

// Line returns the coin input line
func (c *CoinEdgeDetector) Line() LineID {
	return c.line
}
