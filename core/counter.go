package core

import "sync"

// Default travel counter range (inclusive)
const (
	DefaultCounterMin = 0
	DefaultCounterMax = 9
)

// TravelCounter is the dead-reckoning position estimate for the axis that
// has a limit switch on one end only. The saturating direction (no switch)
// counts up and is bounded by Max; the reference direction counts down and is
// bounded physically by its switch, so its decrement simply stops at Min.
//
// The value drifts if pulses are interrupted; homing is the only resync.
type TravelCounter struct {
	mu         sync.Mutex
	min, max   int
	value      int
	saturating Direction
	reference  Direction
}

// NewTravelCounter creates a counter starting at min
func NewTravelCounter(min, max int, saturating, reference Direction) (*TravelCounter, error) {
	if min >= max {
		return nil, configErr("counter range [%d, %d] is empty", min, max)
	}
	if saturating == reference {
		return nil, configErr("counter directions must differ")
	}
	return &TravelCounter{
		min:        min,
		max:        max,
		value:      min,
		saturating: saturating,
		reference:  reference,
	}, nil
}

// CanAdvance checks the bound implied by dir without mutating.
// Directions the counter does not track never advance.
func (c *TravelCounter) CanAdvance(dir Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canAdvance(dir)
}

func (c *TravelCounter) canAdvance(dir Direction) bool {
	switch dir {
	case c.saturating:
		return c.value < c.max
	case c.reference:
		return c.value > c.min
	default:
		return false
	}
}

// Advance moves the value by one in dir when CanAdvance(dir) holds and
// reports whether it changed. Otherwise it is a no-op.
func (c *TravelCounter) Advance(dir Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canAdvance(dir) {
		return false
	}
	if dir == c.saturating {
		c.value++
	} else {
		c.value--
	}
	return true
}

// Reset returns the value to Min (homed)
func (c *TravelCounter) Reset() {
	c.mu.Lock()
	c.value = c.min
	c.mu.Unlock()
}

func (c *TravelCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AtMax reports whether the saturating end has been reached
func (c *TravelCounter) AtMax() bool {
	return c.Value() == c.max
}

func (c *TravelCounter) Min() int { return c.min }

func (c *TravelCounter) Max() int { return c.max }

// Saturating is the direction bounded by the counter
func (c *TravelCounter) Saturating() Direction { return c.saturating }

// Reference is the direction bounded by the physical switch
func (c *TravelCounter) Reference() Direction { return c.reference }
