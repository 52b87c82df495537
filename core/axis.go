package core

import (
	"fmt"
	"strings"
)

// Axis identifies one controllable degree of motion
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists every axis in driving order
var Axes = []Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// ParseAxis parses "x", "y" or "z" (case-insensitive)
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAxis, s)
}

// Directions returns the two legal directions of the axis.
// The first one is wired to the axis's IN1 line, the second to IN2.
func (a Axis) Directions() [2]Direction {
	switch a {
	case AxisX:
		return [2]Direction{Left, Right}
	case AxisY:
		return [2]Direction{Forward, Backward}
	default:
		return [2]Direction{Up, Down}
	}
}

// Legal reports whether dir is one of the axis's two directions
func (a Axis) Legal(dir Direction) bool {
	d := a.Directions()
	return dir == d[0] || dir == d[1]
}

// Opposite returns the other legal direction of the axis
func (a Axis) Opposite(dir Direction) Direction {
	d := a.Directions()
	if dir == d[0] {
		return d[1]
	}
	return d[0]
}

// Direction is a directional intent on one axis
type Direction int

const (
	Left Direction = iota
	Right
	Forward
	Backward
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// ParseDirection parses a direction name; "back" is accepted for Backward
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "forward", "fwd":
		return Forward, nil
	case "backward", "back":
		return Backward, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("core: unknown direction %q", s)
}

// Target names one (axis, direction) pair
type Target struct {
	Axis      Axis
	Direction Direction
}

func (t Target) String() string {
	return t.Axis.String() + "/" + t.Direction.String()
}

// Validate checks the direction is legal for the axis
func (t Target) Validate() error {
	if !t.Axis.Legal(t.Direction) {
		return fmt.Errorf("%w: %s", ErrIllegalDirection, t)
	}
	return nil
}
