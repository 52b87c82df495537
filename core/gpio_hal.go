package core

// LineID is the stable logical name of a digital line (an axis output, a limit
// switch, the grip or the coin sensor). Physical pin numbers are a deployment
// mapping owned by configuration.
type LineID string

// LineMode selects how a boundary configures a line
type LineMode int

const (
	LineOutput LineMode = iota
	LineInputPullUp
	LineInputPullDown
	LineInputFloat
)

func (m LineMode) String() string {
	switch m {
	case LineOutput:
		return "output"
	case LineInputPullUp:
		return "input_pullup"
	case LineInputPullDown:
		return "input_pulldown"
	case LineInputFloat:
		return "input"
	default:
		return "unknown"
	}
}

// IsInput reports whether the mode configures an input line
func (m LineMode) IsInput() bool {
	return m != LineOutput
}

// LineSpec binds a logical line to a physical pin name and a mode
type LineSpec struct {
	ID   LineID
	Pin  string
	Mode LineMode
}

// DigitalIO is the abstract I/O boundary the core drives.
// Implementations configure their lines up front and must leave every output
// low when released.
type DigitalIO interface {
	// ReadLine returns the raw electrical level of an input line (true = high)
	ReadLine(id LineID) (bool, error)

	// WriteLine drives an output line high (true) or low (false)
	WriteLine(id LineID, value bool) error
}

// StatusLight is implemented by boundaries that can show a cabinet color
type StatusLight interface {
	SetStatus(r, g, b uint8) error
}
