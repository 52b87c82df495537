// Package bridge is the firmware side of the IO link: it owns the MCU pins
// and executes the line commands the host sends over the protocol.
//
// The package only depends on the standard library and protocol so it
// builds for both TinyGo targets and host tests.
package bridge

import (
	"errors"
	"sync"
	"time"

	"clawgate/protocol"
)

// Version is reported by identify
const Version = "clawgate-bridge/1"

// DefaultMaxLines bounds the number of configured lines
const DefaultMaxLines = 32

var (
	ErrUnknownOID   = errors.New("unknown oid")
	ErrPinInUse     = errors.New("pin already configured")
	ErrNotOutput    = errors.New("line is not an output")
	ErrTooManyLines = errors.New("too many lines")
	ErrBadMode      = errors.New("unsupported line mode")
	ErrNoLight      = errors.New("no status light")
)

// PinDriver drives the physical pins
type PinDriver interface {
	ConfigureOutput(pin string, initial bool) error
	ConfigureInput(pin string, mode uint8) error
	SetPin(pin string, value bool) error
	GetPin(pin string) (bool, error)
}

// Light is an optional RGB status light
type Light interface {
	SetColor(r, g, b uint8) error
}

type line struct {
	oid   uint8
	pin   string
	mode  uint8
	def   bool
	value bool

	maxDuration time.Duration
	deadline    time.Time
	checkEnd    bool
}

func (l *line) isOutput() bool {
	return l.mode == protocol.ModeOutput
}

// Bridge executes line commands against a PinDriver
type Bridge struct {
	mu       sync.Mutex
	pins     PinDriver
	light    Light
	now      func() time.Time
	maxLines int
	lines    map[uint8]*line
	reg      *registry
	dict     []byte
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLight attaches a status light
func WithLight(l Light) Option {
	return func(b *Bridge) { b.light = l }
}

// WithClock replaces time.Now for max duration checks
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithMaxLines changes DefaultMaxLines
func WithMaxLines(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxLines = n
		}
	}
}

// New creates a bridge with no lines configured
func New(pins PinDriver, opts ...Option) *Bridge {
	b := &Bridge{
		pins:     pins,
		now:      time.Now,
		maxLines: DefaultMaxLines,
		lines:    make(map[uint8]*line),
		reg:      newRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reg.register(protocol.CmdIdentify, "identify", "", b.handleIdentify)
	b.reg.register(protocol.CmdConfigLine, "config_line", "oid=%c pin=%s mode=%c default=%c max_ms=%u", b.handleConfigLine)
	b.reg.register(protocol.CmdSetLine, "set_line", "oid=%c value=%c", b.handleSetLine)
	b.reg.register(protocol.CmdQueryLine, "query_line", "oid=%c", b.handleQueryLine)
	b.reg.register(protocol.CmdAllOff, "all_off", "", b.handleAllOff)
	b.reg.register(protocol.CmdSetStatus, "set_status", "r=%c g=%c b=%c", b.handleSetStatus)
	b.reg.register(protocol.CmdGetDictionary, "get_dictionary", "offset=%u count=%c", b.handleGetDictionary)
	b.dict = storedZlib([]byte(b.reg.dictionary()))
	return b
}

// Handle executes one command; it is a protocol.Handler
func (b *Bridge) Handle(m protocol.Message) []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	cmd, ok := b.reg.lookup(m.ID())
	if !ok || cmd.Handler == nil {
		return []protocol.Message{&protocol.Fault{Command: m.ID(), Reason: "unexpected message"}}
	}
	resp, err := cmd.Handler(m)
	if err != nil {
		return append(resp, &protocol.Fault{Command: m.ID(), OID: oidOf(m), Reason: cmd.Name + ": " + err.Error()})
	}
	return resp
}

// Dictionary describes the command set, one "id name format" line per
// command. Hosts fetch it zlib-wrapped with get_dictionary.
func (b *Bridge) Dictionary() string {
	return b.reg.dictionary()
}

// Expire reverts every output whose max duration has passed to its default
// level. The firmware main loop calls it periodically. It returns how many
// lines were reverted.
func (b *Bridge) Expire() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	n := 0
	for _, l := range b.lines {
		if !l.checkEnd || now.Before(l.deadline) {
			continue
		}
		if err := b.pins.SetPin(l.pin, l.def); err != nil {
			continue
		}
		l.value = l.def
		l.checkEnd = false
		n++
	}
	return n
}

// AllOff returns every output to its default level
func (b *Bridge) AllOff() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allOff()
}

// Level reports the last driven level of an output, for diagnostics
func (b *Bridge) Level(oid uint8) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.lines[oid]
	if !ok {
		return false, false
	}
	return l.value, true
}

func (b *Bridge) allOff() error {
	var first error
	for _, l := range b.lines {
		if !l.isOutput() {
			continue
		}
		if err := b.pins.SetPin(l.pin, l.def); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		l.value = l.def
		l.checkEnd = false
	}
	return first
}

func (b *Bridge) handleIdentify(protocol.Message) ([]protocol.Message, error) {
	return []protocol.Message{&protocol.IdentifyResponse{Version: Version, MaxLines: uint32(b.maxLines)}}, nil
}

func (b *Bridge) handleConfigLine(m protocol.Message) ([]protocol.Message, error) {
	c := m.(*protocol.ConfigLine)
	for oid, l := range b.lines {
		if oid != c.OID && l.pin == c.Pin {
			return nil, ErrPinInUse
		}
	}
	if _, exists := b.lines[c.OID]; !exists && len(b.lines) >= b.maxLines {
		return nil, ErrTooManyLines
	}

	l := &line{oid: c.OID, pin: c.Pin, mode: c.Mode, def: c.Default, value: c.Default}
	switch c.Mode {
	case protocol.ModeOutput:
		l.maxDuration = time.Duration(c.MaxDurationMS) * time.Millisecond
		if err := b.pins.ConfigureOutput(c.Pin, c.Default); err != nil {
			return nil, err
		}
	case protocol.ModeInputPullUp, protocol.ModeInputPullDown, protocol.ModeInputFloat:
		if err := b.pins.ConfigureInput(c.Pin, c.Mode); err != nil {
			return nil, err
		}
	default:
		return nil, ErrBadMode
	}
	b.lines[c.OID] = l
	return nil, nil
}

func (b *Bridge) handleSetLine(m protocol.Message) ([]protocol.Message, error) {
	c := m.(*protocol.SetLine)
	l, ok := b.lines[c.OID]
	if !ok {
		return nil, ErrUnknownOID
	}
	if !l.isOutput() {
		return nil, ErrNotOutput
	}
	if err := b.pins.SetPin(l.pin, c.Value); err != nil {
		return nil, err
	}
	l.value = c.Value
	l.checkEnd = l.maxDuration > 0 && c.Value != l.def
	if l.checkEnd {
		l.deadline = b.now().Add(l.maxDuration)
	}
	return nil, nil
}

func (b *Bridge) handleQueryLine(m protocol.Message) ([]protocol.Message, error) {
	c := m.(*protocol.QueryLine)
	l, ok := b.lines[c.OID]
	if !ok {
		return nil, ErrUnknownOID
	}
	v := l.value
	if !l.isOutput() {
		var err error
		if v, err = b.pins.GetPin(l.pin); err != nil {
			return nil, err
		}
	}
	return []protocol.Message{&protocol.LineState{OID: c.OID, Value: v}}, nil
}

func (b *Bridge) handleAllOff(protocol.Message) ([]protocol.Message, error) {
	return nil, b.allOff()
}

func (b *Bridge) handleSetStatus(m protocol.Message) ([]protocol.Message, error) {
	c := m.(*protocol.SetStatus)
	if b.light == nil {
		return nil, ErrNoLight
	}
	return nil, b.light.SetColor(c.R, c.G, c.B)
}

func (b *Bridge) handleGetDictionary(m protocol.Message) ([]protocol.Message, error) {
	c := m.(*protocol.GetDictionary)
	start := min(int(c.Offset), len(b.dict))
	end := min(start+min(int(c.Count), protocol.DictionaryChunkMax), len(b.dict))
	return []protocol.Message{&protocol.DictionaryChunk{Offset: uint32(start), Data: b.dict[start:end]}}, nil
}

func oidOf(m protocol.Message) uint8 {
	switch m := m.(type) {
	case *protocol.ConfigLine:
		return m.OID
	case *protocol.SetLine:
		return m.OID
	case *protocol.QueryLine:
		return m.OID
	}
	return 0
}
