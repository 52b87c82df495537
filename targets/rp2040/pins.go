//go:build rp2040

package main

import (
	"errors"
	"machine"

	"clawgate/protocol"
)

var (
	errBadPin   = errors.New("no such gpio")
	errReserved = errors.New("pin reserved by the firmware")
)

// machinePins implements bridge.PinDriver on GPIO0-GPIO29. Pins are named
// "gpioN" or "GPN" in any case.
type machinePins struct {
	reserved map[machine.Pin]bool
}

func newMachinePins(reserved ...machine.Pin) *machinePins {
	p := &machinePins{reserved: make(map[machine.Pin]bool, len(reserved))}
	for _, r := range reserved {
		p.reserved[r] = true
	}
	return p
}

func (p *machinePins) lookup(name string) (machine.Pin, error) {
	n, ok := parsePin(name)
	if !ok || n > 29 {
		return 0, errBadPin
	}
	pin := machine.Pin(n)
	if p.reserved[pin] {
		return 0, errReserved
	}
	return pin, nil
}

func (p *machinePins) ConfigureOutput(name string, initial bool) error {
	pin, err := p.lookup(name)
	if err != nil {
		return err
	}
	pin.Set(initial)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Set(initial)
	return nil
}

func (p *machinePins) ConfigureInput(name string, mode uint8) error {
	pin, err := p.lookup(name)
	if err != nil {
		return err
	}
	switch mode {
	case protocol.ModeInputPullUp:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	case protocol.ModeInputPullDown:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	default:
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	}
	return nil
}

func (p *machinePins) SetPin(name string, value bool) error {
	pin, err := p.lookup(name)
	if err != nil {
		return err
	}
	pin.Set(value)
	return nil
}

func (p *machinePins) GetPin(name string) (bool, error) {
	pin, err := p.lookup(name)
	if err != nil {
		return false, err
	}
	return pin.Get(), nil
}

// parsePin extracts N from "gpioN"/"GPN" without strconv
func parsePin(name string) (uint8, bool) {
	i := 0
	for i < len(name) && (name[i] < '0' || name[i] > '9') {
		i++
	}
	prefix := lower(name[:i])
	if (prefix != "gpio" && prefix != "gp") || i == len(name) || len(name)-i > 2 {
		return 0, false
	}
	var n uint8
	for _, c := range name[i:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint8(c-'0')
	}
	return n, true
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
