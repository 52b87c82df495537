//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Heartbeat blinker. Each 32-bit FIFO word is one blink:
//
//	Bits 0-15:  on loops
//	Bits 16-31: off loops
//
// Every loop is 32 state machine cycles, so at the divided clock one loop is
// roughly 15ms.
func buildBlinkProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                     // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),              // 1: out x, 16 (on loops)
		asm.Out(rp2pio.OutDestY, 16).Encode(),              // 2: out y, 16 (off loops)
		asm.Set(rp2pio.SetDestPins, 1).Encode(),            // 3: set pins, 1
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Delay(31).Encode(), // 4: jmp x--, 4 [31]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),            // 5: set pins, 0
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Delay(31).Encode(), // 6: jmp y--, 6 [31]
		// .wrap
	}
}

const (
	blinkOrigin = 0
	blinkOn     = 6
	blinkOff    = 6
)

// heartbeat flashes an LED from a PIO state machine so link activity is
// visible without spending main loop time on it
type heartbeat struct {
	sm rp2pio.StateMachine
	ok bool
}

func newHeartbeat(pin machine.Pin) *heartbeat {
	pio := rp2pio.PIO0
	h := &heartbeat{sm: pio.StateMachine(0)}
	h.sm.TryClaim()

	program := buildBlinkProgram()
	offset, err := pio.AddProgram(program, blinkOrigin)
	if err != nil {
		return h
	}
	pin.Configure(machine.PinConfig{Mode: pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(60000, 0)

	h.sm.Init(offset, cfg)
	h.sm.SetPindirsConsecutive(pin, 1, true)
	h.sm.SetPinsConsecutive(pin, 1, false)
	h.sm.SetEnabled(true)
	h.ok = true
	return h
}

// Pulse queues one blink; it is dropped while the FIFO is full
func (h *heartbeat) Pulse() {
	if !h.ok || h.sm.IsTxFIFOFull() {
		return
	}
	h.sm.TxPut(uint32(blinkOn) | uint32(blinkOff)<<16)
}
