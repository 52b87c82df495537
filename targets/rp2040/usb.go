//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication.
// On RP2040 machine.Serial is USB CDC-ACM, set up by the TinyGo runtime.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbRead drains up to len(buf) buffered bytes without blocking
func usbRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = c
		n++
	}
	return n
}

// usbWriter sends device replies, retrying partial writes
type usbWriter struct{}

func (usbWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}
