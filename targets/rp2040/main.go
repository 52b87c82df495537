//go:build rp2040

// Command rp2040 is the IO bridge firmware: it exposes the cabinet lines
// over USB CDC and runs the line commands the host sends.
package main

import (
	"machine"
	"time"

	"clawgate/bridge"
	"clawgate/protocol"
)

// watchdogMillis resets the MCU, and with it every pin, if the main loop stalls
const watchdogMillis = 2000

var (
	framesIn uint32
	errCount uint32
)

func main() {
	InitUSB()

	pins := newMachinePins(statusLightPin, machine.LED)
	light := newStatusLight(statusLightPin)
	beat := newHeartbeat(machine.LED)

	b := bridge.New(pins, bridge.WithLight(light))
	dev := protocol.NewDevice(usbWriter{}, b.Handle)
	dev.SetResetCallback(func() {
		// host restarted its sequence; stop every motor
		_ = b.AllOff()
	})

	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogMillis}); err == nil {
		_ = machine.Watchdog.Start()
	}

	buf := make([]byte, protocol.FrameMax)
	for {
		func() {
			// Recover from panics in the main loop to keep the link alive
			defer func() {
				if r := recover(); r != nil {
					errCount++
					_ = b.AllOff()
				}
			}()

			if n := usbRead(buf); n > 0 {
				if err := dev.Receive(buf[:n]); err != nil {
					errCount++
				}
				framesIn++
				beat.Pulse()
			}
			b.Expire()
			machine.Watchdog.Update()
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}
