//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// statusLightPin drives the cabinet WS2812 (the onboard LED of RP2040-Zero
// style boards)
const statusLightPin = machine.GPIO16

// statusLight is a bridge.Light on a single WS2812
type statusLight struct {
	dev ws2812.Device
}

func newStatusLight(pin machine.Pin) *statusLight {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &statusLight{dev: ws2812.New(pin)}
}

func (l *statusLight) SetColor(r, g, b uint8) error {
	return l.dev.WriteColors([]color.RGBA{{R: r, G: g, B: b, A: 0xff}})
}
