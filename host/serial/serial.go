// Package serial opens the USB CDC port of the IO bridge
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open serial connection
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// ReadTimeout of zero blocks until data arrives. The link reader relies
	// on blocking reads.
	ReadTimeout time.Duration
}

// DefaultConfig returns the bridge defaults for device
func DefaultConfig(device string) Config {
	return Config{Device: device, Baud: 115200}
}

type nativePort struct {
	*serial.Port
}

// Open opens a native serial port
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: no device configured")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return nativePort{p}, nil
}
