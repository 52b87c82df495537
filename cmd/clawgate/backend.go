package main

import (
	"context"
	"fmt"
	"log/slog"

	"clawgate/config"
	"clawgate/core"
	"clawgate/host/link"
	"clawgate/host/periph"
	"clawgate/host/serial"
	"clawgate/host/sim"
)

// openBackend opens the configured I/O boundary. The returned sim machine is
// non-nil only for the sim backend; closeIO may be nil.
func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (core.DigitalIO, *sim.Machine, func() error, error) {
	switch cfg.Backend {
	case "periph":
		specs, err := cfg.LineSpecs()
		if err != nil {
			return nil, nil, nil, err
		}
		b, err := periph.Open(specs, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return b, nil, b.Close, nil

	case "serial":
		lc, err := cfg.LinkConfig()
		if err != nil {
			return nil, nil, nil, err
		}
		port, err := serial.Open(cfg.SerialPort())
		if err != nil {
			return nil, nil, nil, err
		}
		l, err := link.Open(ctx, port, lc, log)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("bridge connected", "device", cfg.Serial.Device, "version", l.Version())
		return l, nil, l.Close, nil

	case "sim":
		sc, err := cfg.SimConfig()
		if err != nil {
			return nil, nil, nil, err
		}
		m, err := sim.New(sc, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return m, m, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
