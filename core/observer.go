package core

import (
	"io"
	"log/slog"
	"time"
)

// Observer receives lifecycle events from the core. Calls happen on the
// control goroutine, so implementations must not block.
type Observer interface {
	StateChanged(from, to PlayState)
	Moved(axis Axis, dir Direction, pulse time.Duration)
	Vetoed(axis Axis, dir Direction, result MoveResult)
	Coin(accepted bool)
	GripChanged(state GripState)
	Homed(axis Axis, pulses int, elapsed time.Duration)
}

// NopObserver ignores every event; embed it to implement a subset
type NopObserver struct{}

func (NopObserver) StateChanged(from, to PlayState)                    {}
func (NopObserver) Moved(axis Axis, dir Direction, pulse time.Duration) {}
func (NopObserver) Vetoed(axis Axis, dir Direction, result MoveResult)  {}
func (NopObserver) Coin(accepted bool)                                 {}
func (NopObserver) GripChanged(state GripState)                        {}
func (NopObserver) Homed(axis Axis, pulses int, elapsed time.Duration) {}

// Observers fans events out in order
type Observers []Observer

func (os Observers) StateChanged(from, to PlayState) {
	for _, o := range os {
		o.StateChanged(from, to)
	}
}

func (os Observers) Moved(axis Axis, dir Direction, pulse time.Duration) {
	for _, o := range os {
		o.Moved(axis, dir, pulse)
	}
}

func (os Observers) Vetoed(axis Axis, dir Direction, result MoveResult) {
	for _, o := range os {
		o.Vetoed(axis, dir, result)
	}
}

func (os Observers) Coin(accepted bool) {
	for _, o := range os {
		o.Coin(accepted)
	}
}

func (os Observers) GripChanged(state GripState) {
	for _, o := range os {
		o.GripChanged(state)
	}
}

func (os Observers) Homed(axis Axis, pulses int, elapsed time.Duration) {
	for _, o := range os {
		o.Homed(axis, pulses, elapsed)
	}
}

// Option configures the logging and observation of a core component
type Option func(*options)

type options struct {
	log      *slog.Logger
	observer Observer
}

// WithLogger sets the component logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithObserver sets the component observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: NopObserver{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
