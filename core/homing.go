package core

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultHomingAttempts bounds a homing pass. The counter range is 0..9, so
// sixty pulses is several full strokes of margin.
const DefaultHomingAttempts = 60

// HomingRoutine drives an axis to its reference switch and, for the counter
// axis, resets the TravelCounter. It is the only way the counter returns to a
// known-good value.
type HomingRoutine struct {
	gantry      *Gantry
	references  map[Axis]Direction
	maxAttempts int

	log      *slog.Logger
	observer Observer
}

// NewHomingRoutine creates a routine. references maps each homeable axis to
// the direction of its reference switch; the counter axis defaults to the
// counter's reference direction. maxAttempts <= 0 means DefaultHomingAttempts.
func NewHomingRoutine(g *Gantry, references map[Axis]Direction, maxAttempts int, opts ...Option) (*HomingRoutine, error) {
	o := buildOptions(opts)
	refs := make(map[Axis]Direction, len(references)+1)
	for a, d := range references {
		refs[a] = d
	}
	if c, axis, ok := g.Counter(); ok {
		if _, set := refs[axis]; !set {
			refs[axis] = c.Reference()
		}
	}
	for a, d := range refs {
		if !a.Legal(d) {
			return nil, fmt.Errorf("%w: %s/%s", ErrIllegalDirection, a, d)
		}
		if !g.Limits().Has(a, d) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNoReference, a, d)
		}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultHomingAttempts
	}
	return &HomingRoutine{
		gantry:      g,
		references:  refs,
		maxAttempts: maxAttempts,
		log:         o.log.With("component", "homing"),
		observer:    o.observer,
	}, nil
}

// Home pulses axis toward its reference until the switch asserts, then resets
// the axis's counter. The limit state is re-sampled on every iteration.
// It fails with ErrHomingTimeout after maxAttempts pulses.
func (h *HomingRoutine) Home(ctx context.Context, axis Axis) error {
	ref, ok := h.references[axis]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoReference, axis)
	}
	driver, ok := h.gantry.Driver(axis)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	limits := h.gantry.Limits()
	start := h.gantry.Clock().Now()

	for pulses := 0; ; pulses++ {
		if err := limits.Refresh(); err != nil {
			return err
		}
		if limits.IsBlocked(axis, ref) {
			if c := driver.Counter(); c != nil {
				c.Reset()
			}
			elapsed := h.gantry.Clock().Now().Sub(start)
			h.log.Info("homed", "axis", axis, "pulses", pulses, "elapsed", elapsed)
			h.observer.Homed(axis, pulses, elapsed)
			return nil
		}
		if pulses >= h.maxAttempts {
			h.log.Error("homing gave up", "axis", axis, "pulses", pulses)
			return fmt.Errorf("%w: %s after %d pulses", ErrHomingTimeout, axis, pulses)
		}
		if _, err := driver.Move(ctx, ref); err != nil {
			return err
		}
	}
}

// Reference returns the homing direction for axis
func (h *HomingRoutine) Reference(axis Axis) (Direction, bool) {
	d, ok := h.references[axis]
	return d, ok
}
