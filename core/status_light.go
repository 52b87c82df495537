package core

import "log/slog"

// Color is an RGB cabinet light value
type Color struct {
	R, G, B uint8
}

// Default cabinet colors per play state
var DefaultPalette = map[PlayState]Color{
	AwaitingCoin: {0, 0, 64},
	Homing:       {32, 0, 32},
	Active:       {0, 64, 0},
	Delivering:   {64, 40, 0},
}

// StatusObserver mirrors the play state onto a StatusLight. Write failures
// are logged and otherwise ignored.
type StatusObserver struct {
	NopObserver
	light   StatusLight
	palette map[PlayState]Color
	log     *slog.Logger
}

// NewStatusObserver creates an observer; a nil palette uses DefaultPalette
func NewStatusObserver(light StatusLight, palette map[PlayState]Color, log *slog.Logger) *StatusObserver {
	if palette == nil {
		palette = DefaultPalette
	}
	if log == nil {
		log = buildOptions(nil).log
	}
	return &StatusObserver{light: light, palette: palette, log: log}
}

func (o *StatusObserver) StateChanged(_, to PlayState) {
	c, ok := o.palette[to]
	if !ok {
		return
	}
	if err := o.light.SetStatus(c.R, c.G, c.B); err != nil {
		o.log.Warn("status light update failed", "state", to, "error", err)
	}
}
