package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/shlex"

	"clawgate/core"
)

// maxManualPulse bounds a pulse typed at the console
const maxManualPulse = 5 * time.Second

type commandKind int

const (
	cmdNone commandKind = iota
	cmdIntent
	cmdHome
	cmdStatus
	cmdCoin
	cmdHelp
	cmdQuit
)

type command struct {
	kind    commandKind
	intent  core.Intent
	axis    core.Axis
	hasAxis bool
}

var errUnknownCommand = errors.New("unknown command")

// keyCommand maps the cabinet keys: w/s move X left/right, a/d move Y
// forward/back, y/x lower/raise the claw, g toggles the grip. v lowers the
// claw while the grip is open and raises it once closed.
func keyCommand(key byte, grip core.GripState) (command, bool) {
	move := func(a core.Axis, d core.Direction) (command, bool) {
		return command{kind: cmdIntent, intent: core.MoveAxis(a, d)}, true
	}
	switch key {
	case 'w':
		return move(core.AxisX, core.Left)
	case 's':
		return move(core.AxisX, core.Right)
	case 'a':
		return move(core.AxisY, core.Forward)
	case 'd':
		return move(core.AxisY, core.Backward)
	case 'y':
		return move(core.AxisZ, core.Down)
	case 'x':
		return move(core.AxisZ, core.Up)
	case 'v':
		if grip == core.GripClosed {
			return move(core.AxisZ, core.Up)
		}
		return move(core.AxisZ, core.Down)
	case 'g':
		return command{kind: cmdIntent, intent: core.ToggleGrip()}, true
	case ' ':
		return command{kind: cmdIntent, intent: core.StopAll()}, true
	case 'c':
		return command{kind: cmdCoin}, true
	case 'p':
		return command{kind: cmdStatus}, true
	case 'h', '?':
		return command{kind: cmdHelp}, true
	case 'q', 3: // ctrl-c in raw mode
		return command{kind: cmdQuit}, true
	}
	return command{}, false
}

// parseCommand parses one console line. Single-key lines behave like the
// key; longer lines are shell-split commands.
func parseCommand(line string, grip core.GripState) (command, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return command{}, err
	}
	if len(args) == 0 {
		return command{kind: cmdNone}, nil
	}
	if len(args) == 1 && len(args[0]) == 1 {
		if c, ok := keyCommand(args[0][0], grip); ok {
			return c, nil
		}
	}

	switch args[0] {
	case "move":
		if len(args) < 3 || len(args) > 4 {
			return command{}, fmt.Errorf("usage: move <axis> <direction> [pulse]")
		}
		axis, err := core.ParseAxis(args[1])
		if err != nil {
			return command{}, err
		}
		dir, err := core.ParseDirection(args[2])
		if err != nil {
			return command{}, err
		}
		if !axis.Legal(dir) {
			return command{}, fmt.Errorf("%w: %s/%s", core.ErrIllegalDirection, axis, dir)
		}
		in := core.MoveAxis(axis, dir)
		if len(args) == 4 {
			if in.Pulse, err = parsePulse(args[3]); err != nil {
				return command{}, err
			}
		}
		return command{kind: cmdIntent, intent: in}, nil
	case "grip":
		return command{kind: cmdIntent, intent: core.ToggleGrip()}, nil
	case "stop":
		return command{kind: cmdIntent, intent: core.StopAll()}, nil
	case "home":
		c := command{kind: cmdHome}
		if len(args) > 1 {
			if c.axis, err = core.ParseAxis(args[1]); err != nil {
				return command{}, err
			}
			c.hasAxis = true
		}
		return c, nil
	case "status":
		return command{kind: cmdStatus}, nil
	case "coin":
		return command{kind: cmdCoin}, nil
	case "help":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("%w: %q", errUnknownCommand, args[0])
}

// parsePulse accepts a Go duration ("300ms") or plain seconds ("0.5")
func parsePulse(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("bad pulse %q", s)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 || d > maxManualPulse {
		return 0, fmt.Errorf("pulse %s outside 0..%s", d, maxManualPulse)
	}
	return d, nil
}
