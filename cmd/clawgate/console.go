package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"clawgate/config"
	"clawgate/core"
)

// operator carries out console commands
type operator interface {
	Do(ctx context.Context, in core.Intent) (string, error)
	Home(ctx context.Context, axis core.Axis) error
	Grip() core.GripState
}

// directOperator drives the machine itself; every move still goes through
// the gantry interlock
type directOperator struct {
	m *config.Machine
}

func (o directOperator) Do(ctx context.Context, in core.Intent) (string, error) {
	switch in.Kind {
	case core.IntentMove:
		res, err := o.m.Gantry.MoveFor(ctx, in.Axis, in.Direction, in.Pulse)
		if err != nil {
			return "", err
		}
		if res.Vetoed() {
			return fmt.Sprintf("%s/%s vetoed: %s", in.Axis, in.Direction, res), nil
		}
		return fmt.Sprintf("%s/%s moved", in.Axis, in.Direction), nil
	case core.IntentToggleGrip:
		st, err := o.m.Grip.Toggle()
		if err != nil {
			return "", err
		}
		return "grip " + st.String(), nil
	case core.IntentStopAll:
		return "stopped", o.m.Gantry.StopAll()
	}
	return "", fmt.Errorf("unsupported intent %s", in)
}

func (o directOperator) Home(ctx context.Context, axis core.Axis) error {
	return o.m.Homing.Home(ctx, axis)
}

func (o directOperator) Grip() core.GripState {
	return o.m.Grip.State()
}

// queueOperator hands intents to a running sequencer
type queueOperator struct {
	seq *core.PlaySequencer
}

func (o queueOperator) Do(_ context.Context, in core.Intent) (string, error) {
	if !o.seq.Submit(in) {
		return "dropped, queue full", nil
	}
	return in.String() + " queued", nil
}

func (o queueOperator) Home(context.Context, core.Axis) error {
	return errors.New("homing is automatic while the play cycle runs")
}

func (o queueOperator) Grip() core.GripState {
	return o.seq.Status().Grip
}

const helpText = `# clawgate console

| key | action |
|-----|--------|
| w / s | X left / right |
| a / d | Y forward / back |
| y / x | Z down / up |
| v | Z down while open, up while closed |
| g | toggle grip |
| space | stop all motors |
| c | insert a coin (simulator) |
| p | status |
| q | quit |

Line commands: ` + "`move <axis> <direction> [pulse]`, `grip`, `stop`, `home [axis]`, `status`, `coin`, `help`, `quit`." + `
`

// console reads keys (terminal) or lines (pipe) and runs them
type console struct {
	app *app
	op  operator
	in  *os.File
	w   io.Writer
	out *termenv.Output
	raw bool
}

// newConsole puts a terminal stdin into raw mode when keys is true. The
// returned restore func must run before the process exits.
func newConsole(a *app, op operator, in, out *os.File, keys bool) (*console, func(), error) {
	c := &console{app: a, op: op, in: in, w: out, out: termenv.NewOutput(out)}
	restore := func() {}
	fd := int(in.Fd())
	if keys && term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, nil, fmt.Errorf("console: raw mode: %w", err)
		}
		c.raw = true
		restore = func() { _ = term.Restore(fd, state) }
	}
	return c, restore, nil
}

func (c *console) print(s string) {
	if c.raw {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	_, _ = io.WriteString(c.w, s)
}

func (c *console) styled(s, color string) string {
	return c.out.String(s).Foreground(c.out.Color(color)).String()
}

func (c *console) prompt() {
	if !c.raw {
		c.print(c.out.String("clawgate> ").Bold().Foreground(c.out.Color("#38bdf8")).String())
	}
}

func (c *console) help() {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(78))
	if err == nil {
		if s, err := r.Render(helpText); err == nil {
			c.print(s)
			return
		}
	}
	c.print(helpText)
}

// Run processes input until quit, EOF or ctx is done. quit reports an
// explicit quit command.
func (c *console) Run(ctx context.Context) (quit bool, err error) {
	input := make(chan string)
	go c.read(input)

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case s, ok := <-input:
			if !ok {
				return false, nil
			}
			var cmd command
			if c.raw {
				var known bool
				if cmd, known = keyCommand(s[0], c.op.Grip()); !known {
					continue
				}
			} else if cmd, err = parseCommand(s, c.op.Grip()); err != nil {
				c.print(c.styled(err.Error(), "#ef4444") + "\n")
				c.prompt()
				continue
			}
			done, err := c.exec(ctx, cmd)
			if err != nil || done {
				return done, err
			}
			c.prompt()
		}
	}
}

func (c *console) read(out chan<- string) {
	defer close(out)
	if c.raw {
		buf := make([]byte, 1)
		for {
			if _, err := c.in.Read(buf); err != nil {
				return
			}
			out <- string(buf)
		}
	}
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func (c *console) exec(ctx context.Context, cmd command) (bool, error) {
	switch cmd.kind {
	case cmdIntent:
		msg, err := c.op.Do(ctx, cmd.intent)
		if err != nil {
			return false, err
		}
		color := "#22c55e"
		if strings.Contains(msg, "vetoed") || strings.Contains(msg, "dropped") {
			color = "#f59e0b"
		}
		c.print(c.styled(msg, color) + "\n")
	case cmdHome:
		axis := cmd.axis
		if !cmd.hasAxis {
			_, axis, _ = c.app.machine.Gantry.Counter()
		}
		if err := c.op.Home(ctx, axis); err != nil {
			if errors.Is(err, core.ErrIO) {
				return false, err
			}
			c.print(c.styled(err.Error(), "#ef4444") + "\n")
			return false, nil
		}
		c.print(c.styled(axis.String()+" homed", "#22c55e") + "\n")
	case cmdStatus:
		c.print(formatStatus(c.app.machine.Sequencer.Status()) + "\n")
	case cmdCoin:
		if c.app.sim == nil {
			c.print("the coin acceptor is hardware on this backend\n")
			break
		}
		c.app.sim.InsertCoin()
		c.print("coin inserted\n")
	case cmdHelp:
		c.help()
	case cmdQuit:
		return true, nil
	}
	return false, nil
}

func formatStatus(st core.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state=%s grip=%s counter=%d (%d..%d)", st.State, st.Grip, st.Counter, st.CounterMin, st.CounterMax)
	if st.PlayID != "" {
		fmt.Fprintf(&b, " play=%s", st.PlayID)
	}
	if st.DeliveryStep != "" {
		fmt.Fprintf(&b, " step=%s", st.DeliveryStep)
	}
	var blocked []string
	for k, v := range st.Limits {
		if v {
			blocked = append(blocked, k)
		}
	}
	sort.Strings(blocked)
	fmt.Fprintf(&b, " limits=[%s]", strings.Join(blocked, " "))
	return b.String()
}
