package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawgate/config"
	"clawgate/core"
	"clawgate/host/sim"
)

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		key  byte
		grip core.GripState
		want core.Intent
	}{
		{'w', core.GripOpen, core.MoveAxis(core.AxisX, core.Left)},
		{'s', core.GripOpen, core.MoveAxis(core.AxisX, core.Right)},
		{'a', core.GripOpen, core.MoveAxis(core.AxisY, core.Forward)},
		{'d', core.GripOpen, core.MoveAxis(core.AxisY, core.Backward)},
		{'y', core.GripClosed, core.MoveAxis(core.AxisZ, core.Down)},
		{'x', core.GripOpen, core.MoveAxis(core.AxisZ, core.Up)},
		{'v', core.GripOpen, core.MoveAxis(core.AxisZ, core.Down)},
		{'v', core.GripClosed, core.MoveAxis(core.AxisZ, core.Up)},
		{'g', core.GripOpen, core.ToggleGrip()},
		{' ', core.GripOpen, core.StopAll()},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			c, ok := keyCommand(tt.key, tt.grip)
			require.True(t, ok)
			assert.Equal(t, cmdIntent, c.kind)
			assert.Equal(t, tt.want, c.intent)
		})
	}

	c, ok := keyCommand('q', core.GripOpen)
	require.True(t, ok)
	assert.Equal(t, cmdQuit, c.kind)
	_, ok = keyCommand('z', core.GripOpen)
	assert.False(t, ok)
}

func TestParseCommand(t *testing.T) {
	c, err := parseCommand("move y forward 0.5", core.GripOpen)
	require.NoError(t, err)
	assert.Equal(t, core.IntentMove, c.intent.Kind)
	assert.Equal(t, core.AxisY, c.intent.Axis)
	assert.Equal(t, 500*time.Millisecond, c.intent.Pulse)

	c, err = parseCommand(`move "x" left 300ms`, core.GripOpen)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, c.intent.Pulse)

	c, err = parseCommand("home z", core.GripOpen)
	require.NoError(t, err)
	assert.Equal(t, cmdHome, c.kind)
	assert.True(t, c.hasAxis)
	assert.Equal(t, core.AxisZ, c.axis)

	c, err = parseCommand("v", core.GripClosed)
	require.NoError(t, err)
	assert.Equal(t, core.MoveAxis(core.AxisZ, core.Up), c.intent)

	c, err = parseCommand("   ", core.GripOpen)
	require.NoError(t, err)
	assert.Equal(t, cmdNone, c.kind)

	for _, bad := range []string{"move x forward", "move x", "move x left 9s", "move x left soon", "dance", `move "x`} {
		_, err := parseCommand(bad, core.GripOpen)
		assert.Error(t, err, bad)
	}
	_, err = parseCommand("dance", core.GripOpen)
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestFormatStatus(t *testing.T) {
	s := formatStatus(core.Status{
		State:      core.Active,
		PlayID:     "abc",
		Grip:       core.GripClosed,
		Counter:    2,
		CounterMax: 9,
		Limits:     map[string]bool{"z/up": true, "x/left": false, "y/backward": true},
	})
	assert.Equal(t, "state=active grip=closed counter=2 (0..9) play=abc limits=[y/backward z/up]", s)
}

func TestConsoleDrivesSimulator(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "sim"
	for k, ax := range cfg.Axes {
		ax.Pulse = time.Millisecond
		cfg.Axes[k] = ax
	}
	sc, err := cfg.SimConfig()
	require.NoError(t, err)
	m, err := sim.New(sc, nil)
	require.NoError(t, err)
	machine, err := cfg.Build(m, nil, nil)
	require.NoError(t, err)
	a := &app{cfg: cfg, sim: m, machine: machine}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	go func() {
		defer w.Close()
		_, _ = w.WriteString("s\nmove x right 1ms\ng\nstatus\nbogus\nhome\nquit\nw\n")
	}()

	var out bytes.Buffer
	con := &console{app: a, op: directOperator{machine}, in: r, w: &out, out: termenv.NewOutput(&out)}
	quit, err := con.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, quit)

	assert.Equal(t, 5, m.Position(core.AxisX), "two pulses right, nothing after quit")
	assert.True(t, m.Level("grip"))
	assert.Equal(t, 0, m.Position(core.AxisY), "home drives the counter axis back")
	assert.Contains(t, out.String(), "x/right moved")
	assert.Contains(t, out.String(), "grip closed")
	assert.Contains(t, out.String(), "unknown command")
	assert.Contains(t, out.String(), "y homed")
}

func TestManualHomesCounterAxisFirst(t *testing.T) {
	cfg := config.Default()
	for k, ax := range cfg.Axes {
		ax.Pulse = time.Millisecond
		cfg.Axes[k] = ax
	}
	sc, err := cfg.SimConfig()
	require.NoError(t, err)
	m, err := sim.New(sc, nil)
	require.NoError(t, err)
	require.Equal(t, 4, m.Position(core.AxisY))
	machine, err := cfg.Build(m, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, prepareManual(ctx, machine))
	assert.Equal(t, 0, m.Position(core.AxisY))

	op := directOperator{machine}
	var msg string
	for i := 0; i <= cfg.Counter.Max; i++ {
		msg, err = op.Do(ctx, core.MoveAxis(core.AxisY, core.Forward))
		require.NoError(t, err)
	}
	assert.Contains(t, msg, "vetoed: counter")
	assert.Equal(t, cfg.Counter.Max, m.Position(core.AxisY), "counter matches the carriage")
}

func TestQueueOperatorRefusesHoming(t *testing.T) {
	cfg := config.Default()
	sc, err := cfg.SimConfig()
	require.NoError(t, err)
	m, err := sim.New(sc, nil)
	require.NoError(t, err)
	machine, err := cfg.Build(m, nil, nil)
	require.NoError(t, err)

	op := queueOperator{machine.Sequencer}
	assert.Error(t, op.Home(context.Background(), core.AxisY))
	msg, err := op.Do(context.Background(), core.ToggleGrip())
	require.NoError(t, err)
	assert.Contains(t, msg, "queued")
}
