package core_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawgate/core"
)

func TestMoveNeverAssertsBothLinesOfAnAxis(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	pairs := map[core.LineID]core.LineID{
		lineXLeft: lineXRight, lineXRight: lineXLeft,
		lineYFwd: lineYBack, lineYBack: lineYFwd,
		lineZUp: lineZDown, lineZDown: lineZUp,
	}
	plantHook := r.io.onWrite
	var violations int
	r.io.onWrite = func(line core.LineID, level bool) {
		if other, ok := pairs[line]; ok && level && r.io.level(other) {
			violations++
		}
		plantHook(line, level)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		axis := core.Axes[rng.Intn(len(core.Axes))]
		dirs := axis.Directions()
		_, err := r.gantry.Move(ctx, axis, dirs[rng.Intn(2)])
		require.NoError(t, err)
	}
	assert.Zero(t, violations)
	for line := range pairs {
		assert.False(t, r.io.level(line), "line %s left asserted", line)
	}
}

func TestMoveStopsAllOutputsFirst(t *testing.T) {
	r := newRig(t)
	_, err := r.gantry.Move(context.Background(), core.AxisX, core.Right)
	require.NoError(t, err)

	var lowered []core.LineID
	for _, w := range r.io.writes {
		if w.Level {
			break
		}
		lowered = append(lowered, w.Line)
	}
	assert.ElementsMatch(t, r.gantry.OutputLines(), lowered)
	assert.Equal(t, []core.LineID{lineXRight}, r.io.raised())
	assert.Equal(t, 3, r.plant.at(core.AxisX))
}

func TestMoveVetoedWhenSwitchAlreadyAsserted(t *testing.T) {
	r := newRig(t)
	r.plant.place(core.AxisZ, 0)
	r.io.resetWrites()

	res, err := r.gantry.Move(context.Background(), core.AxisZ, core.Up)
	require.NoError(t, err)
	assert.Equal(t, core.VetoLimit, res)
	assert.Empty(t, r.io.raised(), "no pulse may be emitted")
	for _, line := range r.gantry.OutputLines() {
		assert.False(t, r.io.level(line))
	}
	assert.Equal(t, []vetoed{{core.AxisZ, core.Up, core.VetoLimit}}, r.events.vetoes)

	res, err = r.gantry.Move(context.Background(), core.AxisZ, core.Down)
	require.NoError(t, err)
	assert.Equal(t, core.Moved, res, "the opposite direction stays free")
}

func TestMoveAdvancesAndBoundsTheCounter(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	counter, axis, ok := r.gantry.Counter()
	require.True(t, ok)
	require.Equal(t, core.AxisY, axis)

	for i := 1; i <= core.DefaultCounterMax; i++ {
		res, err := r.gantry.Move(ctx, core.AxisY, core.Forward)
		require.NoError(t, err)
		require.Equal(t, core.Moved, res)
		require.Equal(t, i, counter.Value())
	}

	r.io.resetWrites()
	res, err := r.gantry.Move(ctx, core.AxisY, core.Forward)
	require.NoError(t, err)
	assert.Equal(t, core.VetoCounter, res)
	assert.Equal(t, core.DefaultCounterMax, counter.Value())
	assert.Empty(t, r.io.raised())

	res, err = r.gantry.Move(ctx, core.AxisY, core.Backward)
	require.NoError(t, err)
	assert.Equal(t, core.Moved, res)
	assert.Equal(t, core.DefaultCounterMax-1, counter.Value())
}

func TestCounterAxisKeepsItsPulse(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	counter, _, _ := r.gantry.Counter()

	for i := 0; i < core.DefaultCounterMax; i++ {
		res, err := r.gantry.MoveFor(ctx, core.AxisY, core.Forward, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, core.Moved, res)
	}
	res, err := r.gantry.MoveFor(ctx, core.AxisY, core.Forward, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.VetoCounter, res)

	var forward time.Duration
	for _, d := range r.clock.slept {
		forward += d
	}
	assert.Equal(t, time.Duration(core.DefaultCounterMax)*core.DefaultPulse, forward)
	assert.Equal(t, core.DefaultCounterMax, counter.Value())

	_, err = r.gantry.MoveFor(ctx, core.AxisY, core.Backward, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultPulse, r.clock.slept[len(r.clock.slept)-1])
	assert.Equal(t, core.DefaultCounterMax-1, counter.Value())
}

func TestCounterAxisPulseThroughSubmit(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.seq.Start(ctx))
	r.insertCoin(t, ctx)
	require.Equal(t, core.Active, r.seq.State())

	r.clock.slept = nil
	long := core.MoveAxis(core.AxisY, core.Forward)
	long.Pulse = 5 * time.Second
	for i := 0; i < core.DefaultCounterMax+2; i++ {
		require.True(t, r.seq.Submit(long))
		require.NoError(t, r.seq.Tick(ctx))
	}
	counter, _, _ := r.gantry.Counter()
	assert.Equal(t, core.DefaultCounterMax, counter.Value())
	for _, d := range r.clock.slept {
		assert.Equal(t, core.DefaultPulse, d)
	}
	assert.Len(t, r.clock.slept, core.DefaultCounterMax)
}

func TestFailedMoveIsNotAVeto(t *testing.T) {
	r := newRig(t)
	res, err := r.gantry.Move(context.Background(), core.AxisX, core.Forward)
	require.Error(t, err)
	assert.Equal(t, core.MoveFailed, res)
	assert.False(t, res.Vetoed())

	r.io.failWrite[lineXRight] = errBus
	res, err = r.gantry.Move(context.Background(), core.AxisX, core.Right)
	require.Error(t, err)
	assert.Equal(t, core.MoveFailed, res)

	res, err = r.gantry.Move(context.Background(), core.Axis(9), core.Left)
	require.Error(t, err)
	assert.Equal(t, core.MoveFailed, res)
	assert.Empty(t, r.events.vetoes)
}

func TestMovePulseIgnoresCancellation(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	r.clock.onSleep = func(time.Duration) { cancel() }

	res, err := r.gantry.MoveFor(ctx, core.AxisX, core.Right, 350*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, core.Moved, res)
	assert.Equal(t, []time.Duration{350 * time.Millisecond}, r.clock.slept)
	assert.False(t, r.io.level(lineXRight))

	_, err = r.gantry.Move(ctx, core.AxisX, core.Right)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMoveRejectsIllegalDirection(t *testing.T) {
	r := newRig(t)
	_, err := r.gantry.Move(context.Background(), core.AxisX, core.Forward)
	assert.ErrorIs(t, err, core.ErrIllegalDirection)
	assert.Empty(t, r.io.writes)
}

func TestMoveWriteFailureIsIOError(t *testing.T) {
	r := newRig(t)
	r.io.failWrite[lineXRight] = errBus

	_, err := r.gantry.Move(context.Background(), core.AxisX, core.Right)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIO)
	assert.ErrorIs(t, err, errBus)
}

func TestNewGantryRejectsBadConfig(t *testing.T) {
	io := newFakeIO()
	limits, err := core.NewLimitSwitchMonitor(io, nil, limitBindings()...)
	require.NoError(t, err)

	shared := axisConfigs()
	shared[1].Lines = map[core.Direction]core.LineID{core.Forward: lineXLeft, core.Backward: lineYBack}
	_, err = core.NewGantry(io, limits, nil, shared, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	guarded := counterBinding()
	guarded.Axis = core.AxisZ
	guarded.Saturating = core.Up
	guarded.Reference = core.Down
	_, err = core.NewGantry(io, limits, nil, axisConfigs(), guarded)
	assert.ErrorIs(t, err, core.ErrInvalidConfig, "saturating direction may not have a switch")

	mismatched := counterBinding()
	mismatched.Reference = core.Left
	_, err = core.NewGantry(io, limits, nil, axisConfigs(), mismatched)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
