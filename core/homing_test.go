package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawgate/core"
)

func TestHomingResetsCounterFromAnyValue(t *testing.T) {
	for start := core.DefaultCounterMin; start <= core.DefaultCounterMax; start++ {
		r := newRig(t)
		ctx := context.Background()
		counter, _, _ := r.gantry.Counter()
		for i := 0; i < start; i++ {
			_, err := r.gantry.Move(ctx, core.AxisY, core.Forward)
			require.NoError(t, err)
		}
		// drift: the carriage is further out than the counter believes
		r.plant.place(core.AxisY, start+2)

		require.NoError(t, r.homing.Home(ctx, core.AxisY))
		assert.Equal(t, core.DefaultCounterMin, counter.Value(), "start %d", start)
		assert.Equal(t, 0, r.plant.at(core.AxisY))
		assert.Equal(t, []int{start + 2}, r.events.homed)
	}
}

func TestHomingAlreadyAtReference(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.homing.Home(context.Background(), core.AxisY))
	assert.Empty(t, r.io.raised())
	assert.Equal(t, []int{0}, r.events.homed)
}

func TestHomingTimesOut(t *testing.T) {
	r := newRig(t)
	homing, err := core.NewHomingRoutine(r.gantry, nil, 5)
	require.NoError(t, err)

	r.plant.place(core.AxisY, 3)
	r.io.onWrite = nil // disconnected motor: the switch never asserts

	err = homing.Home(context.Background(), core.AxisY)
	assert.ErrorIs(t, err, core.ErrHomingTimeout)
	assert.Len(t, r.io.raised(), 5)
}

func TestHomingOtherAxes(t *testing.T) {
	r := newRig(t)
	homing, err := core.NewHomingRoutine(r.gantry, map[core.Axis]core.Direction{core.AxisX: core.Left}, 0)
	require.NoError(t, err)

	ref, ok := homing.Reference(core.AxisY)
	require.True(t, ok)
	assert.Equal(t, core.Backward, ref)

	require.NoError(t, homing.Home(context.Background(), core.AxisX))
	assert.Equal(t, 0, r.plant.at(core.AxisX))

	err = homing.Home(context.Background(), core.AxisZ)
	assert.ErrorIs(t, err, core.ErrNoReference)
}

func TestNewHomingRoutineNeedsASwitch(t *testing.T) {
	r := newRig(t)
	_, err := core.NewHomingRoutine(r.gantry, map[core.Axis]core.Direction{core.AxisZ: core.Down}, 0)
	assert.ErrorIs(t, err, core.ErrNoReference)
}

func TestHomingStopsOnCancel(t *testing.T) {
	r := newRig(t)
	r.plant.place(core.AxisY, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.homing.Home(ctx, core.AxisY)
	assert.ErrorIs(t, err, context.Canceled)
	for _, line := range r.gantry.OutputLines() {
		assert.False(t, r.io.level(line))
	}
}
