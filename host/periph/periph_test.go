package periph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"clawgate/core"
)

func testBoard(t *testing.T) (*Board, map[string]*gpiotest.Pin) {
	t.Helper()
	pins := map[string]*gpiotest.Pin{
		"GPIO17": {N: "GPIO17", Num: 17, L: gpio.High},
		"GPIO12": {N: "GPIO12", Num: 12},
		"GPIO26": {N: "GPIO26", Num: 26, L: gpio.High},
	}
	resolve := func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}
	b, err := New([]core.LineSpec{
		{ID: "x_left", Pin: "GPIO17", Mode: core.LineOutput},
		{ID: "limit_x_left", Pin: "GPIO12", Mode: core.LineInputPullUp},
		{ID: "coin", Pin: "GPIO26", Mode: core.LineInputPullDown},
	}, resolve, nil)
	require.NoError(t, err)
	return b, pins
}

func TestBoardConfiguresPins(t *testing.T) {
	_, pins := testBoard(t)
	assert.Equal(t, gpio.Low, pins["GPIO17"].L, "outputs start low")
	assert.Equal(t, gpio.PullUp, pins["GPIO12"].P)
	assert.Equal(t, gpio.PullDown, pins["GPIO26"].P)
}

func TestBoardReadWrite(t *testing.T) {
	b, pins := testBoard(t)

	require.NoError(t, b.WriteLine("x_left", true))
	assert.Equal(t, gpio.High, pins["GPIO17"].L)

	pins["GPIO12"].L = gpio.Low
	v, err := b.ReadLine("limit_x_left")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = b.ReadLine("missing")
	assert.ErrorIs(t, err, ErrUnknownLine)
	assert.ErrorIs(t, b.WriteLine("missing", true), ErrUnknownLine)
}

func TestBoardCloseDropsOutputs(t *testing.T) {
	b, pins := testBoard(t)
	coin := pins["GPIO26"].L
	require.NoError(t, b.WriteLine("x_left", true))
	require.NoError(t, b.Close())
	assert.Equal(t, gpio.Low, pins["GPIO17"].L)
	assert.Equal(t, coin, pins["GPIO26"].L, "inputs are untouched")
}

func TestNewUnknownPin(t *testing.T) {
	_, err := New([]core.LineSpec{{ID: "grip", Pin: "GPIO99"}}, func(string) gpio.PinIO { return nil }, nil)
	assert.ErrorContains(t, err, "GPIO99")
}

func TestNewUnknownPinDropsConfiguredOutputs(t *testing.T) {
	out := &gpiotest.Pin{N: "GPIO17", Num: 17}
	resolve := func(name string) gpio.PinIO {
		if name == "GPIO17" {
			return out
		}
		out.L = gpio.High // driven by someone else before the failure
		return nil
	}
	_, err := New([]core.LineSpec{
		{ID: "x_left", Pin: "GPIO17", Mode: core.LineOutput},
		{ID: "grip", Pin: "GPIO99", Mode: core.LineOutput},
	}, resolve, nil)
	require.Error(t, err)
	assert.Equal(t, gpio.Low, out.L)
}
