package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clawgate/core"
)

const (
	lineXLeft   core.LineID = "x_left"
	lineXRight  core.LineID = "x_right"
	lineYFwd    core.LineID = "y_forward"
	lineYBack   core.LineID = "y_backward"
	lineZUp     core.LineID = "z_up"
	lineZDown   core.LineID = "z_down"
	lineGrip    core.LineID = "grip"
	lineGrip2   core.LineID = "grip2"
	lineCoin    core.LineID = "coin"
	limitXLeft  core.LineID = "limit_x_left"
	limitXRight core.LineID = "limit_x_right"
	limitYBack  core.LineID = "limit_y_back"
	limitZUp    core.LineID = "limit_z_up"
)

var errBus = errors.New("bus fault")

type write struct {
	Line  core.LineID
	Level bool
}

// fakeIO is a line-level DigitalIO with optional failure injection
type fakeIO struct {
	mu        sync.Mutex
	levels    map[core.LineID]bool
	writes    []write
	failRead  map[core.LineID]error
	failWrite map[core.LineID]error
	onWrite   func(line core.LineID, level bool)
}

func newFakeIO() *fakeIO {
	return &fakeIO{
		levels:    map[core.LineID]bool{},
		failRead:  map[core.LineID]error{},
		failWrite: map[core.LineID]error{},
	}
}

func (f *fakeIO) ReadLine(line core.LineID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRead[line]; err != nil {
		return false, err
	}
	return f.levels[line], nil
}

func (f *fakeIO) WriteLine(line core.LineID, level bool) error {
	f.mu.Lock()
	if err := f.failWrite[line]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.levels[line] = level
	f.writes = append(f.writes, write{line, level})
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(line, level)
	}
	return nil
}

func (f *fakeIO) set(line core.LineID, level bool) {
	f.mu.Lock()
	f.levels[line] = level
	f.mu.Unlock()
}

func (f *fakeIO) level(line core.LineID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line]
}

func (f *fakeIO) raised() []core.LineID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.LineID
	for _, w := range f.writes {
		if w.Level {
			out = append(out, w.Line)
		}
	}
	return out
}

func (f *fakeIO) resetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

// fakeClock advances instantly on Sleep
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	slept   []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// plant is a tiny claw machine model driven by fakeIO writes. A pulse moves
// one step when its line drops. Limit inputs are active-low.
type plant struct {
	io  *fakeIO
	mu  sync.Mutex
	pos map[core.Axis]int

	// span is the last reachable position per axis
	span map[core.Axis]int
}

func newPlant(io *fakeIO) *plant {
	p := &plant{
		io:   io,
		pos:  map[core.Axis]int{core.AxisX: 2, core.AxisY: 0, core.AxisZ: 0},
		span: map[core.Axis]int{core.AxisX: 4, core.AxisY: 12, core.AxisZ: 3},
	}
	io.onWrite = p.onWrite
	p.sync()
	return p
}

var plantSteps = map[core.LineID]struct {
	axis core.Axis
	step int
}{
	lineXLeft:  {core.AxisX, -1},
	lineXRight: {core.AxisX, +1},
	lineYBack:  {core.AxisY, -1},
	lineYFwd:   {core.AxisY, +1},
	lineZUp:    {core.AxisZ, -1},
	lineZDown:  {core.AxisZ, +1},
}

func (p *plant) onWrite(line core.LineID, level bool) {
	s, ok := plantSteps[line]
	if !ok || level {
		return
	}
	p.mu.Lock()
	next := p.pos[s.axis] + s.step
	if next >= 0 && next <= p.span[s.axis] {
		p.pos[s.axis] = next
	}
	p.mu.Unlock()
	p.sync()
}

func (p *plant) sync() {
	p.mu.Lock()
	x, y, z := p.pos[core.AxisX], p.pos[core.AxisY], p.pos[core.AxisZ]
	spanX := p.span[core.AxisX]
	p.mu.Unlock()
	p.io.set(limitXLeft, x != 0)
	p.io.set(limitXRight, x != spanX)
	p.io.set(limitYBack, y != 0)
	p.io.set(limitZUp, z != 0)
}

func (p *plant) place(axis core.Axis, pos int) {
	p.mu.Lock()
	p.pos[axis] = pos
	p.mu.Unlock()
	p.sync()
}

func (p *plant) at(axis core.Axis) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos[axis]
}

// rig is a fully wired machine on top of fakeIO
type rig struct {
	io     *fakeIO
	clock  *fakeClock
	plant  *plant
	limits *core.LimitSwitchMonitor
	gantry *core.Gantry
	grip   *core.GripActuator
	coin   *core.CoinEdgeDetector
	homing *core.HomingRoutine
	seq    *core.PlaySequencer
	events *recorder
}

func limitBindings() []core.LimitBinding {
	return []core.LimitBinding{
		{Axis: core.AxisX, Direction: core.Left, Line: limitXLeft},
		{Axis: core.AxisX, Direction: core.Right, Line: limitXRight},
		{Axis: core.AxisY, Direction: core.Backward, Line: limitYBack},
		{Axis: core.AxisZ, Direction: core.Up, Line: limitZUp},
	}
}

func axisConfigs() []core.AxisConfig {
	return []core.AxisConfig{
		{Axis: core.AxisX, Lines: map[core.Direction]core.LineID{core.Left: lineXLeft, core.Right: lineXRight}},
		{Axis: core.AxisY, Lines: map[core.Direction]core.LineID{core.Forward: lineYFwd, core.Backward: lineYBack}},
		{Axis: core.AxisZ, Lines: map[core.Direction]core.LineID{core.Up: lineZUp, core.Down: lineZDown}},
	}
}

func counterBinding() *core.CounterBinding {
	return &core.CounterBinding{
		Axis:       core.AxisY,
		Min:        core.DefaultCounterMin,
		Max:        core.DefaultCounterMax,
		Saturating: core.Forward,
		Reference:  core.Backward,
	}
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{io: newFakeIO(), clock: newFakeClock(), events: &recorder{}}
	r.plant = newPlant(r.io)
	opts := []core.Option{core.WithObserver(r.events)}

	var err error
	r.limits, err = core.NewLimitSwitchMonitor(r.io, r.clock, limitBindings()...)
	require.NoError(t, err)
	r.gantry, err = core.NewGantry(r.io, r.limits, r.clock, axisConfigs(), counterBinding(), opts...)
	require.NoError(t, err)
	r.grip, err = core.NewGripActuator(r.io, lineGrip, lineGrip2)
	require.NoError(t, err)
	r.coin = core.NewCoinEdgeDetector(r.io, lineCoin, true)
	r.homing, err = core.NewHomingRoutine(r.gantry, nil, 0, opts...)
	require.NoError(t, err)
	r.seq, err = core.NewPlaySequencer(r.gantry, r.grip, r.coin, r.homing, core.SequencerConfig{
		Lift:  core.Target{Axis: core.AxisZ, Direction: core.Up},
		Chute: core.Target{Axis: core.AxisX, Direction: core.Left},
	}, opts...)
	require.NoError(t, err)
	return r
}

// insertCoin raises the coin input for one tick and lowers it again
func (r *rig) insertCoin(t *testing.T, ctx context.Context) {
	t.Helper()
	r.io.set(lineCoin, true)
	require.NoError(t, r.seq.Tick(ctx))
	r.io.set(lineCoin, false)
}

type moved struct {
	Axis      core.Axis
	Direction core.Direction
}

type vetoed struct {
	Axis      core.Axis
	Direction core.Direction
	Result    core.MoveResult
}

// recorder is an Observer capturing every event
type recorder struct {
	mu     sync.Mutex
	states []core.PlayState
	moves  []moved
	vetoes []vetoed
	coins  []bool
	grips  []core.GripState
	homed  []int
}

func (r *recorder) StateChanged(_, to core.PlayState) {
	r.mu.Lock()
	r.states = append(r.states, to)
	r.mu.Unlock()
}

func (r *recorder) Moved(axis core.Axis, dir core.Direction, _ time.Duration) {
	r.mu.Lock()
	r.moves = append(r.moves, moved{axis, dir})
	r.mu.Unlock()
}

func (r *recorder) Vetoed(axis core.Axis, dir core.Direction, result core.MoveResult) {
	r.mu.Lock()
	r.vetoes = append(r.vetoes, vetoed{axis, dir, result})
	r.mu.Unlock()
}

func (r *recorder) Coin(accepted bool) {
	r.mu.Lock()
	r.coins = append(r.coins, accepted)
	r.mu.Unlock()
}

func (r *recorder) GripChanged(state core.GripState) {
	r.mu.Lock()
	r.grips = append(r.grips, state)
	r.mu.Unlock()
}

func (r *recorder) Homed(_ core.Axis, pulses int, _ time.Duration) {
	r.mu.Lock()
	r.homed = append(r.homed, pulses)
	r.mu.Unlock()
}
