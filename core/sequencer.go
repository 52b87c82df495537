// Coin-gated play sequencer
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCadence is the control tick period, which is also the coin poll interval
const DefaultCadence = 50 * time.Millisecond

// PlayState is the lifecycle state of the machine
type PlayState int

const (
	AwaitingCoin PlayState = iota
	Homing
	Active
	Delivering
)

func (s PlayState) String() string {
	switch s {
	case AwaitingCoin:
		return "awaiting_coin"
	case Homing:
		return "homing"
	case Active:
		return "active"
	case Delivering:
		return "delivering"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name
func (s PlayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IntentKind enumerates operator intents
type IntentKind int

const (
	IntentMove IntentKind = iota
	IntentToggleGrip
	IntentStopAll
)

// Intent is one operator command
type Intent struct {
	Kind      IntentKind
	Axis      Axis
	Direction Direction
	Pulse     time.Duration // zero means the axis default
}

// MoveAxis builds a move intent
func MoveAxis(axis Axis, dir Direction) Intent {
	return Intent{Kind: IntentMove, Axis: axis, Direction: dir}
}

// ToggleGrip builds a grip intent
func ToggleGrip() Intent {
	return Intent{Kind: IntentToggleGrip}
}

// StopAll builds a stop intent
func StopAll() Intent {
	return Intent{Kind: IntentStopAll}
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentMove:
		return "move " + Target{i.Axis, i.Direction}.String()
	case IntentToggleGrip:
		return "toggle_grip"
	case IntentStopAll:
		return "stop_all"
	default:
		return "unknown"
	}
}

type deliveryStep int

const (
	stepLift deliveryStep = iota
	stepCarry
	stepChute
	stepRelease
)

func (s deliveryStep) String() string {
	switch s {
	case stepLift:
		return "lift"
	case stepCarry:
		return "carry"
	case stepChute:
		return "chute"
	case stepRelease:
		return "release"
	default:
		return "unknown"
	}
}

// SequencerConfig holds the play lifecycle parameters
type SequencerConfig struct {
	Cadence   time.Duration // zero means DefaultCadence
	QueueSize int           // operator intent buffer, zero means 8
	// Lift is driven until its switch blocks at the start of delivery
	Lift Target
	// Chute is driven until its switch blocks after the counter axis saturates
	Chute Target
}

// Status is a point-in-time view of the machine
type Status struct {
	State        PlayState       `json:"state"`
	PlayID       string          `json:"play_id,omitempty"`
	DeliveryStep string          `json:"delivery_step,omitempty"`
	Grip         GripState       `json:"grip"`
	Counter      int             `json:"counter"`
	CounterMin   int             `json:"counter_min"`
	CounterMax   int             `json:"counter_max"`
	Limits       map[string]bool `json:"limits"`
	LimitsTaken  time.Time       `json:"limits_taken"`
}

// PlaySequencer drives the coin -> play -> deliver -> reset lifecycle.
// Run, Start, Tick and Shutdown must be called from one goroutine; Submit
// and Status are safe from any goroutine.
type PlaySequencer struct {
	gantry  *Gantry
	grip    *GripActuator
	coin    *CoinEdgeDetector
	homing  *HomingRoutine
	clock   Clock
	cfg     SequencerConfig
	intents chan Intent

	counter     *TravelCounter
	counterAxis Axis

	mu     sync.RWMutex
	state  PlayState
	playID string
	step   deliveryStep

	log      *slog.Logger
	observer Observer
}

// NewPlaySequencer wires the components together. The gantry must carry a
// travel counter; the lift and chute targets must be guarded by switches and
// every role must use a different axis.
func NewPlaySequencer(g *Gantry, grip *GripActuator, coin *CoinEdgeDetector, homing *HomingRoutine, cfg SequencerConfig, opts ...Option) (*PlaySequencer, error) {
	o := buildOptions(opts)
	counter, counterAxis, ok := g.Counter()
	if !ok {
		return nil, configErr("play sequencer needs a travel counter axis")
	}
	for _, t := range []Target{cfg.Lift, cfg.Chute} {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := g.Driver(t.Axis); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAxis, t.Axis)
		}
		if !g.Limits().Has(t.Axis, t.Direction) {
			return nil, configErr("delivery target %s has no limit switch", t)
		}
	}
	if cfg.Lift.Axis == cfg.Chute.Axis || cfg.Lift.Axis == counterAxis || cfg.Chute.Axis == counterAxis {
		return nil, configErr("lift, counter and chute must be different axes")
	}
	if _, ok := homing.Reference(counterAxis); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReference, counterAxis)
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	return &PlaySequencer{
		gantry:      g,
		grip:        grip,
		coin:        coin,
		homing:      homing,
		clock:       g.Clock(),
		cfg:         cfg,
		intents:     make(chan Intent, cfg.QueueSize),
		counter:     counter,
		counterAxis: counterAxis,
		state:       Homing,
		log:         o.log.With("component", "sequencer"),
		observer:    o.observer,
	}, nil
}

// State returns the current lifecycle state
func (s *PlaySequencer) State() PlayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Submit queues an operator intent for the control loop. It never blocks;
// false means the queue was full and the intent was dropped.
func (s *PlaySequencer) Submit(in Intent) bool {
	select {
	case s.intents <- in:
		return true
	default:
		s.log.Warn("intent dropped, queue full", "intent", in)
		return false
	}
}

// Start puts every output in a known state and runs the startup homing pass
func (s *PlaySequencer) Start(ctx context.Context) error {
	if err := s.gantry.StopAll(); err != nil {
		return err
	}
	if err := s.grip.Reassert(); err != nil {
		return err
	}
	return s.rehome(ctx)
}

// Tick runs one control tick: sample the coin input, then step the state.
// A non-nil error is fatal.
func (s *PlaySequencer) Tick(ctx context.Context) error {
	if err := s.gantry.Limits().Refresh(); err != nil {
		return err
	}
	coin, err := s.coin.Poll()
	if err != nil {
		return err
	}

	switch s.State() {
	case AwaitingCoin:
		if err := s.drainIntents(); err != nil {
			return err
		}
		if coin {
			s.observer.Coin(true)
			s.beginPlay()
		}
		return nil
	case Active:
		s.ignoreCoin(coin)
		return s.handleIntent(ctx)
	case Delivering:
		s.ignoreCoin(coin)
		if err := s.drainIntents(); err != nil {
			return err
		}
		return s.deliver(ctx)
	default:
		s.ignoreCoin(coin)
		return nil
	}
}

// Run starts the machine and ticks it at the configured cadence until ctx
// is done or a fatal error occurs. Outputs are always left at rest.
func (s *PlaySequencer) Run(ctx context.Context) (err error) {
	defer func() {
		if serr := s.Shutdown(); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	if err := s.Start(ctx); err != nil {
		return stopped(ctx, err)
	}
	s.log.Info("ready", "state", s.State())
	for {
		if err := s.Tick(ctx); err != nil {
			return stopped(ctx, err)
		}
		if err := s.clock.Sleep(ctx, s.cfg.Cadence); err != nil {
			return nil
		}
	}
}

// Shutdown forces every axis output low and rewrites the grip's last
// commanded state. Both are attempted even if one fails.
func (s *PlaySequencer) Shutdown() error {
	err := errors.Join(s.gantry.StopAll(), s.grip.Reassert())
	if err != nil {
		s.log.Error("shutdown incomplete", "error", err)
	} else {
		s.log.Info("outputs at rest", "grip", s.grip.State())
	}
	return err
}

// Status returns a snapshot for operator surfaces
func (s *PlaySequencer) Status() Status {
	s.mu.RLock()
	st := Status{State: s.state, PlayID: s.playID}
	if s.state == Delivering {
		st.DeliveryStep = s.step.String()
	}
	s.mu.RUnlock()

	snap := s.gantry.Limits().Snapshot()
	st.Grip = s.grip.State()
	st.Counter = s.counter.Value()
	st.CounterMin = s.counter.Min()
	st.CounterMax = s.counter.Max()
	st.Limits = snap.Map()
	st.LimitsTaken = snap.Taken
	return st
}

func stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (s *PlaySequencer) setState(next PlayState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	if next == Delivering {
		s.step = stepLift
	}
	s.mu.Unlock()
	if prev != next {
		s.log.Info("state changed", "from", prev, "to", next)
		s.observer.StateChanged(prev, next)
	}
}

func (s *PlaySequencer) beginPlay() {
	id := uuid.NewString()
	s.mu.Lock()
	s.playID = id
	s.mu.Unlock()
	s.log.Info("coin accepted", "play_id", id)
	s.setState(Active)
}

func (s *PlaySequencer) ignoreCoin(coin bool) {
	if coin {
		s.log.Info("coin ignored", "state", s.State())
		s.observer.Coin(false)
	}
}

// drainIntents discards queued intents outside of play; StopAll is still
// honored.
func (s *PlaySequencer) drainIntents() error {
	for {
		select {
		case in := <-s.intents:
			if in.Kind == IntentStopAll {
				if err := s.gantry.StopAll(); err != nil {
					return err
				}
				continue
			}
			s.log.Debug("intent ignored", "intent", in, "state", s.State())
		default:
			return nil
		}
	}
}

// handleIntent forwards at most one queued intent per tick
func (s *PlaySequencer) handleIntent(ctx context.Context) error {
	var in Intent
	select {
	case in = <-s.intents:
	default:
		return nil
	}

	switch in.Kind {
	case IntentMove:
		_, err := s.gantry.MoveFor(ctx, in.Axis, in.Direction, in.Pulse)
		if errors.Is(err, ErrIllegalDirection) || errors.Is(err, ErrUnknownAxis) {
			s.log.Warn("intent rejected", "intent", in, "error", err)
			return nil
		}
		return err
	case IntentToggleGrip:
		state, err := s.grip.Toggle()
		if err != nil {
			return err
		}
		s.log.Info("grip toggled", "grip", state)
		s.observer.GripChanged(state)
		if state == GripClosed {
			s.setState(Delivering)
		}
		return nil
	case IntentStopAll:
		return s.gantry.StopAll()
	}
	return nil
}

// deliver runs one move of the scripted delivery per tick. A step that is
// not yet at its target is simply retried on the next tick.
func (s *PlaySequencer) deliver(ctx context.Context) error {
	s.mu.RLock()
	step := s.step
	s.mu.RUnlock()

	var done bool
	switch step {
	case stepLift:
		res, err := s.gantry.Move(ctx, s.cfg.Lift.Axis, s.cfg.Lift.Direction)
		if err != nil {
			return err
		}
		done = res == VetoLimit
	case stepCarry:
		if s.counter.AtMax() {
			done = true
			break
		}
		res, err := s.gantry.Move(ctx, s.counterAxis, s.counter.Saturating())
		if err != nil {
			return err
		}
		done = res == VetoCounter || s.counter.AtMax()
	case stepChute:
		res, err := s.gantry.Move(ctx, s.cfg.Chute.Axis, s.cfg.Chute.Direction)
		if err != nil {
			return err
		}
		done = res == VetoLimit
	case stepRelease:
		state, err := s.grip.Toggle()
		if err != nil {
			return err
		}
		s.log.Info("item released", "grip", state)
		s.observer.GripChanged(state)
		return s.finishPlay(ctx)
	}

	if done {
		s.mu.Lock()
		s.step++
		next := s.step
		s.mu.Unlock()
		s.log.Debug("delivery step done", "step", step, "next", next)
	}
	return nil
}

func (s *PlaySequencer) finishPlay(ctx context.Context) error {
	if err := s.rehome(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.playID = ""
	s.mu.Unlock()
	return nil
}

func (s *PlaySequencer) rehome(ctx context.Context) error {
	s.setState(Homing)
	if err := s.homing.Home(ctx, s.counterAxis); err != nil {
		return err
	}
	s.setState(AwaitingCoin)
	return nil
}
