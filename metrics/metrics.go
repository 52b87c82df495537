// Package metrics exports machine events to Prometheus and serves the
// metrics and status endpoints.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clawgate/core"
)

// Collector is a core.Observer that records events as Prometheus metrics
type Collector struct {
	coins   *prometheus.CounterVec
	moves   *prometheus.CounterVec
	vetoes  *prometheus.CounterVec
	plays   prometheus.Counter
	grips   *prometheus.CounterVec
	homing  *prometheus.HistogramVec
	state   *prometheus.GaugeVec
	counter prometheus.GaugeFunc
}

var _ core.Observer = (*Collector)(nil)

// New registers the collectors on reg. counter, when non-nil, feeds the
// travel counter gauge at scrape time.
func New(reg prometheus.Registerer, counter func() int) (*Collector, error) {
	c := &Collector{
		coins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawgate_coins_total",
			Help: "Coin edges seen, by outcome",
		}, []string{"outcome"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawgate_moves_total",
			Help: "Motor pulses driven",
		}, []string{"axis", "direction"}),
		vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawgate_vetoes_total",
			Help: "Moves refused by the interlock",
		}, []string{"axis", "direction", "reason"}),
		plays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clawgate_plays_total",
			Help: "Plays started",
		}),
		grips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawgate_grip_toggles_total",
			Help: "Grip toggles, by resulting state",
		}, []string{"state"}),
		homing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clawgate_homing_seconds",
			Help:    "Time to reach the reference switch",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"axis"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clawgate_play_state",
			Help: "1 for the current play state",
		}, []string{"state"}),
	}
	cs := []prometheus.Collector{c.coins, c.moves, c.vetoes, c.plays, c.grips, c.homing, c.state}
	if counter != nil {
		c.counter = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "clawgate_travel_counter",
			Help: "Travel counter value",
		}, func() float64 { return float64(counter()) })
		cs = append(cs, c.counter)
	}
	for _, col := range cs {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	for _, s := range []core.PlayState{core.AwaitingCoin, core.Homing, core.Active, core.Delivering} {
		c.state.WithLabelValues(s.String()).Set(0)
	}
	c.state.WithLabelValues(core.Homing.String()).Set(1)
	return c, nil
}

func (c *Collector) StateChanged(from, to core.PlayState) {
	c.state.WithLabelValues(from.String()).Set(0)
	c.state.WithLabelValues(to.String()).Set(1)
	if to == core.Active {
		c.plays.Inc()
	}
}

func (c *Collector) Moved(axis core.Axis, dir core.Direction, _ time.Duration) {
	c.moves.WithLabelValues(axis.String(), dir.String()).Inc()
}

func (c *Collector) Vetoed(axis core.Axis, dir core.Direction, result core.MoveResult) {
	c.vetoes.WithLabelValues(axis.String(), dir.String(), result.String()).Inc()
}

func (c *Collector) Coin(accepted bool) {
	outcome := "ignored"
	if accepted {
		outcome = "accepted"
	}
	c.coins.WithLabelValues(outcome).Inc()
}

func (c *Collector) GripChanged(state core.GripState) {
	c.grips.WithLabelValues(state.String()).Inc()
}

func (c *Collector) Homed(axis core.Axis, _ int, elapsed time.Duration) {
	c.homing.WithLabelValues(axis.String()).Observe(elapsed.Seconds())
}
