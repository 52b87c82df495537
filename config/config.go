// Package config loads the machine configuration: built-in defaults, then a
// YAML file, then CLAWGATE_* environment variables.
package config

import (
	"time"
)

// Config is the complete deployment configuration
type Config struct {
	Backend string        `mapstructure:"backend" env:"BACKEND"` // "periph", "serial" or "sim"
	Log     LogConfig     `mapstructure:"log" envPrefix:"LOG_"`
	Metrics MetricsConfig `mapstructure:"metrics" envPrefix:"METRICS_"`
	Serial  SerialConfig  `mapstructure:"serial" envPrefix:"SERIAL_"`

	Pins    map[string]string     `mapstructure:"pins"` // line -> pin name
	Axes    map[string]AxisConfig `mapstructure:"axes"` // "x", "y", "z"
	Counter CounterConfig         `mapstructure:"counter"`
	Grip    GripConfig            `mapstructure:"grip"`
	Coin    CoinConfig            `mapstructure:"coin" envPrefix:"COIN_"`
	Homing  HomingConfig          `mapstructure:"homing" envPrefix:"HOMING_"`
	Play    PlayConfig            `mapstructure:"play" envPrefix:"PLAY_"`

	Sim map[string]SimAxisConfig `mapstructure:"sim"` // simulated travel per axis
}

type LogConfig struct {
	Level  string `mapstructure:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `mapstructure:"format" env:"FORMAT"` // text or json
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" env:"ADDR"` // empty disables the HTTP server
}

// SerialConfig configures the IO bridge backend
type SerialConfig struct {
	Device         string        `mapstructure:"device" env:"DEVICE"`
	Baud           int           `mapstructure:"baud" env:"BAUD"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" env:"COMMAND_TIMEOUT"`
	MaxDuration    time.Duration `mapstructure:"max_duration" env:"MAX_DURATION"` // bridge-side motor line watchdog
}

// AxisConfig maps directions to line names. A limit set to "" is removed.
type AxisConfig struct {
	Lines            map[string]string `mapstructure:"lines"`
	Limits           map[string]string `mapstructure:"limits"`
	LimitsActiveHigh bool              `mapstructure:"limits_active_high"`
	Pulse            time.Duration     `mapstructure:"pulse"`
}

// CounterConfig binds the travel counter; the reference direction is the
// opposite of Saturating
type CounterConfig struct {
	Axis       string `mapstructure:"axis"`
	Min        int    `mapstructure:"min"`
	Max        int    `mapstructure:"max"`
	Saturating string `mapstructure:"saturating"`
}

type GripConfig struct {
	Line   string `mapstructure:"line"`
	Mirror string `mapstructure:"mirror"` // optional second line driven in step
}

type CoinConfig struct {
	Line       string `mapstructure:"line"`
	ActiveHigh bool   `mapstructure:"active_high" env:"ACTIVE_HIGH"`
	Pull       string `mapstructure:"pull"` // up, down or none
}

type HomingConfig struct {
	MaxAttempts int               `mapstructure:"max_attempts" env:"MAX_ATTEMPTS"`
	References  map[string]string `mapstructure:"references"` // axis -> direction
}

type PlayConfig struct {
	Cadence   time.Duration `mapstructure:"cadence" env:"CADENCE"`
	QueueSize int           `mapstructure:"queue_size" env:"QUEUE_SIZE"`
	Lift      string        `mapstructure:"lift"`  // "axis/direction"
	Chute     string        `mapstructure:"chute"` // "axis/direction"
}

type SimAxisConfig struct {
	Home  string `mapstructure:"home"`
	Span  int    `mapstructure:"span"`
	Start int    `mapstructure:"start"`
}

// defaults reproduces the cabinet wiring (BOARD pin numbers in comments)
const defaults = `
backend: periph
log:
  level: info
  format: text
metrics:
  addr: ""
serial:
  device: /dev/ttyACM0
  baud: 115200
  command_timeout: 500ms
  max_duration: 2s
pins:
  x_left: GPIO17        # 11
  x_right: GPIO18       # 12
  y_forward: GPIO27     # 13
  y_backward: GPIO22    # 15
  z_up: GPIO24          # 18
  z_down: GPIO25        # 22
  grip: GPIO4           # 7
  grip2: GPIO23         # 16
  coin: GPIO26          # 37
  limit_x_left: GPIO12  # 32
  limit_x_right: GPIO13 # 33
  limit_y_back: GPIO19  # 35
  limit_z_up: GPIO16    # 36
axes:
  x:
    lines: {left: x_left, right: x_right}
    limits: {left: limit_x_left, right: limit_x_right}
    pulse: 200ms
  y:
    lines: {forward: y_forward, backward: y_backward}
    limits: {backward: limit_y_back}
    pulse: 200ms
  z:
    lines: {up: z_up, down: z_down}
    limits: {up: limit_z_up}
    pulse: 200ms
counter:
  axis: y
  min: 0
  max: 9
  saturating: forward
grip:
  line: grip
  mirror: grip2
coin:
  line: coin
  active_high: true
  pull: none
homing:
  max_attempts: 60
  references: {x: left, z: up}
play:
  cadence: 50ms
  queue_size: 8
  lift: z/up
  chute: x/left
sim:
  x: {home: left, span: 6, start: 3}
  y: {home: backward, span: 12, start: 4}
  z: {home: up, span: 5, start: 0}
`

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := LoadBytes(nil)
	if err != nil {
		panic("config: built-in defaults do not decode: " + err.Error())
	}
	return cfg
}
