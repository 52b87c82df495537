package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"clawgate/config"
	"clawgate/host/sim"
	"clawgate/logging"
	"clawgate/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "clawgate",
	Short: "Coin-gated claw machine controller",
	Long: `clawgate drives a claw machine's X/Y/Z motors and grip through a limit
switch and travel counter interlock, and runs the coin -> play -> deliver
cycle.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "YAML configuration file")
	f.String("backend", "", "I/O backend: periph, serial or sim")
	f.String("device", "", "serial device of the IO bridge")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "text or json")
	f.String("metrics-addr", "", "serve /metrics and /status on this address")
}

// app is one assembled controller
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	sim      *sim.Machine
	machine  *config.Machine
	registry *prometheus.Registry
	server   *metrics.Server
	closeIO  func() error
}

// loadConfig reads the configuration and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	overrides := map[string]*string{
		"backend":      &cfg.Backend,
		"device":       &cfg.Serial.Device,
		"log-level":    &cfg.Log.Level,
		"log-format":   &cfg.Log.Format,
		"metrics-addr": &cfg.Metrics.Addr,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup opens the backend and assembles the machine. The caller must Close
// the app on every path.
func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}

	io, simMachine, closeIO, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.sim = simMachine
	a.closeIO = closeIO

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(a.registry, func() int {
		c, _, _ := a.machine.Gantry.Counter()
		return c.Value()
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.machine, err = cfg.Build(io, nil, log, collector)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		a.server = metrics.NewServer(cfg.Metrics.Addr, a.registry, a.machine.Sequencer.Status, log)
	}
	log.Info("machine assembled", "backend", cfg.Backend)
	return a, nil
}

// serveMetrics runs the HTTP server until ctx is done, when configured
func (a *app) serveMetrics(ctx context.Context) {
	if a.server == nil {
		return
	}
	go func() {
		if err := a.server.Run(ctx); err != nil {
			a.log.Error("metrics server stopped", "error", err)
		}
	}()
}

// Close leaves every output at rest and releases the backend
func (a *app) Close() error {
	var errs []error
	if a.machine != nil {
		errs = append(errs, a.machine.Sequencer.Shutdown())
	}
	if a.closeIO != nil {
		errs = append(errs, a.closeIO())
	}
	return errors.Join(errs...)
}
