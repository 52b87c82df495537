package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clawgate/host/link"
	"clawgate/host/serial"
	"clawgate/logging"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Connect to the IO bridge and print its version and command dictionary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Backend != "serial" {
			return fmt.Errorf("bridge needs the serial backend, not %q", cfg.Backend)
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
		if err != nil {
			return err
		}
		lc, err := cfg.LinkConfig()
		if err != nil {
			return err
		}
		port, err := serial.Open(cfg.SerialPort())
		if err != nil {
			return err
		}
		l, err := link.Open(ctx, port, lc, log)
		if err != nil {
			return err
		}
		defer l.Close()

		cmd.Printf("%s on %s\n", l.Version(), cfg.Serial.Device)
		cmd.Print(l.Dictionary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}
