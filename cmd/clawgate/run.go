package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coin-gated play cycle",
	Long: `Homes the machine, then waits for a coin. During a play the console keys
steer the claw; closing the grip starts the delivery to the chute.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("headless", false, "no operator console on stdin")
}

func runPlay(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Error("close failed", "error", err)
		}
	}()
	a.serveMetrics(ctx)

	if headless, _ := cmd.Flags().GetBool("headless"); !headless {
		con, restore, err := newConsole(a, queueOperator{a.machine.Sequencer}, os.Stdin, os.Stdout, true)
		if err != nil {
			return err
		}
		defer restore()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			quit, err := con.Run(ctx)
			if err != nil {
				a.log.Error("console failed", "error", err)
			}
			if quit {
				cancel()
			}
		}()
	}

	return a.machine.Sequencer.Run(ctx)
}
