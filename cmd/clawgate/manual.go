package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clawgate/config"
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Drive the motors and grip directly, without a coin",
	RunE:  runManual,
}

func init() {
	rootCmd.AddCommand(manualCmd)
	manualCmd.Flags().Bool("lines", false, "read line commands even on a terminal")
}

func runManual(cmd *cobra.Command, _ []string) error {
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

	if err := prepareManual(ctx, a.machine); err != nil {
		return err
	}

	lines, _ := cmd.Flags().GetBool("lines")
	con, restore, err := newConsole(a, directOperator{a.machine}, os.Stdin, os.Stdout, !lines)
	if err != nil {
		return err
	}
	defer restore()

	con.help()
	_, err = con.Run(ctx)
	return err
}

// prepareManual leaves the outputs at rest and homes the counter axis so the
// travel counter matches the carriage before the first manual move
func prepareManual(ctx context.Context, m *config.Machine) error {
	if err := m.Gantry.StopAll(); err != nil {
		return err
	}
	if err := m.Grip.Reassert(); err != nil {
		return err
	}
	_, axis, ok := m.Gantry.Counter()
	if !ok {
		return nil
	}
	if err := m.Homing.Home(ctx, axis); err != nil {
		return fmt.Errorf("home %s: %w", axis, err)
	}
	return nil
}
