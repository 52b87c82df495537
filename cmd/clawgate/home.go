package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clawgate/core"
)

var homeCmd = &cobra.Command{
	Use:   "home [axis]",
	Short: "Drive an axis to its reference switch and exit",
	Long:  `Without an argument the travel counter axis is homed and its counter reset.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			if err := a.machine.Sequencer.Start(ctx); err != nil {
				return err
			}
			cmd.Println(formatStatus(a.machine.Sequencer.Status()))
			return nil
		}
		axis, err := core.ParseAxis(args[0])
		if err != nil {
			return err
		}
		if err := a.machine.Gantry.StopAll(); err != nil {
			return err
		}
		if err := a.machine.Homing.Home(ctx, axis); err != nil {
			return err
		}
		cmd.Printf("%s homed\n", axis)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(homeCmd)
}
