package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"titan/kernel"
	"titan/sim"
)

var runOpts = struct {
	headless bool
	tickFreq int64
	ticks    uint64
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the simulated flight computer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := sim.Config{
			Kernel: kernel.Config{TickFreq: runOpts.tickFreq},
			Ticks:  runOpts.ticks,
		}
		f := sim.NewFlight(cfg, os.Stdout)

		if runOpts.headless {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			err := f.RunHeadless(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		return f.RunWindow()
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.headless, "headless", false, "run without a window")
	runCmd.Flags().Int64Var(&runOpts.tickFreq, "tick-freq", kernel.DefaultTickFreq, "kernel tick frequency in Hz")
	runCmd.Flags().Uint64Var(&runOpts.ticks, "ticks", 0, "land after N kernel ticks (0 = fly until interrupted)")
}
