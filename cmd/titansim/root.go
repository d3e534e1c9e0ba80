package main

import (
	"github.com/spf13/cobra"

	"titan/internal/buildinfo"
)

var rootCmd = &cobra.Command{
	Use:     "titansim",
	Short:   "Host simulator for the Titan dual-core flight computer",
	Long:    "titansim runs the Titan kernel coordination core on a simulated dual-core machine, with a desktop diagnostics console or headless.",
	Version: buildinfo.Short(),
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
}
