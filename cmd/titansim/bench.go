package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"titan/sim"
)

var benchOpts = struct {
	reads    int
	acquires int
}{}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure seq-lock read and exclusive-section latencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("seq-lock reads under tick contention:")
		report(sim.SeqLockReadBench(benchOpts.reads))

		fmt.Println("exclusive section enter/exit round trips:")
		report(sim.ExclusiveAcquireBench(benchOpts.acquires))
		return nil
	},
}

func report(res sim.BenchResult) {
	if len(res.LatenciesNS) == 0 {
		fmt.Println("  no successful samples")
		return
	}
	sort.Float64s(res.LatenciesNS)
	mean, std := stat.MeanStdDev(res.LatenciesNS, nil)
	fmt.Printf("  samples  %d (timeouts %d)\n", len(res.LatenciesNS), res.Timeouts)
	fmt.Printf("  mean     %.0f ns\n", mean)
	fmt.Printf("  stddev   %.0f ns\n", std)
	fmt.Printf("  p50      %.0f ns\n", stat.Quantile(0.50, stat.Empirical, res.LatenciesNS, nil))
	fmt.Printf("  p99      %.0f ns\n", stat.Quantile(0.99, stat.Empirical, res.LatenciesNS, nil))
	fmt.Printf("  max      %.0f ns\n", res.LatenciesNS[len(res.LatenciesNS)-1])
}

func init() {
	benchCmd.Flags().IntVar(&benchOpts.reads, "reads", 100_000, "seq-lock read samples")
	benchCmd.Flags().IntVar(&benchOpts.acquires, "acquires", 1000, "exclusive acquisition samples")
}
