package sim

import (
	"io"
	"runtime"
	"time"

	"titan/hal"
	"titan/kernel"
)

// BenchResult holds latency samples in nanoseconds plus the number of
// operations that timed out instead of completing.
type BenchResult struct {
	LatenciesNS []float64
	Timeouts    int
}

// SeqLockReadBench measures Clock.Now latency for n reads while a writer
// hammers the tick path as fast as it can.
func SeqLockReadBench(n int) BenchResult {
	m := hal.NewMachine(kernel.Config{}, io.Discard)
	clock := m.System().Clock()

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			default:
				clock.Tick()
				runtime.Gosched()
			}
		}
	}()

	res := BenchResult{LatenciesNS: make([]float64, 0, n)}
	for i := 0; i < n; i++ {
		t0 := time.Now()
		_, err := clock.Now()
		d := time.Since(t0)
		if err != nil {
			res.Timeouts++
			continue
		}
		res.LatenciesNS = append(res.LatenciesNS, float64(d.Nanoseconds()))
	}

	close(stop)
	<-writerDone
	m.Shutdown()
	return res
}

// ExclusiveAcquireBench measures n enter/exit round-trips of the
// exclusive section from CM7 while CM4 services the acknowledgment
// protocol from its idle loop.
func ExclusiveAcquireBench(n int) BenchResult {
	m := hal.NewMachine(kernel.Config{
		TickFreq:            1000,
		ExclusiveTimeout:    2_000_000,
		ExclusiveAckTimeout: 1_000_000,
	}, io.Discard)
	m.StartTicks()

	m.Start(kernel.CoreCM4, func(c *kernel.Core) {})

	out := make(chan BenchResult, 1)
	m.Start(kernel.CoreCM7, func(c *kernel.Core) {
		res := BenchResult{LatenciesNS: make([]float64, 0, n)}
		for i := 0; i < n; i++ {
			t0 := time.Now()
			if err := c.EnterExclusive(); err != nil {
				res.Timeouts++
				continue
			}
			// Retry TIMEOUT exits: the peer re-acknowledges on its next
			// wake dispatch.
			err := c.ExitExclusive()
			for err == kernel.ErrTimeout {
				err = c.ExitExclusive()
			}
			if err != nil {
				res.Timeouts++
				continue
			}
			res.LatenciesNS = append(res.LatenciesNS, float64(time.Since(t0).Nanoseconds()))
		}
		out <- res
	})

	res := <-out
	m.Shutdown()
	return res
}
