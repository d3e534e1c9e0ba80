package sim

import (
	"context"
	"time"
)

// RunHeadless flies without a window until the context is cancelled, the
// tick budget lands the flight, or a core requests a reset.
func (f *Flight) RunHeadless(ctx context.Context) error {
	f.Launch()
	defer f.machine.Shutdown()

	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			f.RequestShutdown()
			return ctx.Err()
		case <-f.machine.ResetRequested():
			return nil
		case <-poll.C:
			if f.Landed() {
				return nil
			}
		}
	}
}
