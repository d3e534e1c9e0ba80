package kernel

// Shutdown brings both cores to their terminal low-power state. It does
// not return.
//
// The caller's core sets its shutdown flag and wakes the peer, whose wake
// handler sets the second flag and starts its own sequence. Only after
// observing the peer's flag does this core run its exit handlers; both
// cores therefore tear down together no matter which one called first.
func (c *Core) Shutdown() {
	s := c.sys

	s.shutdown[c.id].Store(1)
	c.port.SignalPeer()

	alt := &s.shutdown[c.id.Peer()]
	for alt.Load() != 1 {
		c.port.Yield()
	}

	c.shutdownSequence()
}

// shutdownSequence masks faults, runs this core's exit table (plus the
// MCU table on CM7), and parks in the deepest sleep state. It does not
// return. The sweep is guarded by a flag: the simulated DisableFaults
// cannot truly block a concurrent wake dispatch the way cpsid f does, so
// exactly-once is enforced explicitly.
func (c *Core) shutdownSequence() {
	c.port.DisableFaults()

	s := c.sys
	if s.shutdownRun[c.id].CompareAndSwap(0, 1) {
		s.kernelExit[c.id].run()
		if c.id == CoreCM7 {
			s.mcuExit.run()
		}
	}

	c.port.DeepSleep()
	for {
		c.port.WaitForEvent()
	}
}

// Restart requests an architectural system reset and parks until it
// latches. It does not return. Faults are masked first so the sequence
// proceeds regardless of concurrent error state.
func (c *Core) Restart() {
	c.port.DisableFaults()
	c.port.ResetRequest()
	for {
		c.port.WaitForEvent()
	}
}

// SleepLowPower puts the core to sleep until an interrupt arrives. It
// does nothing inside a critical section: sleeping with interrupts masked
// would defeat the wake.
func (c *Core) SleepLowPower() {
	if !c.InCritical() {
		c.port.WaitForInterrupt()
	}
}
