package kernel

// EnterCritical opens (or nests into) a critical section on this core.
// On the 0->1 transition the interrupt mask floor is raised so the thread
// scheduler and maskable interrupts cannot run here until the matching
// exit. The counter belongs to this core alone; the atomic type only
// guards against an ISR on the same core observing a torn update.
func (c *Core) EnterCritical() {
	if c.critDepth.Load() == 0 {
		c.port.SetMaskFloor()
	}
	c.critDepth.Add(1)
}

// ExitCritical closes one nesting level. On the 1->0 transition the mask
// floor is restored. Calling it outside a critical section leaves the
// state unchanged and returns ErrInvalidState.
func (c *Core) ExitCritical() error {
	if c.critDepth.Load() == 0 {
		return ErrInvalidState
	}
	if c.critDepth.Add(-1) == 0 {
		c.port.ClearMaskFloor()
	}
	return nil
}

// InCritical reports whether this core is inside a critical section.
func (c *Core) InCritical() bool {
	return c.critDepth.Load() > 0
}

// ResetCritical forcibly zeroes the nesting counter and lowers the mask
// floor. Fault recovery paths only.
func (c *Core) ResetCritical() {
	c.critDepth.Store(0)
	c.port.ClearMaskFloor()
}

// dropCritical exits the local critical section on a path where an
// earlier error wins and the exit outcome is discarded.
func (c *Core) dropCritical() {
	_ = c.ExitCritical()
}
