package kernel

// HandleWake services the cross-core wake interrupt on this core. The
// platform must invoke it whenever the peer core issues SignalPeer.
//
// Two duties: close the shutdown rendezvous (the peer has begun its
// shutdown sequence, so this core must begin its own), and run the
// exclusive-section acknowledgment pump that keeps the peer's section
// live.
func (c *Core) HandleWake() {
	s := c.sys

	c.EnterCritical()
	if s.shutdown[c.id.Peer()].Load() != 0 {
		s.shutdown[c.id].Store(1)
		c.shutdownSequence()
	}
	c.dropCritical()

	c.ackPump()
}

// ackPump continuously asserts this core's acknowledgment flag while the
// peer holds the exclusive lock, within a window bounded by the exclusive
// timeout, then clears it. The pump runs inside a critical section: while
// it spins, nothing else executes on this core, which is exactly the
// guarantee the peer's section body relies on.
func (c *Core) ackPump() {
	s := c.sys
	c.EnterCritical()

	altTag := c.id.Peer().tag()
	ack := &s.acks[c.id]

	if start, err := s.clock.Now(); err == nil {
		for s.lockTag.Load() == altTag {
			now, err := s.clock.Now()
			if err != nil || now-start >= s.cfg.ExclusiveTimeout {
				break
			}
			ack.Store(1)
			c.port.Yield()
		}
	}
	ack.Store(0)

	c.dropCritical()
}
