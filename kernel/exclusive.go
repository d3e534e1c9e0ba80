package kernel

// EnterExclusive acquires the cross-core exclusive section for this core.
// On return without error no code is progressing on the other core, and
// the section may be re-entered by this core until the matching number of
// ExitExclusive calls.
//
// The section is taken with local interrupts masked: an ISR on this core
// re-entering the protocol mid-acquisition would self-deadlock. While
// spinning on the lock word, a core that observes the peer as the holder
// raises its own acknowledgment flag; the peer may itself be parked
// inside a critical section waiting for exactly that flag, and without it
// two cores contending from within critical sections would deadlock.
func (c *Core) EnterExclusive() error {
	s := c.sys
	c.EnterCritical()

	thisTag := c.id.tag()
	altTag := c.id.Peer().tag()
	thisAck := &s.acks[c.id]

	if s.lockTag.Load() != thisTag {
		start, err := s.clock.Now()
		if err != nil {
			c.dropCritical()
			return ErrInternal
		}
		for !s.lockTag.CompareAndSwap(0, thisTag) {
			now, err := s.clock.Now()
			if err != nil {
				c.dropCritical()
				return ErrInternal
			}
			if now-start > s.cfg.ExclusiveTimeout {
				if err := c.ExitCritical(); err != nil {
					return ErrInternal
				}
				return ErrTimeout
			}
			if s.lockTag.Load() == altTag {
				thisAck.Store(1)
			}
			c.port.Yield()
		}
		// The peer's wake handler runs the acknowledgment pump; without
		// the event it would only ack when itself contending.
		c.port.SignalPeer()
	}

	thisAck.Store(0)
	s.exDepth++

	start, err := s.clock.Now()
	if err != nil {
		c.unwindEnter()
		return ErrInternal
	}

	// Positive confirmation that the peer has observed the held lock and
	// is not racing into a conflicting section.
	altAck := &s.acks[c.id.Peer()]
	for altAck.Load() != 1 {
		now, err := s.clock.Now()
		if err != nil {
			c.unwindEnter()
			return ErrInternal
		}
		if now-start > s.cfg.ExclusiveAckTimeout {
			s.exDepth--
			if s.exDepth == 0 {
				s.lockTag.Store(0)
			}
			if err := c.ExitCritical(); err != nil {
				return ErrInternal
			}
			return ErrTimeout
		}
		c.port.Yield()
	}

	if err := c.ExitCritical(); err != nil {
		return ErrInternal
	}
	return nil
}

// unwindEnter rolls back a half-finished acquisition on an internal
// error: one reentrancy level, the lock if it reaches zero, and the local
// critical section.
func (c *Core) unwindEnter() {
	s := c.sys
	s.exDepth--
	if s.exDepth == 0 {
		s.lockTag.Store(0)
	}
	c.dropCritical()
}

// ExitExclusive leaves one nesting level of the exclusive section and
// releases the lock on the outermost exit.
//
// The peer is supposed to hold its acknowledgment flag high for the whole
// time this core owns the lock; finding it low here is a protocol
// violation surfaced as ErrTimeout.
func (c *Core) ExitExclusive() error {
	s := c.sys
	c.EnterCritical()

	if s.lockTag.Load() != c.id.tag() {
		if err := c.ExitCritical(); err != nil {
			return ErrInternal
		}
		return ErrInvalidState
	}
	if s.acks[c.id.Peer()].Load() == 0 {
		if err := c.ExitCritical(); err != nil {
			return ErrInternal
		}
		return ErrTimeout
	}

	s.exDepth--
	if s.exDepth == 0 {
		s.lockTag.Store(0)
	}

	if err := c.ExitCritical(); err != nil {
		return ErrInternal
	}
	return nil
}

// InExclusive reports whether this core currently owns the exclusive
// section.
func (c *Core) InExclusive() bool {
	return c.sys.lockTag.Load() == c.id.tag()
}

// ResetExclusive clears the reentrancy count and releases the lock if
// this core owned it. Fault recovery paths only.
func (c *Core) ResetExclusive() {
	s := c.sys
	c.EnterCritical()
	if s.lockTag.Load() == c.id.tag() {
		s.exDepth = 0
		s.lockTag.Store(0)
	}
	c.dropCritical()
}
