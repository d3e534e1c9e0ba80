package kernel

import "sync/atomic"

// System is the process-wide coordination state shared by both cores. It
// is built once before the cores are released from reset and never torn
// down.
type System struct {
	cfg   Config
	clock *Clock
	cores [coreCount]*Core

	// Exclusive-section state. lockTag holds the owner encoding
	// (+1 CM7, -1 CM4, 0 free). exDepth is the reentrancy count; it is a
	// plain integer because only the lock holder touches it, and every
	// hand-over goes through an atomic operation on lockTag.
	lockTag atomic.Int32
	exDepth int32
	acks    [coreCount]atomic.Uint32

	// Shutdown rendezvous state. shutdown flags are single-writer; the
	// peer core only ever observes the 0->1 transition. shutdownRun makes
	// the exit-handler sweep exactly-once per core.
	shutdown    [coreCount]atomic.Uint32
	shutdownRun [coreCount]atomic.Uint32

	kernelExit [coreCount]exitTable
	mcuExit    exitTable
}

// NewSystem wires a system from the two per-core ports. Zero fields of
// cfg fall back to defaults.
func NewSystem(cfg Config, cm7, cm4 Port) *System {
	cfg = cfg.withDefaults()
	s := &System{
		cfg:   cfg,
		clock: newClock(cfg.TickFreq, cfg.TimeLockAttempts),
	}
	s.cores[CoreCM7] = &Core{id: CoreCM7, port: cm7, sys: s}
	s.cores[CoreCM4] = &Core{id: CoreCM4, port: cm4, sys: s}
	return s
}

// Clock returns the shared monotonic timebase.
func (s *System) Clock() *Clock { return s.clock }

// Core returns the kernel handle for the given core.
func (s *System) Core(id CoreID) *Core { return s.cores[id] }

// Config returns the active configuration.
func (s *System) Config() Config { return s.cfg }

// Core is the kernel's view of one CPU. All methods must be called from
// code executing on that core; the host simulator enforces this by
// binding each Core to one executor goroutine.
type Core struct {
	id   CoreID
	port Port
	sys  *System

	critDepth atomic.Int32
}

// ID returns the identity of this core.
func (c *Core) ID() CoreID { return c.id }

// InInterrupt reports whether the core is executing an interrupt handler.
func (c *Core) InInterrupt() bool { return c.port.InInterrupt() }
