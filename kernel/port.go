package kernel

// CoreID identifies one of the two CPUs in the MCU.
type CoreID uint8

const (
	// CoreCM7 is the Cortex-M7 application core.
	CoreCM7 CoreID = iota
	// CoreCM4 is the Cortex-M4 companion core.
	CoreCM4

	coreCount
)

func (id CoreID) String() string {
	switch id {
	case CoreCM7:
		return "cm7"
	case CoreCM4:
		return "cm4"
	default:
		return "unknown"
	}
}

// Peer returns the other core.
func (id CoreID) Peer() CoreID {
	if id == CoreCM7 {
		return CoreCM4
	}
	return CoreCM7
}

// tag returns the exclusive-lock owner encoding for this core.
// A single CAS-able word distinguishes the owner: +1 CM7, -1 CM4, 0 free.
func (id CoreID) tag() int32 {
	if id == CoreCM7 {
		return 1
	}
	return -1
}

// Port is the per-core hardware facade. The kernel issues every
// architectural operation through it, so a host build can substitute a
// simulated machine for the real interrupt controller and sleep states.
//
// A Port instance belongs to exactly one core; calls arrive only from
// code executing on that core (or from its wake handler).
type Port interface {
	// SetMaskFloor raises the interrupt priority floor so that
	// scheduler-eligible interrupts cannot run (basepri on hardware).
	SetMaskFloor()

	// ClearMaskFloor restores the priority floor.
	ClearMaskFloor()

	// DisableFaults masks interrupts and faults unconditionally
	// (cpsid f). There is no way back short of a reset.
	DisableFaults()

	// SignalPeer issues a cross-core event (dsb; sev) that runs the wake
	// handler on the other core.
	SignalPeer()

	// WaitForEvent blocks until a cross-core event arrives (wfe).
	WaitForEvent()

	// WaitForInterrupt enters low power until an interrupt arrives
	// (dsb; isb; wfi).
	WaitForInterrupt()

	// DeepSleep arms the deepest sleep state for the next event wait
	// (SCR.SLEEPDEEP plus fences).
	DeepSleep()

	// ResetRequest writes the architectural reset request
	// (AIRCR vectkey + SYSRESETREQ).
	ResetRequest()

	// InInterrupt reports whether the core is executing an interrupt
	// handler (ipsr != 0).
	InInterrupt() bool

	// Yield gives the thread scheduler a chance to run. Polling loops in
	// the kernel call it between checks.
	Yield()
}
