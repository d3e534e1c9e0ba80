//go:build !tinygo

package hal

import (
	"runtime"
	"sync/atomic"
)

// hostPort simulates one core's slice of the machine: a one-deep event
// latch standing in for the Cortex-M event register, a binary interrupt
// mask floor, and wake-handler dispatch at yield points. Dispatch at
// yield points is the host stand-in for interrupt preemption; kernel
// polling loops yield often enough that wake latency stays bounded.
type hostPort struct {
	peer *hostPort

	// wake is the core's kernel wake handler, wired by the machine after
	// system construction.
	wake func()

	// reset notifies the machine of an architectural reset request.
	reset func()

	masked    atomic.Int32
	faultsOff atomic.Bool
	inISR     atomic.Bool

	wakePending atomic.Bool
	event       chan struct{}

	deepSleep atomic.Bool
}

func newHostPortPair() (*hostPort, *hostPort) {
	a := &hostPort{event: make(chan struct{}, 1)}
	b := &hostPort{event: make(chan struct{}, 1)}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *hostPort) SetMaskFloor()   { p.masked.Store(1) }
func (p *hostPort) ClearMaskFloor() { p.masked.Store(0) }
func (p *hostPort) DisableFaults()  { p.faultsOff.Store(true) }
func (p *hostPort) DeepSleep()      { p.deepSleep.Store(true) }

func (p *hostPort) ResetRequest() {
	if p.reset != nil {
		p.reset()
	}
}

func (p *hostPort) InInterrupt() bool { return p.inISR.Load() }

func (p *hostPort) SignalPeer() {
	p.peer.wakePending.Store(true)
	select {
	case p.peer.event <- struct{}{}:
	default:
	}
}

func (p *hostPort) WaitForEvent() { <-p.event }

func (p *hostPort) WaitForInterrupt() {
	<-p.event
	p.dispatch()
}

func (p *hostPort) Yield() {
	p.dispatch()
	runtime.Gosched()
}

// dispatch runs a pending wake handler unless the mask floor or fault
// masking blocks it, matching the gate hardware applies.
func (p *hostPort) dispatch() {
	if p.masked.Load() != 0 || p.faultsOff.Load() || p.wake == nil {
		return
	}
	if p.wakePending.CompareAndSwap(true, false) {
		p.inISR.Store(true)
		p.wake()
		p.inISR.Store(false)
	}
}
