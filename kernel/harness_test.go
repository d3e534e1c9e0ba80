package kernel

import (
	"runtime"
	"sync/atomic"
	"time"
)

// fakePort models one core of the machine for tests: a latched event
// register, a binary mask floor, and wake dispatch at yield points. It
// mirrors the host HAL port but stays inside the package so the kernel
// tests have no dependency on hal.
type fakePort struct {
	peer *fakePort
	core *Core

	masked    atomic.Int32
	faultsOff atomic.Bool
	inISR     atomic.Bool

	wakePending atomic.Bool
	event       chan struct{}

	deepSleep atomic.Bool
	resetReq  atomic.Bool
}

func newFakePair() (*fakePort, *fakePort) {
	a := &fakePort{event: make(chan struct{}, 1)}
	b := &fakePort{event: make(chan struct{}, 1)}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *fakePort) SetMaskFloor()   { p.masked.Store(1) }
func (p *fakePort) ClearMaskFloor() { p.masked.Store(0) }
func (p *fakePort) DisableFaults()  { p.faultsOff.Store(true) }
func (p *fakePort) DeepSleep()      { p.deepSleep.Store(true) }
func (p *fakePort) ResetRequest()   { p.resetReq.Store(true) }

func (p *fakePort) InInterrupt() bool { return p.inISR.Load() }

func (p *fakePort) SignalPeer() {
	p.peer.wakePending.Store(true)
	select {
	case p.peer.event <- struct{}{}:
	default:
	}
}

func (p *fakePort) WaitForEvent() { <-p.event }

func (p *fakePort) WaitForInterrupt() {
	<-p.event
	p.dispatch()
}

func (p *fakePort) Yield() {
	p.dispatch()
	runtime.Gosched()
}

// dispatch runs the pending wake handler unless the core has its mask
// floor raised or faults disabled, the same gate hardware applies.
func (p *fakePort) dispatch() {
	if p.masked.Load() != 0 || p.faultsOff.Load() || p.core == nil {
		return
	}
	if p.wakePending.CompareAndSwap(true, false) {
		p.inISR.Store(true)
		p.core.HandleWake()
		p.inISR.Store(false)
	}
}

// newTestSystem builds a system over a fake port pair with the wake
// handlers wired.
func newTestSystem(cfg Config) (*System, *fakePort, *fakePort) {
	p7, p4 := newFakePair()
	s := NewSystem(cfg, p7, p4)
	p7.core = s.Core(CoreCM7)
	p4.core = s.Core(CoreCM4)
	return s, p7, p4
}

// idleCore services wake events for a core whose application is parked,
// like the idle loop of a real core. Close stop to retire it.
func idleCore(p *fakePort, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-p.event:
			p.dispatch()
		}
	}
}

// tickEvery advances the clock at a wall-paced rate so that spinning
// cores get many scheduling turns per unit of virtual time. Needed where
// a timeout must expire only after the cores have interleaved.
func tickEvery(c *Clock, d time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.Tick()
		}
	}
}
