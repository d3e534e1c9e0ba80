//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"titan/kernel"
)

// Machine is the simulated dual-core board: two executor goroutines
// standing in for the CM7 and CM4 cores, a periodic tick driving the
// kernel clock, and per-core status LEDs.
type Machine struct {
	sys    *kernel.System
	ports  [2]*hostPort
	logger *hostLogger
	leds   [2]*hostLED

	stop     chan struct{}
	stopOnce sync.Once
	tickWG   sync.WaitGroup
	execWG   sync.WaitGroup

	resetCh   chan struct{}
	resetOnce sync.Once
}

// NewMachine builds a host machine writing its log to w.
func NewMachine(cfg kernel.Config, w io.Writer) *Machine {
	logger := &hostLogger{w: w}
	p7, p4 := newHostPortPair()

	m := &Machine{
		ports:   [2]*hostPort{p7, p4},
		logger:  logger,
		stop:    make(chan struct{}),
		resetCh: make(chan struct{}),
	}
	m.leds[kernel.CoreCM7] = &hostLED{name: "cm7", logger: logger}
	m.leds[kernel.CoreCM4] = &hostLED{name: "cm4", logger: logger}

	m.sys = kernel.NewSystem(cfg, p7, p4)
	p7.wake = m.sys.Core(kernel.CoreCM7).HandleWake
	p4.wake = m.sys.Core(kernel.CoreCM4).HandleWake
	onReset := func() { m.resetOnce.Do(func() { close(m.resetCh) }) }
	p7.reset = onReset
	p4.reset = onReset
	return m
}

// System returns the kernel instance running on this machine.
func (m *Machine) System() *kernel.System { return m.sys }

// Logger returns the machine log sink.
func (m *Machine) Logger() Logger { return m.logger }

// LED returns the status LED of a core.
func (m *Machine) LED(id kernel.CoreID) LED { return m.leds[id] }

// LEDState reports whether a core's status LED is lit.
func (m *Machine) LEDState(id kernel.CoreID) bool { return m.leds[id].state() }

// StartTicks launches the periodic tick that advances the kernel clock,
// at the configured kernel tick frequency.
func (m *Machine) StartTicks() {
	period := time.Second / time.Duration(m.sys.Config().TickFreq)
	if period <= 0 {
		period = time.Millisecond
	}
	m.tickWG.Add(1)
	go func() {
		defer m.tickWG.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-t.C:
				m.sys.Clock().Tick()
			}
		}
	}()
}

// Start releases a core from reset with the given entry point. When main
// returns, the core drops into an idle loop that keeps servicing
// cross-core wake events, like the idle thread of a real core.
func (m *Machine) Start(id kernel.CoreID, main func(*kernel.Core)) {
	core := m.sys.Core(id)
	port := m.ports[id]
	m.execWG.Add(1)
	go func() {
		defer m.execWG.Done()
		defer func() {
			if r := recover(); r != nil {
				// Fault recovery: unwind any sections the panicking code
				// held so the peer core is not wedged.
				core.ResetCritical()
				core.ResetExclusive()
				m.logger.WriteLineString(fmt.Sprintf("%s: fault: %v", id, r))
			}
		}()
		main(core)
		for {
			select {
			case <-m.stop:
				return
			case <-port.event:
				port.dispatch()
			}
		}
	}()
}

// ResetRequested is closed when either core writes the architectural
// reset request.
func (m *Machine) ResetRequested() <-chan struct{} { return m.resetCh }

// DeepSleeping reports whether a core has armed its terminal sleep state.
func (m *Machine) DeepSleeping(id kernel.CoreID) bool {
	return m.ports[id].deepSleep.Load()
}

// Shutdown stops the tick source and retires idle executors. Cores parked
// in their terminal sleep loop are left there.
func (m *Machine) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.tickWG.Wait()
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	name   string
	on     atomic.Bool
	logger *hostLogger
}

func (l *hostLED) High() {
	if !l.on.Swap(true) {
		l.logger.WriteLineString(l.name + " led: on")
	}
}

func (l *hostLED) Low() {
	if l.on.Swap(false) {
		l.logger.WriteLineString(l.name + " led: off")
	}
}

func (l *hostLED) state() bool { return l.on.Load() }
