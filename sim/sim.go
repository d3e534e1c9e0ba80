// Package sim runs the flight computer on a desktop: the dual-core
// kernel over the simulated machine, a heartbeat task per core, and a
// diagnostics console rendered through the terminal stack.
package sim

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"titan/hal"
	"titan/internal/buildinfo"
	"titan/kernel"
)

const (
	consoleWidth  = 320
	consoleHeight = 240

	heartbeatMillis = 250
	beatsPerReport  = 8
)

// Config controls a simulated flight.
type Config struct {
	// Kernel holds the coordination-core knobs; zero fields use defaults.
	Kernel kernel.Config

	// Ticks stops the flight after this many kernel ticks by initiating a
	// coordinated shutdown (0 = fly until cancelled).
	Ticks uint64
}

// Flight is one boot of the simulated machine.
type Flight struct {
	cfg     Config
	machine *hal.Machine
	fb      *framebuffer
	session string

	shutdownReq  chan struct{}
	shutdownOnce sync.Once
}

// NewFlight assembles a machine whose log is teed to w (may be nil) and
// to the on-screen console.
func NewFlight(cfg Config, w io.Writer) *Flight {
	fb := newFramebuffer(consoleWidth, consoleHeight)
	cons := newConsole(fb)

	var sink io.Writer = cons
	if w != nil {
		sink = io.MultiWriter(w, cons)
	}

	f := &Flight{
		cfg:         cfg,
		machine:     hal.NewMachine(cfg.Kernel, sink),
		fb:          fb,
		session:     uuid.NewString(),
		shutdownReq: make(chan struct{}),
	}
	return f
}

// Machine exposes the underlying simulated board.
func (f *Flight) Machine() *hal.Machine { return f.machine }

// Session returns the boot session identifier.
func (f *Flight) Session() string { return f.session }

// Launch starts the tick source and releases both cores with their
// heartbeat entry points.
func (f *Flight) Launch() {
	log := f.machine.Logger()
	log.WriteLineString("titan " + buildinfo.Short())
	log.WriteLineString("session " + f.session)
	log.WriteLineString(fmt.Sprintf("tick %d us", f.machine.System().Clock().TickIncrement()))

	sys := f.machine.System()
	for _, id := range []kernel.CoreID{kernel.CoreCM7, kernel.CoreCM4} {
		id := id
		if err := sys.OnKernelExit(id, func() {
			log.WriteLineString(id.String() + ": exit handlers done")
		}); err != nil {
			log.WriteLineString(id.String() + ": exit registration: " + err.Error())
		}
	}
	if err := sys.OnMCUExit(func() {
		log.WriteLineString("mcu: powered down")
	}); err != nil {
		log.WriteLineString("mcu: exit registration: " + err.Error())
	}

	f.machine.StartTicks()
	f.machine.Start(kernel.CoreCM7, f.heartbeat)
	f.machine.Start(kernel.CoreCM4, f.heartbeat)
}

// RequestShutdown asks the CM7 heartbeat to initiate the coordinated
// shutdown on its next beat.
func (f *Flight) RequestShutdown() {
	f.shutdownOnce.Do(func() { close(f.shutdownReq) })
}

// Landed reports whether both cores reached their terminal sleep state.
func (f *Flight) Landed() bool {
	return f.machine.DeepSleeping(kernel.CoreCM7) && f.machine.DeepSleeping(kernel.CoreCM4)
}

// heartbeat is the per-core application: blink the status LED, report
// the clock periodically, and honor shutdown requests on CM7.
func (f *Flight) heartbeat(c *kernel.Core) {
	log := f.machine.Logger()
	led := f.machine.LED(c.ID())
	half, err := kernel.MillisToTime(heartbeatMillis / 2)
	if err != nil {
		log.WriteLineString(c.ID().String() + ": heartbeat config: " + err.Error())
		return
	}

	tickBudget := int64(0)
	if f.cfg.Ticks > 0 {
		tickBudget = int64(f.cfg.Ticks) * f.machine.System().Clock().TickIncrement()
	}

	for beat := 0; ; beat++ {
		if c.ID() == kernel.CoreCM7 {
			select {
			case <-f.shutdownReq:
				log.WriteLineString("cm7: initiating shutdown")
				c.Shutdown()
			default:
			}
		}

		led.High()
		if err := c.Sleep(half); err != nil {
			log.WriteLineString(c.ID().String() + ": sleep: " + err.Error())
			return
		}
		led.Low()
		if err := c.Sleep(half); err != nil {
			log.WriteLineString(c.ID().String() + ": sleep: " + err.Error())
			return
		}

		if beat%beatsPerReport == 0 {
			f.report(c, log)
		}

		if tickBudget > 0 && c.ID() == kernel.CoreCM7 {
			if now, err := f.machine.System().Clock().Now(); err == nil && now >= tickBudget {
				f.RequestShutdown()
			}
		}
	}
}

// report logs the core's view of the clock from inside the exclusive
// section, so the line cannot interleave with the peer's report.
func (f *Flight) report(c *kernel.Core, log hal.Logger) {
	if err := c.EnterExclusive(); err != nil {
		log.WriteLineString(c.ID().String() + ": report skipped: " + err.Error())
		return
	}
	defer func() {
		// TIMEOUT means the peer's ack lapsed momentarily; it re-asserts
		// on its next wake dispatch, so retry rather than leak the lock.
		for {
			err := c.ExitExclusive()
			if err == nil {
				return
			}
			if err != kernel.ErrTimeout {
				log.WriteLineString(c.ID().String() + ": exclusive exit: " + err.Error())
				return
			}
		}
	}()

	now, err := f.machine.System().Clock().Now()
	if err != nil {
		log.WriteLineString(c.ID().String() + ": clock: " + err.Error())
		return
	}
	millis, err := kernel.TimeToMillis(now)
	if err != nil {
		log.WriteLineString(c.ID().String() + ": clock: " + err.Error())
		return
	}
	log.WriteLineString(fmt.Sprintf("%s: t=%dms", c.ID(), millis))
}
