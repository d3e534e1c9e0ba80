//go:build tinygo && baremetal

package hal

import (
	"device/arm"
	"machine"
)

// basepriFloor is the priority below which interrupts are masked inside
// a critical section. The kernel tick runs above the floor so time keeps
// advancing.
const basepriFloor = 0x10

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// armPort drives one core's mask, event, and sleep controls directly.
// Dual-core H7 bring-up (boot sync, HSEM/SEV routing, vector tables) is
// board support and lives outside this package.
type armPort struct{}

func (armPort) SetMaskFloor() {
	arm.AsmFull("msr basepri, {floor}", map[string]interface{}{"floor": uint32(basepriFloor)})
	arm.Asm("isb")
}

func (armPort) ClearMaskFloor() {
	arm.AsmFull("msr basepri, {floor}", map[string]interface{}{"floor": uint32(0)})
	arm.Asm("isb")
}

func (armPort) DisableFaults() { arm.Asm("cpsid f") }

func (armPort) SignalPeer() {
	arm.Asm("dsb")
	arm.Asm("sev")
}

func (armPort) WaitForEvent() { arm.Asm("wfe") }

func (armPort) WaitForInterrupt() {
	arm.Asm("dsb")
	arm.Asm("isb")
	arm.Asm("wfi")
}

func (armPort) DeepSleep() {
	arm.SCB.SCR.SetBits(arm.SCB_SCR_SLEEPDEEP_Msk)
	arm.Asm("dsb")
	arm.Asm("isb")
}

func (armPort) ResetRequest() {
	arm.SystemReset()
}

func (armPort) InInterrupt() bool {
	return arm.ReadRegister("ipsr") != 0
}

func (armPort) Yield() {}
