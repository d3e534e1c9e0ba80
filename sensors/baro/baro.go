// Package baro drives an MS56xx-family barometric pressure sensor over
// SPI and converts its raw readings into compensated pressure and
// temperature.
package baro

import (
	"errors"
	"math"
	"time"

	"tinygo.org/x/drivers"
)

// Command bytes.
const (
	cmdReset   = 0x1E
	cmdADCRead = 0x00
	cmdD1Base  = 0x40 // pressure conversion, plus OSR offset
	cmdD2Base  = 0x50 // temperature conversion, plus OSR offset
)

// PROM addresses of the factory calibration coefficients.
const (
	promManufacturer = 0xA0
	promSENS         = 0xA2
	promOFF          = 0xA4
	promTCS          = 0xA6
	promTCO          = 0xA8
	promTRef         = 0xAA
	promTempSens     = 0xAC
	promCRC          = 0xAE
)

// OSR selects the oversampling ratio of a conversion.
type OSR uint8

const (
	OSR256 OSR = iota * 2
	OSR512
	OSR1024
	OSR2048
	OSR4096
)

// conversionDelay returns how long a conversion at the given ratio needs
// before the ADC result is valid, per the datasheet maximums.
func conversionDelay(osr OSR) (time.Duration, error) {
	switch osr {
	case OSR256:
		return 1 * time.Millisecond, nil
	case OSR512:
		return 2 * time.Millisecond, nil
	case OSR1024:
		return 3 * time.Millisecond, nil
	case OSR2048:
		return 5 * time.Millisecond, nil
	case OSR4096:
		return 10 * time.Millisecond, nil
	default:
		return 0, ErrInvalidOSR
	}
}

var (
	ErrInvalidOSR = errors.New("baro: invalid oversampling ratio")
	ErrNotReady   = errors.New("baro: device not initialized")
)

// ChipSelect drives the sensor's chip-select line.
type ChipSelect interface {
	High()
	Low()
}

// calibration holds the factory PROM coefficients.
type calibration struct {
	sens     uint32
	off      uint32
	tcs      uint32
	tco      uint32
	tRef     uint32
	tempSens uint32
}

// Sample is one compensated reading.
type Sample struct {
	// PressurePa is absolute pressure in pascals.
	PressurePa int64
	// TempCenti is temperature in hundredths of a degree Celsius.
	TempCenti int32
}

// Device is an MS56xx barometer on a shared SPI bus.
type Device struct {
	bus   drivers.SPI
	cs    ChipSelect
	osr   OSR
	cal   calibration
	ready bool

	// sleep is swappable so host tests do not pay real conversion delays.
	sleep func(time.Duration)
}

// New returns a device handle for the sensor behind cs on bus. Configure
// must be called before readings.
func New(bus drivers.SPI, cs ChipSelect, osr OSR) *Device {
	return &Device{bus: bus, cs: cs, osr: osr, sleep: time.Sleep}
}

// transfer writes cmd and reads back n bytes of response (n <= 3),
// assembled big-endian.
func (d *Device) transfer(cmd uint8, n int) (uint32, error) {
	tx := [4]byte{cmd}
	var rx [4]byte

	d.cs.Low()
	err := d.bus.Tx(tx[:n+1], rx[:n+1])
	d.cs.High()
	if err != nil {
		return 0, err
	}

	var result uint32
	for i := 1; i <= n; i++ {
		result = result<<8 | uint32(rx[i])
	}
	return result, nil
}

// Configure resets the sensor and loads its calibration PROM.
func (d *Device) Configure() error {
	delay, err := conversionDelay(d.osr)
	if err != nil {
		return err
	}

	if _, err := d.transfer(cmdReset, 0); err != nil {
		return err
	}
	d.sleep(delay) // internal register reload after reset

	coeffs := []struct {
		addr uint8
		dst  *uint32
	}{
		{promSENS, &d.cal.sens},
		{promOFF, &d.cal.off},
		{promTCS, &d.cal.tcs},
		{promTCO, &d.cal.tco},
		{promTRef, &d.cal.tRef},
		{promTempSens, &d.cal.tempSens},
	}
	for _, c := range coeffs {
		v, err := d.transfer(c.addr, 2)
		if err != nil {
			return err
		}
		*c.dst = v
	}

	d.ready = true
	return nil
}

// convert triggers one ADC conversion and reads the 24-bit result.
func (d *Device) convert(baseCmd uint8) (uint32, error) {
	delay, err := conversionDelay(d.osr)
	if err != nil {
		return 0, err
	}
	if _, err := d.transfer(baseCmd+uint8(d.osr), 0); err != nil {
		return 0, err
	}
	d.sleep(delay)
	return d.transfer(cmdADCRead, 3)
}

// Read performs a pressure and temperature conversion pair and applies
// first and second-order compensation per the datasheet.
func (d *Device) Read() (Sample, error) {
	if !d.ready {
		return Sample{}, ErrNotReady
	}

	d1, err := d.convert(cmdD1Base)
	if err != nil {
		return Sample{}, err
	}
	d2, err := d.convert(cmdD2Base)
	if err != nil {
		return Sample{}, err
	}

	dT := int64(d2) - int64(d.cal.tRef)<<8
	temp := int64(2000) + (dT*int64(d.cal.tempSens))>>23

	off := int64(d.cal.off)<<16 + (int64(d.cal.tco)*dT)>>7
	sens := int64(d.cal.sens)<<15 + (int64(d.cal.tcs)*dT)>>8

	// Second-order compensation below 20 degC, extra terms below -15.
	var t2, off2, sens2 int64
	if temp < 2000 {
		t2 = (dT * dT) >> 31
		off2 = 5 * (temp - 2000) * (temp - 2000) >> 1
		sens2 = 5 * (temp - 2000) * (temp - 2000) >> 2
		if temp < -1500 {
			off2 += 7 * (temp + 1500) * (temp + 1500)
			sens2 += 11 * (temp + 1500) * (temp + 1500) >> 1
		}
	}
	temp -= t2
	off -= off2
	sens -= sens2

	// Pressure in hundredths of a millibar, i.e. pascals.
	p := ((int64(d1)*sens)>>21 - off) >> 15

	return Sample{PressurePa: p, TempCenti: int32(temp)}, nil
}

// Altitude converts a pressure sample to meters above sea level using
// the standard atmosphere.
func Altitude(s Sample) float64 {
	const seaLevelPa = 101325.0
	return 44330.0 * (1.0 - math.Pow(float64(s.PressurePa)/seaLevelPa, 1.0/5.255))
}
