// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/doorwatch/internal/mag"
)

// I2C register map for HMC5883L/HMC5983.
const (
	RegCRA    = 0x00
	RegCRB    = 0x01
	RegMode   = 0x02
	RegData   = 0x03 // X MSB, X LSB, Z MSB, Z LSB, Y MSB, Y LSB
	RegStatus = 0x09
	RegIDA    = 0x0A
)

// Mode register values.
const (
	ModeContinuous = 0x00
	ModeSingle     = 0x01
)

// DefaultAddr is the fixed 7-bit address of the part.
const DefaultAddr = 0x1E

const dataLen = 6

// ErrInsufficientData is returned by Acquire when the bus ended the data
// read before a full 6-byte block arrived. Other bus failures are returned
// as plain wrapped errors.
var ErrInsufficientData = errors.New("magnetometer: insufficient data")

// Opts holds initialization options. A zero Addr selects DefaultAddr.
type Opts struct {
	Addr   uint16
	CRA    byte
	CRB    byte
	Mode   byte
	Settle time.Duration
}

// DefaultOpts is the configuration sequence applied by Init.
var DefaultOpts = Opts{
	Addr:   DefaultAddr,
	CRA:    0x70,
	CRB:    0xA0,
	Mode:   ModeContinuous,
	Settle: 10 * time.Millisecond,
}

// HMC5883 drives an HMC5883L-class magnetometer over I2C.
//
// The part outputs its data registers in X, Z, Y order; Acquire returns them
// labelled X, Y, Z.
type HMC5883 struct {
	dev  i2c.Dev
	opts Opts
}

// NewHMC5883 binds a driver to bus without touching the device.
func NewHMC5883(bus i2c.Bus, opts Opts) *HMC5883 {
	if opts.Addr == 0 {
		opts.Addr = DefaultAddr
	}
	return &HMC5883{
		dev:  i2c.Dev{Addr: opts.Addr, Bus: bus},
		opts: opts,
	}
}

// Init writes the operating registers. A failed write is logged and the
// remaining registers are still written; the first error is returned so the
// caller can decide whether it matters.
func (d *HMC5883) Init() error {
	var first error
	for _, w := range []struct {
		name string
		reg  byte
		val  byte
	}{
		{"CRA", RegCRA, d.opts.CRA},
		{"CRB", RegCRB, d.opts.CRB},
		{"MODE", RegMode, d.opts.Mode},
	} {
		if err := d.Configure(w.reg, w.val); err != nil {
			logrus.Warnf("magnetometer: write %s=0x%02X failed: %v", w.name, w.val, err)
			if first == nil {
				first = err
			}
			continue
		}
		logrus.Debugf("magnetometer: %s=0x%02X", w.name, w.val)
	}
	return first
}

// Configure writes value to register and waits for the settle delay.
func (d *HMC5883) Configure(register, value byte) error {
	err := d.dev.Tx([]byte{register, value}, nil)
	d.settle()
	if err != nil {
		return errors.Wrapf(err, "write register 0x%02X", register)
	}
	return nil
}

// Acquire triggers a single measurement and reads the 6-byte data block.
func (d *HMC5883) Acquire() (mag.AxisReading, error) {
	if err := d.Configure(RegMode, ModeSingle); err != nil {
		return mag.AxisReading{}, err
	}
	data := make([]byte, dataLen)
	if err := d.dev.Tx([]byte{RegData}, data); err != nil {
		if isShortRead(err) {
			return mag.AxisReading{}, errors.Wrapf(ErrInsufficientData, "read data block: %v", err)
		}
		return mag.AxisReading{}, errors.Wrap(err, "read data block")
	}
	return mag.AxisReading{
		X: int(Decode16(data[0], data[1])),
		Z: int(Decode16(data[2], data[3])),
		Y: int(Decode16(data[4], data[5])),
	}, nil
}

// ID returns the three identity bytes, expected 'H','4','3'.
func (d *HMC5883) ID() ([3]byte, error) {
	var id [3]byte
	if err := d.dev.Tx([]byte{RegIDA}, id[:]); err != nil {
		return id, errors.Wrap(err, "read identity registers")
	}
	return id, nil
}

// Status reads the status register (bit 0 RDY, bit 1 LOCK).
func (d *HMC5883) Status() (byte, error) {
	return d.ReadRegister(RegStatus)
}

// ReadRegister reads a single register.
func (d *HMC5883) ReadRegister(register byte) (byte, error) {
	var b [1]byte
	if err := d.dev.Tx([]byte{register}, b[:]); err != nil {
		return 0, errors.Wrapf(err, "read register 0x%02X", register)
	}
	return b[0], nil
}

// isShortRead reports whether a read ended before the buffer was filled, as
// opposed to the transaction failing outright.
func isShortRead(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// Decode16 combines a big-endian register pair into a signed value.
func Decode16(high, low byte) int16 {
	return int16(high)<<8 | int16(low)
}

func (d *HMC5883) settle() {
	if d.opts.Settle > 0 {
		time.Sleep(d.opts.Settle)
	}
}
