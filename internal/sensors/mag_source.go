// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/doorwatch/internal/config"
)

// OpenBus initializes the periph host and opens the configured I2C bus.
func OpenBus(cfg *config.Config) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "i2c open (bus %q)", cfg.I2CBus)
	}
	return bus, nil
}

// OptsFromConfig maps the MAG_* configuration keys onto driver options.
func OptsFromConfig(cfg *config.Config) Opts {
	return Opts{
		Addr:   cfg.MagI2CAddr,
		CRA:    cfg.MagCRA,
		CRB:    cfg.MagCRB,
		Mode:   cfg.MagMode,
		Settle: time.Duration(cfg.MagSettleMS) * time.Millisecond,
	}
}

// NewMagSource configures the magnetometer on bus. Register write failures
// are not fatal: the device may still answer reads, and Acquire reports
// anything that is actually broken.
func NewMagSource(bus i2c.Bus, cfg *config.Config) *HMC5883 {
	dev := NewHMC5883(bus, OptsFromConfig(cfg))
	if err := dev.Init(); err != nil {
		logrus.Warnf("magnetometer: configuration incomplete at 0x%02X: %v", cfg.MagI2CAddr, err)
	} else {
		logrus.Infof("magnetometer: configured at 0x%02X (CRA=0x%02X CRB=0x%02X MODE=0x%02X)",
			cfg.MagI2CAddr, cfg.MagCRA, cfg.MagCRB, cfg.MagMode)
	}
	if id, err := dev.ID(); err != nil {
		logrus.Warnf("magnetometer: failed to read identity: %v", err)
	} else if string(id[:]) != "H43" {
		logrus.Warnf("magnetometer: unexpected identity %q", id[:])
	}
	return dev
}
