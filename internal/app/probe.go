// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/relabs-tech/doorwatch/internal/config"
	"github.com/relabs-tech/doorwatch/internal/sensors"
)

// RunProbe configures the magnetometer once and prints its identity, its
// register file and one acquisition.
func RunProbe(out io.Writer) error {
	cfg := config.Get()

	bus, err := sensors.OpenBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	return probe(sensors.NewMagSource(bus, cfg), out)
}

func probe(dev *sensors.HMC5883, out io.Writer) error {
	id, err := dev.ID()
	if err != nil {
		return errors.Wrap(err, "read identity")
	}
	fmt.Fprintf(out, "identity: %q\n", id[:])

	sr, err := dev.Status()
	if err != nil {
		return errors.Wrap(err, "read status")
	}
	fmt.Fprintf(out, "status: 0x%02X (RDY=%d LOCK=%d)\n", sr, sr&0x01, (sr>>1)&0x01)

	regs, err := dev.DumpRegisters()
	if err != nil {
		return errors.Wrap(err, "dump registers")
	}
	for _, r := range regs {
		fmt.Fprintln(out, r)
	}

	raw, err := dev.Acquire()
	if err != nil {
		return errors.Wrap(err, "acquire")
	}
	fmt.Fprintf(out, "reading: %s\n", raw)
	return nil
}
