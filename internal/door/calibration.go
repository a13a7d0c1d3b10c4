package door

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/doorwatch/internal/mag"
)

// Calibration holds the per-axis offsets subtracted from raw readings.
type Calibration struct {
	Offset   mag.AxisReading
	Baseline int
	// Valid is false until the first successful Calibrate.
	Valid bool
}

// NewCalibration returns an uncalibrated set of zero offsets.
func NewCalibration(baseline int) *Calibration {
	return &Calibration{Baseline: baseline}
}

// Adjust removes the calibration offsets from a raw reading.
func (c *Calibration) Adjust(raw mag.AxisReading) mag.AxisReading {
	return raw.Sub(c.Offset)
}

// Calibrate takes one reading from src and sets the offsets so that the same
// orientation adjusts to Baseline on every axis. The raw reading is returned
// so the caller can evaluate the sample it calibrated on. If the read fails
// the previous offsets are kept.
func (c *Calibration) Calibrate(src mag.Source) (mag.AxisReading, error) {
	prev := c.Offset
	c.Offset = mag.AxisReading{}
	raw, err := src.Acquire()
	if err != nil {
		c.Offset = prev
		return mag.AxisReading{}, errors.Wrap(err, "calibration read")
	}
	base := mag.AxisReading{X: c.Baseline, Y: c.Baseline, Z: c.Baseline}
	c.Offset = raw.Sub(base)
	c.Valid = true
	return raw, nil
}
