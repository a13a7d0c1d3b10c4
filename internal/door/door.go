// Package door turns calibrated magnetometer readings into an open/closed
// classification.
package door

import (
	"github.com/relabs-tech/doorwatch/internal/mag"
)

// Baseline is the value every axis reads right after calibration.
const Baseline = 1000

// DefaultThreshold is the half-width of the closed band around Baseline.
const DefaultThreshold = 50

// State is the classified door position.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Evaluate returns Open if any axis of adjusted lies outside
// [baseline-threshold, baseline+threshold]. Values on the boundary are Closed.
func Evaluate(adjusted mag.AxisReading, baseline, threshold int) State {
	lo, hi := baseline-threshold, baseline+threshold
	for _, v := range []int{adjusted.X, adjusted.Y, adjusted.Z} {
		if v < lo || v > hi {
			return Open
		}
	}
	return Closed
}
