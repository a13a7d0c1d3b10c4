// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor runs the door sensor loop: drain remote commands, sample
// the magnetometer, recalibrate on request, classify and publish.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/door"
	"github.com/relabs-tech/doorwatch/internal/mag"
	"github.com/relabs-tech/doorwatch/internal/sensors"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

// Channel is the remote side of the loop.
type Channel interface {
	Drain() []telemetry.Command
	Write(pin telemetry.Pin, value int) error
	PublishSnapshot(s telemetry.Snapshot) error
}

// Result is what one monitoring iteration produced.
type Result struct {
	Adjusted   mag.AxisReading
	State      door.State
	Calibrated bool
	Stale      bool
	Time       time.Time
}

// Sink receives every Result, e.g. a local display.
type Sink interface {
	Show(r Result) error
}

// Options configures a Loop. Baseline and Threshold are used as given, zero
// included; a zero Interval means one second and a nil Clock the wall clock.
type Options struct {
	Baseline       int
	Threshold      int
	Interval       time.Duration
	MonitorAtStart bool
	Clock          clock.Clock
}

// State is everything the loop carries between iterations.
type State struct {
	Reading     mag.AxisReading // last good raw sample
	HaveReading bool
	Stale       bool // the most recent acquisition failed
	Calibration door.Calibration

	CalibrationRequested bool
	MonitoringEnabled    bool

	Door     door.State
	HaveDoor bool
}

// Loop owns the sensor, the remote channel and all loop state. It is not
// safe for concurrent use; Run and Step must be called from one goroutine.
type Loop struct {
	src   mag.Source
	ch    Channel
	sinks []Sink
	opts  Options
	clock clock.Clock
	state State
}

// DefaultOptions returns the detection defaults: baseline 1000, threshold 50,
// one-second interval.
func DefaultOptions() Options {
	return Options{
		Baseline:  door.Baseline,
		Threshold: door.DefaultThreshold,
		Interval:  time.Second,
	}
}

// New returns a loop reading from src and reporting to ch.
func New(src mag.Source, ch Channel, opts Options, sinks ...Sink) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Loop{
		src:   src,
		ch:    ch,
		sinks: sinks,
		opts:  opts,
		clock: opts.Clock,
		state: State{
			Calibration:       *door.NewCalibration(opts.Baseline),
			MonitoringEnabled: opts.MonitorAtStart,
		},
	}
}

// State returns a copy of the current loop state.
func (l *Loop) State() State {
	return l.state
}

// Run steps once immediately and then once per interval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(l.opts.Interval)
	defer ticker.Stop()

	logrus.Infof("monitor: started (interval=%s baseline=%d threshold=%d monitoring=%t)",
		l.opts.Interval, l.opts.Baseline, l.opts.Threshold, l.state.MonitoringEnabled)
	for {
		l.Step()
		select {
		case <-ctx.Done():
			logrus.Info("monitor: stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs exactly one iteration.
func (l *Loop) Step() {
	l.applyCommands(l.ch.Drain())
	l.acquire()

	if !l.state.MonitoringEnabled {
		return
	}
	if l.state.CalibrationRequested {
		l.calibrate()
	}
	if !l.state.HaveReading {
		logrus.Debug("monitor: no sensor reading yet, nothing to evaluate")
		return
	}
	l.publish(l.evaluate())
}

func (l *Loop) applyCommands(cmds []telemetry.Command) {
	for _, c := range cmds {
		switch c.Pin {
		case telemetry.PinCalibrate:
			l.state.CalibrationRequested = c.Enabled()
			logrus.Debugf("monitor: calibration requested=%t", c.Enabled())
		case telemetry.PinMonitor:
			if l.state.MonitoringEnabled != c.Enabled() {
				logrus.Infof("monitor: monitoring enabled=%t", c.Enabled())
			}
			l.state.MonitoringEnabled = c.Enabled()
		default:
			logrus.Warnf("monitor: ignoring command on pin %d", c.Pin)
		}
	}
}

func (l *Loop) acquire() {
	raw, err := l.src.Acquire()
	if err != nil {
		l.state.Stale = true
		if errors.Is(err, sensors.ErrInsufficientData) {
			logrus.Debugf("monitor: keeping previous reading: %v", err)
		} else {
			logrus.Warnf("monitor: sensor read failed, keeping previous reading: %v", err)
		}
		return
	}
	l.state.Reading = raw
	l.state.HaveReading = true
	l.state.Stale = false
	logrus.Tracef("monitor: raw %s", raw)
}

func (l *Loop) calibrate() {
	raw, err := l.state.Calibration.Calibrate(l.src)
	if err != nil {
		logrus.Warnf("monitor: calibration failed, will retry next iteration: %v", err)
		return
	}
	l.state.Reading = raw
	l.state.HaveReading = true
	l.state.Stale = false
	l.state.CalibrationRequested = false
	if err := l.ch.Write(telemetry.PinCalibrate, 0); err != nil {
		logrus.Warnf("monitor: failed to reset calibrate toggle: %v", err)
	}
	logrus.Infof("monitor: calibrated, offsets %s", l.state.Calibration.Offset)
}

func (l *Loop) evaluate() Result {
	adjusted := l.state.Calibration.Adjust(l.state.Reading)
	st := door.Evaluate(adjusted, l.opts.Baseline, l.opts.Threshold)
	if !l.state.HaveDoor || st != l.state.Door {
		logrus.Infof("monitor: door %s (%s)", st, adjusted)
	}
	l.state.Door = st
	l.state.HaveDoor = true
	return Result{
		Adjusted:   adjusted,
		State:      st,
		Calibrated: l.state.Calibration.Valid,
		Stale:      l.state.Stale,
		Time:       l.clock.Now(),
	}
}

func (l *Loop) publish(r Result) {
	for _, w := range []struct {
		pin   telemetry.Pin
		value int
	}{
		{telemetry.PinX, r.Adjusted.X},
		{telemetry.PinY, r.Adjusted.Y},
		{telemetry.PinZ, r.Adjusted.Z},
		{telemetry.PinDoorState, int(r.State)},
	} {
		if err := l.ch.Write(w.pin, w.value); err != nil {
			logrus.Warnf("monitor: write pin %d: %v", w.pin, err)
		}
	}
	snap := telemetry.NewSnapshot(r.Adjusted, r.State, r.Calibrated, r.Stale, r.Time)
	if err := l.ch.PublishSnapshot(snap); err != nil {
		logrus.Warnf("monitor: publish snapshot: %v", err)
	}
	for _, s := range l.sinks {
		if err := s.Show(r); err != nil {
			logrus.Warnf("monitor: sink: %v", err)
		}
	}
}
