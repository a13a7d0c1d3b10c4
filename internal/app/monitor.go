// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/config"
	"github.com/relabs-tech/doorwatch/internal/display"
	"github.com/relabs-tech/doorwatch/internal/monitor"
	"github.com/relabs-tech/doorwatch/internal/sensors"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

// RunMonitor wires the magnetometer, the MQTT channel and the optional
// display into the monitor loop and runs it until ctx is cancelled.
func RunMonitor(ctx context.Context) error {
	cfg := config.Get()

	bus, err := sensors.OpenBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()
	logrus.Infof("monitor: I2C bus %s open", bus)

	src := sensors.NewMagSource(bus, cfg)

	ch, err := telemetry.Dial(cfg.MQTTBroker, cfg.MQTTClientIDMonitor, cfg.AuthToken, cfg.TopicPrefix)
	if err != nil {
		return errors.Wrap(err, "telemetry")
	}
	defer ch.Close()

	var sinks []monitor.Sink
	if cfg.DisplayI2CAddr != 0 {
		panel, err := display.Open(bus)
		if err != nil {
			// the door still gets monitored without the local panel
			logrus.Warnf("monitor: display disabled: %v", err)
		} else {
			sinks = append(sinks, panel)
		}
	}

	opts := monitor.DefaultOptions()
	opts.Baseline = cfg.Baseline
	opts.Threshold = cfg.Threshold
	opts.Interval = time.Duration(cfg.LoopInterval) * time.Millisecond
	opts.MonitorAtStart = cfg.MonitorAtStart
	loop := monitor.New(src, ch, opts, sinks...)

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
