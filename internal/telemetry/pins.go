// Package telemetry carries door readings to the remote dashboard and
// remote commands back to the monitor loop.
//
// The dashboard is addressed through numbered virtual pins, each mapped to
// one MQTT topic under a common prefix.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// Pin is a virtual channel number.
type Pin int

const (
	PinX         Pin = 0 // adjusted X axis (out)
	PinY         Pin = 1 // adjusted Y axis (out)
	PinZ         Pin = 2 // adjusted Z axis (out)
	PinDoorState Pin = 3 // 0 closed, 1 open (out)
	PinCalibrate Pin = 4 // calibrate request toggle (in, reset to 0 by the monitor)
	PinMonitor   Pin = 5 // monitoring enabled toggle (in)
)

// CommandPins are the pins the monitor subscribes to.
var CommandPins = []Pin{PinCalibrate, PinMonitor}

// Topic returns the MQTT topic for pin under prefix.
func Topic(prefix string, pin Pin) string {
	return fmt.Sprintf("%s/v%d", prefix, int(pin))
}

// SnapshotTopic is where the JSON state summary is published.
func SnapshotTopic(prefix string) string {
	return prefix + "/state"
}

// PinFromTopic is the inverse of Topic.
func PinFromTopic(prefix, topic string) (Pin, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/v")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || Topic(prefix, Pin(n)) != topic {
		return 0, false
	}
	return Pin(n), true
}
