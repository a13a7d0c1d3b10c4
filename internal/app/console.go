package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/config"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

var pinNames = map[telemetry.Pin]string{
	telemetry.PinX:         "X",
	telemetry.PinY:         "Y",
	telemetry.PinZ:         "Z",
	telemetry.PinDoorState: "DOOR",
	telemetry.PinCalibrate: "CALIBRATE",
	telemetry.PinMonitor:   "MONITOR",
}

// consolePrinter formats every message under the topic prefix as one line.
type consolePrinter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
}

func (p *consolePrinter) handle(_ mqtt.Client, msg mqtt.Message) {
	line := p.format(msg.Topic(), msg.Payload())
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *consolePrinter) format(topic string, payload []byte) string {
	if topic == telemetry.SnapshotTopic(p.prefix) {
		var s telemetry.Snapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			logrus.Warnf("console: snapshot unmarshal error: %v", err)
			return ""
		}
		var flags []string
		if !s.Calibrated {
			flags = append(flags, "uncalibrated")
		}
		if s.Stale {
			flags = append(flags, "stale")
		}
		return fmt.Sprintf("[DOOR]  %-6s  x=%6d y=%6d z=%6d  %s",
			strings.ToUpper(s.State), s.X, s.Y, s.Z, strings.Join(flags, ","))
	}

	pin, ok := telemetry.PinFromTopic(p.prefix, topic)
	if !ok {
		return ""
	}
	name, ok := pinNames[pin]
	if !ok {
		name = fmt.Sprintf("V%d", pin)
	}
	return fmt.Sprintf("[PIN %d] %-9s = %s", pin, name, strings.TrimSpace(string(payload)))
}

// RunConsole prints the published door state and command pins to out until
// ctx is cancelled.
func RunConsole(ctx context.Context, out io.Writer) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectMS)

	p := &consolePrinter{out: out, prefix: cfg.TopicPrefix}
	if err := subscribe(client, cfg.TopicPrefix+"/#", p.handle); err != nil {
		return err
	}

	<-ctx.Done()
	logrus.Info("console: shutting down")
	return nil
}
