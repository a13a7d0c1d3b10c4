package app

import (
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/config"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the Commander needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Commander writes the command pins the way a dashboard widget does.
// Values are retained so a monitor that connects later still sees them.
type Commander struct {
	client  publisher
	prefix  string
	timeout time.Duration
}

func NewCommander(client publisher, prefix string) *Commander {
	return &Commander{client: client, prefix: prefix, timeout: publishTimeout}
}

// Calibrate asks the monitor to recalibrate on its next iteration.
func (c *Commander) Calibrate() error {
	return c.send(telemetry.PinCalibrate, 1)
}

// SetMonitoring turns the monitor's evaluate/publish phase on or off.
func (c *Commander) SetMonitoring(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return c.send(telemetry.PinMonitor, v)
}

// Do runs a named action: "calibrate", "enable" or "disable".
func (c *Commander) Do(action string) error {
	switch action {
	case "calibrate":
		return c.Calibrate()
	case "enable":
		return c.SetMonitoring(true)
	case "disable":
		return c.SetMonitoring(false)
	default:
		return errors.Errorf("unknown action %q", action)
	}
}

func (c *Commander) send(pin telemetry.Pin, value int) error {
	topic := telemetry.Topic(c.prefix, pin)
	token := c.client.Publish(topic, 1, true, strconv.Itoa(value))
	if !token.WaitTimeout(c.timeout) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	logrus.Infof("command: %s = %d", topic, value)
	return nil
}

// RunCommand connects, performs one action and disconnects.
func RunCommand(action string) error {
	cfg := config.Get()
	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole+"-cmd")
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectMS)
	return NewCommander(client, cfg.TopicPrefix).Do(action)
}
