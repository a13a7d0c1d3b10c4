// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	disconnectMS   = 250
)

// Channel is the monitor's session with the dashboard broker.
//
// Writes are fire-and-forget: the publish token is not waited on, only an
// already-failed token is reported. A broker outage is handled by paho's
// reconnect logic.
type Channel struct {
	client mqtt.Client
	prefix string
	inbox  *Inbox
}

// Dial connects to broker authenticating with token and subscribes to the
// command pins. Subscriptions are renewed on every reconnect.
func Dial(broker, clientID, token, prefix string) (*Channel, error) {
	c := &Channel{prefix: prefix, inbox: NewInbox(DefaultInboxSize)}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(token).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.Warnf("telemetry: connection lost: %v", err)
		}).
		SetOnConnectHandler(func(client mqtt.Client) {
			logrus.Infof("telemetry: connected to %s", broker)
			if err := c.subscribe(client); err != nil {
				logrus.Errorf("telemetry: %v", err)
			}
		})

	c.client = mqtt.NewClient(opts)
	if t := c.client.Connect(); t.Wait() && t.Error() != nil {
		return nil, errors.Wrapf(t.Error(), "connect to %s", broker)
	}
	return c, nil
}

// newChannel wraps an existing client; used by tests.
func newChannel(client mqtt.Client, prefix string) *Channel {
	return &Channel{client: client, prefix: prefix, inbox: NewInbox(DefaultInboxSize)}
}

func (c *Channel) subscribe(client mqtt.Client) error {
	filters := make(map[string]byte, len(CommandPins))
	for _, p := range CommandPins {
		filters[Topic(c.prefix, p)] = 1
	}
	if t := client.SubscribeMultiple(filters, c.handleMessage); t.Wait() && t.Error() != nil {
		return errors.Wrap(t.Error(), "subscribe to command pins")
	}
	logrus.Debugf("telemetry: subscribed to %d command pins", len(filters))
	return nil
}

// handleMessage runs on paho's dispatcher goroutine; it only enqueues.
func (c *Channel) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	pin, ok := PinFromTopic(c.prefix, msg.Topic())
	if !ok {
		logrus.Warnf("telemetry: message on unexpected topic %q", msg.Topic())
		return
	}
	v, err := ParseValue(msg.Payload())
	if err != nil {
		logrus.Warnf("telemetry: pin %d: %v", pin, err)
		return
	}
	c.inbox.Push(Command{Pin: pin, Value: v})
}

// ParseValue decodes a pin payload. Dashboards send integers; "true" and
// "false" are accepted as 1 and 0.
func ParseValue(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("invalid pin value %q", s)
}

// Drain returns the commands received since the previous call.
func (c *Channel) Drain() []Command {
	return c.inbox.Drain()
}

// Write publishes value to pin (retained, so the dashboard shows the last value).
func (c *Channel) Write(pin Pin, value int) error {
	t := c.client.Publish(Topic(c.prefix, pin), 0, true, strconv.Itoa(value))
	return errors.Wrapf(completedError(t), "write pin %d", pin)
}

// completedError returns the token's error if paho already finished it, which
// is how a publish while disconnected fails. In-flight tokens are not waited on.
func completedError(t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	default:
		return nil
	}
}

// PublishSnapshot publishes the JSON summary of one iteration.
func (c *Channel) PublishSnapshot(s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	t := c.client.Publish(SnapshotTopic(c.prefix), 0, true, payload)
	return errors.Wrap(completedError(t), "publish snapshot")
}

// Close disconnects from the broker.
func (c *Channel) Close() {
	c.client.Disconnect(disconnectMS)
}
