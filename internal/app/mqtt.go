package app

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/config"
)

const disconnectMS = 250

// connectMQTT opens a plain client session for the observer tools. The
// monitor itself goes through telemetry.Dial.
func connectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetUsername(cfg.AuthToken).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to %s", cfg.MQTTBroker)
	}
	logrus.Infof("connected to MQTT broker at %s as %s", cfg.MQTTBroker, clientID)
	return client, nil
}

// subscribe waits for the subscription to be acknowledged.
func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe to %s", topic)
	}
	logrus.Infof("subscribed to MQTT topic %s", topic)
	return nil
}
