package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doorwatch_config.txt")
	test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
# minimal
MQTT_BROKER=tcp://localhost:1883
AUTH_TOKEN=abc123
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MQTTBroker, test.ShouldEqual, "tcp://localhost:1883")
	test.That(t, cfg.AuthToken, test.ShouldEqual, "abc123")
	test.That(t, cfg.TopicPrefix, test.ShouldEqual, "doorwatch")
	test.That(t, cfg.MagI2CAddr, test.ShouldEqual, uint16(0x1E))
	test.That(t, cfg.MagCRA, test.ShouldEqual, byte(0x70))
	test.That(t, cfg.MagCRB, test.ShouldEqual, byte(0xA0))
	test.That(t, cfg.Baseline, test.ShouldEqual, 1000)
	test.That(t, cfg.Threshold, test.ShouldEqual, 50)
	test.That(t, cfg.LoopInterval, test.ShouldEqual, 1000)
	test.That(t, cfg.MonitorAtStart, test.ShouldBeFalse)
	test.That(t, cfg.DisplayI2CAddr, test.ShouldEqual, uint16(0))
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://broker:1883
AUTH_TOKEN=tok
TOPIC_PREFIX=home/front-door/
I2C_BUS=1
MAG_I2C_ADDR=0x1D
MAG_CRA=0x10
MAG_SETTLE_MS=0
THRESHOLD=75
LOOP_INTERVAL=250
MONITOR_AT_START=true
DISPLAY_I2C_ADDR=0x3C
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.TopicPrefix, test.ShouldEqual, "home/front-door")
	test.That(t, cfg.I2CBus, test.ShouldEqual, "1")
	test.That(t, cfg.MagI2CAddr, test.ShouldEqual, uint16(0x1D))
	test.That(t, cfg.MagCRA, test.ShouldEqual, byte(0x10))
	test.That(t, cfg.MagSettleMS, test.ShouldEqual, 0)
	test.That(t, cfg.Threshold, test.ShouldEqual, 75)
	test.That(t, cfg.LoopInterval, test.ShouldEqual, 250)
	test.That(t, cfg.MonitorAtStart, test.ShouldBeTrue)
	test.That(t, cfg.DisplayI2CAddr, test.ShouldEqual, uint16(0x3C))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing broker", "AUTH_TOKEN=x\n", "MQTT_BROKER is required"},
		{"missing token", "MQTT_BROKER=tcp://b:1883\n", "AUTH_TOKEN is required"},
		{"unknown key", "MQTT_BROKER=tcp://b:1883\nAUTH_TOKEN=x\nFOO=1\n", "unknown config key"},
		{"no equals", "MQTT_BROKER\n", "invalid config line 1"},
		{"bad threshold", "THRESHOLD=-1\n", "THRESHOLD must be >= 0"},
		{"wide address", "MAG_I2C_ADDR=0x1FF\n", "7-bit address"},
		{"bad mode", "MAG_MODE=7\n", "MAG_MODE must be 0-3"},
		{"display address", "DISPLAY_I2C_ADDR=0x3D\n", "DISPLAY_I2C_ADDR must be 0 (disabled) or 0x3C"},
		{"zero interval", "MQTT_BROKER=tcp://b:1883\nAUTH_TOKEN=x\nLOOP_INTERVAL=0\n", "LOOP_INTERVAL must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to open config file")
}
