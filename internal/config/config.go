// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DefaultPath is where the tools look for the configuration file when no
// --config flag is given.
const DefaultPath = "./doorwatch_config.txt"

// DisplayAddr is the SSD1306 address; the driver does not support others.
const DisplayAddr = 0x3C

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	AuthToken           string
	MQTTClientIDMonitor string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string
	TopicPrefix         string

	// Magnetometer hardware
	I2CBus      string // periph bus name, "" selects the first bus
	MagI2CAddr  uint16
	MagCRA      byte // configuration register A
	MagCRB      byte // configuration register B (gain)
	MagMode     byte // mode register value applied at init
	MagSettleMS int  // settle delay after each register write

	// Detection
	Baseline       int
	Threshold      int
	LoopInterval   int // milliseconds
	MonitorAtStart bool

	// Display (0 disables)
	DisplayI2CAddr uint16

	// Web Server
	WebServerPort int

	LogLevel string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDMonitor: "doorwatch-monitor",
		MQTTClientIDWeb:     "doorwatch-web",
		MQTTClientIDConsole: "doorwatch-console",
		TopicPrefix:         "doorwatch",
		MagI2CAddr:          0x1E,
		MagCRA:              0x70,
		MagCRB:              0xA0,
		MagMode:             0x00,
		MagSettleMS:         10,
		Baseline:            1000,
		Threshold:           50,
		LoopInterval:        1000,
		WebServerPort:       8080,
		LogLevel:            "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "AUTH_TOKEN":
		c.AuthToken = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.TrimSuffix(value, "/")

	// Magnetometer hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "MAG_I2C_ADDR":
		addr, err := parseAddr(key, value)
		if err != nil {
			return err
		}
		if addr == 0 {
			return fmt.Errorf("MAG_I2C_ADDR must not be 0")
		}
		c.MagI2CAddr = addr
	case "MAG_CRA":
		v, err := parseByte(key, value)
		if err != nil {
			return err
		}
		c.MagCRA = v
	case "MAG_CRB":
		v, err := parseByte(key, value)
		if err != nil {
			return err
		}
		c.MagCRB = v
	case "MAG_MODE":
		v, err := parseByte(key, value)
		if err != nil {
			return err
		}
		if v > 3 {
			return fmt.Errorf("MAG_MODE must be 0-3 (0=continuous, 1=single, 2/3=idle), got %d", v)
		}
		c.MagMode = v
	case "MAG_SETTLE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_SETTLE_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("MAG_SETTLE_MS must be >= 0, got %d", ms)
		}
		c.MagSettleMS = ms

	// Detection
	case "BASELINE":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BASELINE %q: %w", value, err)
		}
		c.Baseline = v
	case "THRESHOLD":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid THRESHOLD %q: %w", value, err)
		}
		if v < 0 {
			return fmt.Errorf("THRESHOLD must be >= 0, got %d", v)
		}
		c.Threshold = v
	case "LOOP_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOOP_INTERVAL %q: %w", value, err)
		}
		c.LoopInterval = interval
	case "MONITOR_AT_START":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MONITOR_AT_START %q: %w", value, err)
		}
		c.MonitorAtStart = v

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := parseAddr(key, value)
		if err != nil {
			return err
		}
		if addr != 0 && addr != DisplayAddr {
			return fmt.Errorf("DISPLAY_I2C_ADDR must be 0 (disabled) or 0x%02X, got 0x%02X", DisplayAddr, addr)
		}
		c.DisplayI2CAddr = addr

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

func parseByte(key, value string) (byte, error) {
	v, err := strconv.ParseUint(value, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return byte(v), nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("TOPIC_PREFIX must not be empty")
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("LOOP_INTERVAL must be > 0, got %d", c.LoopInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads the file.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
