// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Source kinds accepted by SOURCE.
const (
	SourceMock = "mock"
	SourceUDP  = "udp"
	SourceMQTT = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDConsole string
	MQTTClientIDSource  string

	// Topics
	TopicPose    string // published (raw, mapped) frames
	TopicPoseRaw string // raw poses consumed by the mqtt source
	TopicControl string // center/zero/enable commands

	// Pose source
	Source        string
	UDPListenAddr string
	SourceStaleMS int // UDP source reports unavailable after this long without data

	// Timing
	SampleInterval  int // milliseconds
	PublishInterval int // milliseconds

	// Compensation
	PivotOffsetX   float64 // cm, head frame at neutral
	PivotOffsetY   float64
	PivotOffsetZ   float64
	CompensateRoll bool
	CameraYaw      float64 // degrees
	CameraPitch    float64

	// Runtime
	CenterAtStart  bool
	EnabledAtStart bool
	MappingFile    string
	TrackLogFile   string // CSV of every iteration's stages; empty disables

	// Web Server
	WebServerPort int

	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDTracker: "headtrack-tracker",
		MQTTClientIDConsole: "headtrack-console",
		MQTTClientIDSource:  "headtrack-source",

		TopicPose:    "headtrack/pose",
		TopicPoseRaw: "headtrack/pose/raw",
		TopicControl: "headtrack/control",

		Source:        SourceMock,
		UDPListenAddr: ":4242",
		SourceStaleMS: 1000,

		SampleInterval:  4,
		PublishInterval: 20,

		CompensateRoll: true,

		CenterAtStart:  true,
		EnabledAtStart: true,

		WebServerPort: 8080,
		LogLevel:      "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_SOURCE":
		c.MQTTClientIDSource = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_POSE_RAW":
		c.TopicPoseRaw = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// Pose source
	case "SOURCE":
		switch value {
		case SourceMock, SourceUDP, SourceMQTT:
			c.Source = value
		default:
			return fmt.Errorf("SOURCE must be one of %s, %s, %s, got %q", SourceMock, SourceUDP, SourceMQTT, value)
		}
	case "UDP_LISTEN_ADDR":
		c.UDPListenAddr = value
	case "SOURCE_STALE_MS":
		c.SourceStaleMS, err = parseNonNegative(key, value)

	// Timing
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parseNonNegative(key, value)
	case "PUBLISH_INTERVAL":
		c.PublishInterval, err = parseNonNegative(key, value)

	// Compensation
	case "PIVOT_OFFSET_X":
		c.PivotOffsetX, err = parseFloat(key, value)
	case "PIVOT_OFFSET_Y":
		c.PivotOffsetY, err = parseFloat(key, value)
	case "PIVOT_OFFSET_Z":
		c.PivotOffsetZ, err = parseFloat(key, value)
	case "COMPENSATE_ROLL":
		c.CompensateRoll, err = parseBool(key, value)
	case "CAMERA_YAW":
		c.CameraYaw, err = parseFloat(key, value)
	case "CAMERA_PITCH":
		c.CameraPitch, err = parseFloat(key, value)

	// Runtime
	case "CENTER_AT_START":
		c.CenterAtStart, err = parseBool(key, value)
	case "ENABLED_AT_START":
		c.EnabledAtStart, err = parseBool(key, value)
	case "MAPPING_FILE":
		c.MappingFile = value
	case "TRACK_LOG_FILE":
		c.TrackLogFile = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port

	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseNonNegative(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, v)
	}
	return v, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SampleInterval == 0 {
		return fmt.Errorf("SAMPLE_INTERVAL is required")
	}
	if c.PublishInterval == 0 {
		return fmt.Errorf("PUBLISH_INTERVAL is required")
	}
	if c.Source == SourceUDP && c.UDPListenAddr == "" {
		return fmt.Errorf("UDP_LISTEN_ADDR is required for SOURCE=udp")
	}
	if c.Source == SourceMQTT && (c.MQTTBroker == "" || c.TopicPoseRaw == "") {
		return fmt.Errorf("MQTT_BROKER and TOPIC_POSE_RAW are required for SOURCE=mqtt")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
