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
	"time"

	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

// Sensor sources.
const (
	SourceMock    = "mock"
	SourceMPU9250 = "mpu9250"
	SourceSerial  = "serial"
	SourceMQTT    = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDMonitor  string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDCapture  string

	// Topics
	TopicSamples     string // raw accelerometer samples (in)
	TopicPosture     string // debounced state transitions (out)
	TopicReminder    string // reminder events (out)
	TopicStats       string // daily counter (out)
	TopicStatus      string // periodic status snapshot (out)
	TopicConfig      string // settings snapshot replacement (in)
	TopicControl     string // {"monitoring": bool} (in)
	TopicRotation    string // {"rotation": 0|90|180|270} (in)
	TopicInteraction string // {"screenOn": bool, "unlocked": bool} (in)

	// Sensor
	SensorSource   string
	SampleInterval int // milliseconds
	StatusInterval int // milliseconds
	MockScenario   string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Serial accelerometer
	SerialPort     string
	SerialBaudRate int

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CounterKeyPrefix string

	// Web Server
	WebServerPort int
	// MonitorHTTPPort serves the in-process API next to the monitor; 0 disables it.
	MonitorHTTPPort int

	// Logging
	LogLevel  string
	LogFormat string

	// Posture
	ThresholdSeconds     int
	VibrationEnabled     bool
	DNDEnabled           bool
	DNDStartMinutes      int
	DNDEndMinutes        int
	Timezone             string
	UseCustomPostures    bool
	CustomPosturesFile   string
	DisplayRotation      posture.Rotation
	FilterAlpha          float64
	LargeMotionThreshold float64
	SimilarityThreshold  float64
}

// Package-level singleton. InitGlobal sets it once; Get reads it under a
// read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns the configuration used for keys absent from the file.
func Defaults() *Config {
	s := settings.Defaults()
	t := posture.DefaultTuning()
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDMonitor:  "posture-monitor",
		MQTTClientIDProducer: "posture-sample-producer",
		MQTTClientIDConsole:  "posture-console",
		MQTTClientIDWeb:      "posture-web",
		MQTTClientIDCapture:  "posture-capture",

		TopicSamples:     "posture/samples",
		TopicPosture:     "posture/state",
		TopicReminder:    "posture/reminder",
		TopicStats:       "posture/stats",
		TopicStatus:      "posture/status",
		TopicConfig:      "posture/config",
		TopicControl:     "posture/control",
		TopicRotation:    "posture/rotation",
		TopicInteraction: "posture/interaction",

		SensorSource:   SourceMock,
		SampleInterval: 50,
		StatusInterval: 1000,
		MockScenario:   "side",

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "GPIO8",
		IMUAccelRange: 0,

		SerialBaudRate: 115200,

		RedisAddr:        "localhost:6379",
		CounterKeyPrefix: "posture:reminders:",

		WebServerPort:   8080,
		MonitorHTTPPort: 8081,

		LogLevel:  "info",
		LogFormat: "json",

		ThresholdSeconds:     s.ThresholdSeconds,
		VibrationEnabled:     s.VibrationEnabled,
		DNDEnabled:           s.DNDEnabled,
		DNDStartMinutes:      s.DNDStartMinutes,
		DNDEndMinutes:        s.DNDEndMinutes,
		DisplayRotation:      posture.Rotation0,
		FilterAlpha:          t.Alpha,
		LargeMotionThreshold: t.LargeMotionThreshold,
		SimilarityThreshold:  t.SimilarityThreshold,
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

// Parse reads KEY=VALUE lines on top of Defaults. Blank lines and lines
// starting with # are ignored.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
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

// setValue sets a config value based on the key. Out-of-range posture
// values are clamped rather than rejected.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CAPTURE":
		c.MQTTClientIDCapture = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_POSTURE":
		c.TopicPosture = value
	case "TOPIC_REMINDER":
		c.TopicReminder = value
	case "TOPIC_STATS":
		c.TopicStats = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_CONFIG":
		c.TopicConfig = value
	case "TOPIC_CONTROL":
		c.TopicControl = value
	case "TOPIC_ROTATION":
		c.TopicRotation = value
	case "TOPIC_INTERACTION":
		c.TopicInteraction = value

	// Sensor
	case "SENSOR_SOURCE":
		c.SensorSource = strings.ToLower(value)
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval
	case "STATUS_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATUS_INTERVAL %q: %w", value, err)
		}
		c.StatusInterval = interval
	case "MOCK_SCENARIO":
		c.MockScenario = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Redis
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_PASSWORD":
		c.RedisPassword = value
	case "REDIS_DB":
		db, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", value, err)
		}
		c.RedisDB = db
	case "COUNTER_KEY_PREFIX":
		c.CounterKeyPrefix = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "MONITOR_HTTP_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MONITOR_HTTP_PORT %q: %w", value, err)
		}
		c.MonitorHTTPPort = port

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	// Posture
	case "THRESHOLD_SECONDS":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid THRESHOLD_SECONDS %q: %w", value, err)
		}
		c.ThresholdSeconds = settings.ClampThreshold(seconds)
	case "VIBRATION_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid VIBRATION_ENABLED %q: %w", value, err)
		}
		c.VibrationEnabled = b
	case "DND_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DND_ENABLED %q: %w", value, err)
		}
		c.DNDEnabled = b
	case "DND_START":
		minutes, err := ParseMinuteOfDay(value)
		if err != nil {
			return fmt.Errorf("invalid DND_START %q: %w", value, err)
		}
		c.DNDStartMinutes = minutes
	case "DND_END":
		minutes, err := ParseMinuteOfDay(value)
		if err != nil {
			return fmt.Errorf("invalid DND_END %q: %w", value, err)
		}
		c.DNDEndMinutes = minutes
	case "TIMEZONE":
		if _, err := loadLocation(value); err != nil {
			return fmt.Errorf("invalid TIMEZONE %q: %w", value, err)
		}
		c.Timezone = value
	case "USE_CUSTOM_POSTURES":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid USE_CUSTOM_POSTURES %q: %w", value, err)
		}
		c.UseCustomPostures = b
	case "CUSTOM_POSTURES_FILE":
		c.CustomPosturesFile = value
	case "DISPLAY_ROTATION":
		deg, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ROTATION %q: %w", value, err)
		}
		rot, err := posture.ParseRotation(deg)
		if err != nil {
			return err
		}
		c.DisplayRotation = rot
	case "FILTER_ALPHA":
		alpha, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FILTER_ALPHA %q: %w", value, err)
		}
		c.FilterAlpha = clampFloat(alpha, 0.01, 1)
	case "LARGE_MOTION_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid LARGE_MOTION_THRESHOLD %q: %w", value, err)
		}
		c.LargeMotionThreshold = clampFloat(v, 0.1, 50)
	case "SIMILARITY_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SIMILARITY_THRESHOLD %q: %w", value, err)
		}
		c.SimilarityThreshold = clampFloat(v, 0.01, 10)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	switch c.SensorSource {
	case SourceMock, SourceMQTT:
	case SourceMPU9250:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for SENSOR_SOURCE=%s", SourceMPU9250)
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SENSOR_SOURCE=%s", SourceSerial)
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE must be positive")
		}
	default:
		return fmt.Errorf("unknown SENSOR_SOURCE %q", c.SensorSource)
	}
	return nil
}

// Settings builds the detection settings snapshot. When CUSTOM_POSTURES_FILE
// is set the reference postures are read from it.
func (c *Config) Settings() (settings.Settings, error) {
	s := settings.Settings{
		ThresholdSeconds:  c.ThresholdSeconds,
		VibrationEnabled:  c.VibrationEnabled,
		DNDEnabled:        c.DNDEnabled,
		DNDStartMinutes:   c.DNDStartMinutes,
		DNDEndMinutes:     c.DNDEndMinutes,
		UseCustomPostures: c.UseCustomPostures,
	}
	if c.CustomPosturesFile != "" {
		postures, err := posture.LoadReferencePostures(c.CustomPosturesFile)
		if err != nil {
			return settings.Settings{}, err
		}
		s.Postures = postures
	}
	return s.Clamp(), nil
}

// Tuning returns the pipeline constants with the configured overrides.
func (c *Config) Tuning() posture.Tuning {
	t := posture.DefaultTuning()
	t.Alpha = c.FilterAlpha
	t.LargeMotionThreshold = c.LargeMotionThreshold
	t.SimilarityThreshold = c.SimilarityThreshold
	return t
}

// Location returns the zone quiet hours are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// ParseMinuteOfDay accepts "HH:MM" or a plain minute count and clamps the
// result into [0,1439].
func ParseMinuteOfDay(value string) (int, error) {
	if h, m, ok := strings.Cut(value, ":"); ok {
		hours, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return 0, err
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(m))
		if err != nil {
			return 0, err
		}
		if minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("minutes must be 0-59, got %d", minutes)
		}
		return settings.ClampMinuteOfDay(hours*60 + minutes), nil
	}
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return settings.ClampMinuteOfDay(minutes), nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InitGlobal initializes the global configuration from file. Only the
// first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
