package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values. Destination
// addressing, ports, and tunables are fixed at deploy time through the
// config file; nothing is negotiated at runtime.
type Config struct {
	// Backend
	ServerHost  string
	EventPort   int
	LiveUDPPort int

	// Sensor
	SensorSource   string // "mpu9250", "serial" or "mock"
	SensorPeriodUS int    // target sampling period, microseconds
	IMUSPIDevice   string
	IMUCSPin       string
	IMUAccelFSG    int // accelerometer full scale, g (2/4/8/16)
	IMUGyroFSDPS   int // gyro full scale, °/s (250/500/1000/2000)
	SerialPort     string
	SerialBaudRate int

	// Live streaming
	LiveDecimation     int
	LivePostIntervalMS int
	MaxLivePerPost     int
	LiveQueueSize      int
	LivePayloadBytes   int

	// Event detection
	AccelThresholdMS2 float64
	EventDebounceMS   int
	EventPreSamples   int
	EventPostSamples  int

	// Event delivery
	EventPollIntervalMS int
	HTTPTimeoutMS       int
	EventPayloadBytes   int

	// Connectivity probe / clock sync
	ProbeIntervalMS int
	ProbeTimeoutMS  int
	NTPServer       string
	NTPTimeoutMS    int

	// Scheduling: CPU for the acquisition thread, -1 leaves it unpinned
	AcquisitionCPU int

	// MQTT live mirror (optional, disabled when broker is empty)
	MQTTBroker          string
	MQTTClientID        string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	TopicLive           string
	TopicEvents         string

	// Debug web server
	WebServerPort int
}

// Package-level unexported variables for the singleton pattern: InitGlobal
// sets globalConfig exactly once, Get reads it under an RLock so all
// goroutines see a consistent value.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults mirror the field-tuned values from the racquet deployment.
func defaults() *Config {
	return &Config{
		EventPort:           7103,
		LiveUDPPort:         7104,
		SensorSource:        "mpu9250",
		SensorPeriodUS:      2500, // 400 Hz
		IMUSPIDevice:        "/dev/spidev0.0",
		IMUCSPin:            "18",
		IMUAccelFSG:         16,
		IMUGyroFSDPS:        2000,
		SerialPort:          "/dev/serial0",
		SerialBaudRate:      115200,
		LiveDecimation:      2, // 400 Hz → 200 Hz live
		LivePostIntervalMS:  50,
		MaxLivePerPost:      50,
		LiveQueueSize:       100,
		LivePayloadBytes:    16 * 1024,
		AccelThresholdMS2:   30.0, // ~3g isolates a swing impulse from gravity
		EventDebounceMS:     1000,
		EventPreSamples:     80,  // 200 ms at 400 Hz
		EventPostSamples:    120, // 300 ms at 400 Hz
		EventPollIntervalMS: 100,
		HTTPTimeoutMS:       2000,
		EventPayloadBytes:   64 * 1024,
		ProbeIntervalMS:     1000,
		ProbeTimeoutMS:      500,
		NTPServer:           "pool.ntp.org",
		NTPTimeoutMS:        15000,
		AcquisitionCPU:      -1,
		MQTTClientID:        "racquet-streamer",
		MQTTClientIDConsole: "racquet-console",
		MQTTClientIDWeb:     "racquet-web",
		TopicLive:           "racquet/live",
		TopicEvents:         "racquet/events",
		WebServerPort:       8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
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

func intValue(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Backend
	case "SERVER_HOST":
		c.ServerHost = value
	case "EVENT_PORT":
		c.EventPort, err = intValue(key, value)
	case "LIVE_UDP_PORT":
		c.LiveUDPPort, err = intValue(key, value)

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case "mpu9250", "serial", "mock":
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be mpu9250, serial or mock, got %q", value)
		}
	case "SENSOR_PERIOD_US":
		c.SensorPeriodUS, err = intValue(key, value)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_FS_G":
		v, verr := intValue(key, value)
		if verr != nil {
			return verr
		}
		switch v {
		case 2, 4, 8, 16:
			c.IMUAccelFSG = v
		default:
			return fmt.Errorf("IMU_ACCEL_FS_G must be 2, 4, 8 or 16, got %d", v)
		}
	case "IMU_GYRO_FS_DPS":
		v, verr := intValue(key, value)
		if verr != nil {
			return verr
		}
		switch v {
		case 250, 500, 1000, 2000:
			c.IMUGyroFSDPS = v
		default:
			return fmt.Errorf("IMU_GYRO_FS_DPS must be 250, 500, 1000 or 2000, got %d", v)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = intValue(key, value)

	// Live streaming
	case "LIVE_DECIMATION":
		c.LiveDecimation, err = intValue(key, value)
	case "LIVE_POST_INTERVAL_MS":
		c.LivePostIntervalMS, err = intValue(key, value)
	case "MAX_LIVE_PER_POST":
		c.MaxLivePerPost, err = intValue(key, value)
	case "LIVE_QUEUE_SIZE":
		c.LiveQueueSize, err = intValue(key, value)
	case "LIVE_PAYLOAD_BYTES":
		c.LivePayloadBytes, err = intValue(key, value)

	// Event detection
	case "ACCEL_THRESHOLD_MS2":
		v, verr := strconv.ParseFloat(value, 64)
		if verr != nil {
			return fmt.Errorf("invalid ACCEL_THRESHOLD_MS2 %q: %w", value, verr)
		}
		c.AccelThresholdMS2 = v
	case "EVENT_DEBOUNCE_MS":
		c.EventDebounceMS, err = intValue(key, value)
	case "EVENT_PRE_SAMPLES":
		c.EventPreSamples, err = intValue(key, value)
	case "EVENT_POST_SAMPLES":
		c.EventPostSamples, err = intValue(key, value)

	// Event delivery
	case "EVENT_POLL_INTERVAL_MS":
		c.EventPollIntervalMS, err = intValue(key, value)
	case "HTTP_TIMEOUT_MS":
		c.HTTPTimeoutMS, err = intValue(key, value)
	case "EVENT_PAYLOAD_BYTES":
		c.EventPayloadBytes, err = intValue(key, value)

	// Connectivity / clock
	case "PROBE_INTERVAL_MS":
		c.ProbeIntervalMS, err = intValue(key, value)
	case "PROBE_TIMEOUT_MS":
		c.ProbeTimeoutMS, err = intValue(key, value)
	case "NTP_SERVER":
		c.NTPServer = value
	case "NTP_TIMEOUT_MS":
		c.NTPTimeoutMS, err = intValue(key, value)

	// Scheduling
	case "ACQUISITION_CPU":
		c.AcquisitionCPU, err = intValue(key, value)

	// MQTT mirror
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "TOPIC_LIVE":
		c.TopicLive = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value

	// Web
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intValue(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that required fields are set and tunables are coherent.
func (c *Config) validate() error {
	if c.ServerHost == "" {
		return fmt.Errorf("SERVER_HOST is required")
	}
	if c.SensorPeriodUS <= 0 {
		return fmt.Errorf("SENSOR_PERIOD_US must be positive")
	}
	if c.LiveDecimation <= 0 {
		return fmt.Errorf("LIVE_DECIMATION must be positive")
	}
	if c.EventPreSamples <= 0 || c.EventPostSamples <= 0 {
		return fmt.Errorf("EVENT_PRE_SAMPLES and EVENT_POST_SAMPLES must be positive")
	}
	if c.LiveQueueSize <= 0 {
		return fmt.Errorf("LIVE_QUEUE_SIZE must be positive")
	}
	if c.AccelThresholdMS2 <= 0 {
		return fmt.Errorf("ACCEL_THRESHOLD_MS2 must be positive")
	}
	if c.SensorSource == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required with SENSOR_SOURCE=serial")
	}
	return nil
}

// EventURL is the reliable-channel ingestion endpoint.
func (c *Config) EventURL() string {
	return fmt.Sprintf("http://%s:%d/", c.ServerHost, c.EventPort)
}

// LiveAddr is the best-effort datagram destination.
func (c *Config) LiveAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.LiveUDPPort)
}

// ProbeAddr is the TCP endpoint the connectivity monitor dials.
func (c *Config) ProbeAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.EventPort)
}

// InitGlobal initializes the global configuration from file. Safe to call
// more than once; only the first call loads.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must have been
// called first, or this returns nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
