package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// SensorConfig wires one KXR94-2050 to inputs of one ADS1015.
type SensorConfig struct {
	Name     string
	I2CAddr  uint16
	XChannel int
	YChannel int
	ZChannel int
}

// Config holds all application configuration values.
type Config struct {
	// ADC
	ADCSource     string // "ads1015" or "mock"
	ADCI2CBus     string
	ADCDataRateHz int

	// Sensors: 1 is the left bar end, 2 the right
	Sensor1 SensorConfig
	Sensor2 SensorConfig

	// Signal processing
	LPFAlpha           float64
	SampleInterval     int // milliseconds
	CalibrationSamples int
	CalibrationDelay   int    // milliseconds
	PollMode           string // "sleep" or "busy"

	// Output
	OutputStdout   bool
	SerialPort     string
	SerialBaudRate int

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicRecords     string
	TopicStatus      string
	TopicCalibration string

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Mock ADC
	MockTiltSensor int // 0 = none, 1 or 2 tilts that sensor's X axis
	MockTiltPeriod int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file:
// the KXR94-2050 bar controller wiring and timing.
func Default() *Config {
	return &Config{
		ADCSource:     "ads1015",
		ADCDataRateHz: 1600,

		Sensor1: SensorConfig{Name: "left", I2CAddr: 0x48, XChannel: 0, YChannel: 1, ZChannel: 2},
		Sensor2: SensorConfig{Name: "right", I2CAddr: 0x49, XChannel: 0, YChannel: 1, ZChannel: 2},

		LPFAlpha:           0.6,
		SampleInterval:     10,
		CalibrationSamples: 200,
		CalibrationDelay:   5,
		PollMode:           "sleep",

		OutputStdout:   true,
		SerialBaudRate: 115200,

		MQTTClientIDProducer: "paddle-producer",
		MQTTClientIDConsole:  "paddle-console",
		MQTTClientIDWeb:      "paddle-web",
		MQTTClientIDDisplay:  "paddle-display",

		TopicRecords:     "paddle/accel",
		TopicStatus:      "paddle/status",
		TopicCalibration: "paddle/calibration",

		WebServerPort: 8080,
		WebStaticDir:  "web",

		DisplayUpdateInterval: 200,

		MockTiltPeriod: 4000,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
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
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	if strings.HasPrefix(key, "SENSOR1_") {
		return c.Sensor1.setValue(key, strings.TrimPrefix(key, "SENSOR1_"), value)
	}
	if strings.HasPrefix(key, "SENSOR2_") {
		return c.Sensor2.setValue(key, strings.TrimPrefix(key, "SENSOR2_"), value)
	}

	var err error
	switch key {
	// ADC
	case "ADC_SOURCE":
		c.ADCSource = value
	case "ADC_I2C_BUS":
		c.ADCI2CBus = value
	case "ADC_DATA_RATE_HZ":
		c.ADCDataRateHz, err = parseInt(key, value)

	// Signal processing
	case "LPF_ALPHA":
		c.LPFAlpha, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid LPF_ALPHA %q: %w", value, err)
		}
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parseInt(key, value)
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)
	case "CALIBRATION_DELAY":
		c.CalibrationDelay, err = parseInt(key, value)
	case "POLL_MODE":
		c.PollMode = value

	// Output
	case "OUTPUT_STDOUT":
		c.OutputStdout, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid OUTPUT_STDOUT %q: %w", value, err)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_RECORDS":
		c.TopicRecords = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	// Mock ADC
	case "MOCK_TILT_SENSOR":
		c.MockTiltSensor, err = parseInt(key, value)
	case "MOCK_TILT_PERIOD":
		c.MockTiltPeriod, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func (s *SensorConfig) setValue(key, field, value string) error {
	var err error
	switch field {
	case "NAME":
		s.Name = value
	case "I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, perr)
		}
		s.I2CAddr = uint16(addr)
	case "X_CHANNEL":
		s.XChannel, err = parseInt(key, value)
	case "Y_CHANNEL":
		s.YChannel, err = parseInt(key, value)
	case "Z_CHANNEL":
		s.ZChannel, err = parseInt(key, value)
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// Validate checks ranges and that the two sensors use disjoint channels.
func (c *Config) Validate() error {
	switch c.ADCSource {
	case "ads1015", "mock":
	default:
		return fmt.Errorf("ADC_SOURCE must be ads1015 or mock, got %q", c.ADCSource)
	}
	if c.ADCDataRateHz <= 0 {
		return fmt.Errorf("ADC_DATA_RATE_HZ must be positive, got %d", c.ADCDataRateHz)
	}

	used := map[[2]int]string{}
	for i, s := range []SensorConfig{c.Sensor1, c.Sensor2} {
		prefix := fmt.Sprintf("SENSOR%d", i+1)
		if s.Name == "" {
			return fmt.Errorf("%s_NAME is required", prefix)
		}
		for _, axis := range []struct {
			name string
			ch   int
		}{{"X", s.XChannel}, {"Y", s.YChannel}, {"Z", s.ZChannel}} {
			key := fmt.Sprintf("%s_%s_CHANNEL", prefix, axis.name)
			if axis.ch < 0 || axis.ch > 3 {
				return fmt.Errorf("%s must be 0-3, got %d", key, axis.ch)
			}
			id := [2]int{int(s.I2CAddr), axis.ch}
			if other, ok := used[id]; ok {
				return fmt.Errorf("%s: input A%d at 0x%02X already used by %s", key, axis.ch, s.I2CAddr, other)
			}
			used[id] = key
		}
	}
	if c.Sensor1.Name == c.Sensor2.Name {
		return fmt.Errorf("SENSOR1_NAME and SENSOR2_NAME must differ, both %q", c.Sensor1.Name)
	}

	if c.LPFAlpha <= 0 || c.LPFAlpha > 1 {
		return fmt.Errorf("LPF_ALPHA must be in (0, 1], got %v", c.LPFAlpha)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive, got %d", c.SampleInterval)
	}
	if c.CalibrationSamples <= 0 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be positive, got %d", c.CalibrationSamples)
	}
	if c.CalibrationDelay < 0 {
		return fmt.Errorf("CALIBRATION_DELAY must not be negative, got %d", c.CalibrationDelay)
	}
	switch c.PollMode {
	case "sleep", "busy":
	default:
		return fmt.Errorf("POLL_MODE must be sleep or busy, got %q", c.PollMode)
	}
	if c.SerialPort != "" && c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE is required with SERIAL_PORT")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	if c.MockTiltSensor < 0 || c.MockTiltSensor > 2 {
		return fmt.Errorf("MOCK_TILT_SENSOR must be 0, 1 or 2, got %d", c.MockTiltSensor)
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
