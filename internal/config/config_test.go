package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paddle_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# nothing overridden\n\n"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0.6, cfg.LPFAlpha)
	assert.Equal(t, 10, cfg.SampleInterval)
	assert.Equal(t, 200, cfg.CalibrationSamples)
	assert.Equal(t, 5, cfg.CalibrationDelay)
	assert.Equal(t, uint16(0x48), cfg.Sensor1.I2CAddr)
	assert.Equal(t, uint16(0x49), cfg.Sensor2.I2CAddr)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
ADC_SOURCE=mock
SENSOR1_NAME = bar-left
SENSOR1_I2C_ADDR=0x4A
SENSOR2_X_CHANNEL=3
LPF_ALPHA=0.25
SAMPLE_INTERVAL=20
POLL_MODE=busy
OUTPUT_STDOUT=false
SERIAL_PORT=/dev/ttyUSB0
MQTT_BROKER=tcp://localhost:1883
TOPIC_RECORDS=game/paddle
MOCK_TILT_SENSOR=1
`))
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.ADCSource)
	assert.Equal(t, "bar-left", cfg.Sensor1.Name)
	assert.Equal(t, uint16(0x4A), cfg.Sensor1.I2CAddr)
	assert.Equal(t, 3, cfg.Sensor2.XChannel)
	assert.Equal(t, 0.25, cfg.LPFAlpha)
	assert.Equal(t, 20, cfg.SampleInterval)
	assert.Equal(t, "busy", cfg.PollMode)
	assert.False(t, cfg.OutputStdout)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.SerialBaudRate)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "game/paddle", cfg.TopicRecords)
	assert.Equal(t, 1, cfg.MockTiltSensor)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing equals":      "ADC_SOURCE\n",
		"unknown key":         "NOPE=1\n",
		"unknown sensor key":  "SENSOR1_W_CHANNEL=1\n",
		"bad int":             "SAMPLE_INTERVAL=fast\n",
		"bad address":         "SENSOR2_I2C_ADDR=zz\n",
		"channel range":       "SENSOR1_Z_CHANNEL=4\n",
		"shared channel":      "SENSOR2_I2C_ADDR=0x48\n",
		"repeated in sensor":  "SENSOR1_Y_CHANNEL=0\n",
		"alpha zero":          "LPF_ALPHA=0\n",
		"alpha above one":     "LPF_ALPHA=1.2\n",
		"interval zero":       "SAMPLE_INTERVAL=0\n",
		"poll mode":           "POLL_MODE=spin\n",
		"adc source":          "ADC_SOURCE=mcp3208\n",
		"same names":          "SENSOR2_NAME=left\n",
		"serial without baud": "SERIAL_PORT=/dev/ttyS0\nSERIAL_BAUD_RATE=0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSharedChannelMessage(t *testing.T) {
	_, err := Load(writeConfig(t, "SENSOR2_I2C_ADDR=0x48\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used by SENSOR1_X_CHANNEL")
}
