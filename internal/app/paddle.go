package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/output"
	"github.com/relabs-tech/accel_paddle/internal/sampler"
)

// RunPaddle calibrates both bar-end sensors and streams filtered
// acceleration to every configured output until SIGINT/SIGTERM.
func RunPaddle() error {
	log.Println("KXR94-2050 bar controller")

	cfg := config.Get()

	reader, closeReader, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeReader(); err != nil {
			log.Printf("ADC close error: %v", err)
		}
	}()

	sink, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("output close error: %v", err)
		}
	}()

	smp, err := sampler.New(reader, sensorChannels(cfg), sink, samplerOptions(cfg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("sampling every %dms (alpha=%.2f, poll=%s)", cfg.SampleInterval, cfg.LPFAlpha, cfg.PollMode)
	if err := smp.Run(ctx); err != nil {
		return err
	}
	log.Println("paddle: shutting down")
	return nil
}

// openSinks opens stdout, serial and MQTT outputs as configured.
func openSinks(cfg *config.Config) (output.Multi, error) {
	var sinks output.Multi

	if cfg.OutputStdout {
		sinks = append(sinks, output.NewStdoutSink())
	}

	if cfg.SerialPort != "" {
		s, err := output.OpenSerial(cfg.SerialPort, uint(cfg.SerialBaudRate))
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.MQTTBroker != "" {
		s, err := output.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, mqttTopics(cfg))
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		return nil, errors.New("no output configured: set OUTPUT_STDOUT, SERIAL_PORT or MQTT_BROKER")
	}
	return sinks, nil
}

func mqttTopics(cfg *config.Config) output.Topics {
	return output.Topics{
		Records:     cfg.TopicRecords,
		Status:      cfg.TopicStatus,
		Calibration: cfg.TopicCalibration,
	}
}
