package app

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/output"
)

// RunCalibration calibrates both sensors once and prints the results as
// JSON. Nothing is stored; the paddle recalibrates at every start.
func RunCalibration() error {
	cfg := config.Get()

	reader, closeReader, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer closeReader()

	var mq *output.MQTTSink
	if cfg.MQTTBroker != "" {
		mq, err = output.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, mqttTopics(cfg))
		if err != nil {
			return err
		}
		defer mq.Close()
	}

	cal := calibration.New(reader, calibrationOptions(cfg))
	var results []calibration.Result

	for _, s := range sensorChannels(cfg) {
		log.Printf("calibrating %s sensor (keep still)...", s.Name)
		res, err := cal.Calibrate(s)
		if err != nil {
			return fmt.Errorf("%s sensor: %w", s.Name, err)
		}
		if !res.Still() {
			log.Printf("%s sensor: WARNING: confidence %.2f, sensor moved during capture", s.Name, res.Confidence)
		}
		if mq != nil {
			if err := mq.Calibrated(res); err != nil {
				log.Printf("calibration publish error: %v", err)
			}
		}
		results = append(results, res)
	}

	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
