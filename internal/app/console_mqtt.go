package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

// connectMQTT connects a subscriber client with the given ID.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	return token.Error()
}

func formatRecord(rec record.Record) string {
	return fmt.Sprintf(
		"[REC ] t=%8dms  L=(%7.4f %7.4f %7.4f)  R=(%7.4f %7.4f %7.4f)",
		rec.TimeMS,
		rec.Sensor1.X, rec.Sensor1.Y, rec.Sensor1.Z,
		rec.Sensor2.X, rec.Sensor2.Y, rec.Sensor2.Z,
	)
}

func formatCalibration(res calibration.Result) string {
	return fmt.Sprintf(
		"[CAL ] %s offset=(%.4f %.4f %.4f) std=(%.4f %.4f %.4f) conf=%.2f",
		res.Sensor,
		res.Offset.X, res.Offset.Y, res.Offset.Z,
		res.StdDev.X, res.StdDev.Y, res.StdDev.Z,
		res.Confidence,
	)
}

// RunConsoleMQTT prints records, status lines and calibration results
// published by a paddle until Ctrl+C.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER not configured")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	err = subscribe(client, cfg.TopicRecords, func(_ mqtt.Client, msg mqtt.Message) {
		var rec record.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("console: record unmarshal error: %v", err)
			return
		}
		fmt.Println(formatRecord(rec))
	})
	if err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicRecords)

	err = subscribe(client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[STAT] %s\n", msg.Payload())
	})
	if err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	calTopic := cfg.TopicCalibration + "/+"
	err = subscribe(client, calTopic, func(_ mqtt.Client, msg mqtt.Message) {
		var res calibration.Result
		if err := json.Unmarshal(msg.Payload(), &res); err != nil {
			log.Printf("console: calibration unmarshal error: %v", err)
			return
		}
		fmt.Println(formatCalibration(res))
	})
	if err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", calTopic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
