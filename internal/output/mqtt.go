// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package output

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

const publishTimeout = 250 * time.Millisecond

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics names where each kind of message goes.
type Topics struct {
	Records     string
	Status      string
	Calibration string
}

// MQTTSink publishes records and calibration results as JSON, and status
// lines and the header as plain text.
type MQTTSink struct {
	client     Publisher
	topics     Topics
	disconnect func()
}

func NewMQTTSink(p Publisher, topics Topics) *MQTTSink {
	return &MQTTSink{client: p, topics: topics}
}

// DialMQTT connects to broker and returns a sink owning the connection.
func DialMQTT(broker, clientID string, topics Topics) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("output: connected to MQTT broker at %s", broker)

	s := NewMQTTSink(client, topics)
	s.disconnect = func() { client.Disconnect(250) }
	return s, nil
}

func (s *MQTTSink) Status(msg string) error {
	return s.publish(s.topics.Status, false, msg)
}

func (s *MQTTSink) Calibrated(res calibration.Result) error {
	if s.topics.Calibration == "" {
		return nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("calibration marshal: %w", err)
	}
	return s.publish(s.topics.Calibration+"/"+res.Sensor, true, payload)
}

func (s *MQTTSink) Header(fields []string) error {
	return s.publish(s.topics.Status, false, strings.Join(fields, ","))
}

func (s *MQTTSink) Write(r record.Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("record marshal: %w", err)
	}
	return s.publish(s.topics.Records, true, payload)
}

func (s *MQTTSink) Close() error {
	if s.disconnect != nil {
		s.disconnect()
	}
	return nil
}

func (s *MQTTSink) publish(topic string, retained bool, payload interface{}) error {
	if topic == "" {
		return nil
	}
	token := s.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish %s: %w", topic, err)
	}
	return nil
}
