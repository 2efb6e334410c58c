package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_paddle/internal/accel"
	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

// displayData holds the latest record for the OLED.
type displayData struct {
	mu   sync.RWMutex
	rec  record.Record
	have bool
}

func (d *displayData) set(rec record.Record) {
	d.mu.Lock()
	d.rec = rec
	d.have = true
	d.mu.Unlock()
}

func (d *displayData) get() (record.Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rec, d.have
}

func sensorLabel(name string) string {
	if name == "" {
		return "?"
	}
	return strings.ToUpper(name[:1])
}

// renderRecord lays out both sensors on a 128x64 frame, two rows each.
func renderRecord(rec record.Record, have bool, labels [2]string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !have {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("PADDLE")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	for i, t := range []accel.Triple{rec.Sensor1, rec.Sensor2} {
		y := 13 + i*26
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(fmt.Sprintf("%s X%+.2f Y%+.2f", labels[i], t.X, t.Y))
		drawer.Dot = fixed.P(0, y+13)
		drawer.DrawString(fmt.Sprintf("  Z%+.2f", t.Z))
	}
	return img
}

// RunDisplay shows the live paddle stream on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("display: MQTT_BROKER not configured")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	labels := [2]string{sensorLabel(cfg.Sensor1.Name), sensorLabel(cfg.Sensor2.Name)}
	data := &displayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	err = subscribe(client, cfg.TopicRecords, func(_ mqtt.Client, msg mqtt.Message) {
		var rec record.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("display: record unmarshal error: %v", err)
			return
		}
		data.set(rec)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicRecords, err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for range ticker.C {
		rec, have := data.get()
		img := renderRecord(rec, have, labels)
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: draw error: %v", err)
		}
	}
	return nil
}
