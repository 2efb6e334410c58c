package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local network
	},
}

// recordHub keeps the latest record and calibration results and fans
// records out to websocket clients.
type recordHub struct {
	mu          sync.RWMutex
	latest      record.Record
	haveLatest  bool
	calibration map[string]calibration.Result

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

func newRecordHub() *recordHub {
	return &recordHub{
		calibration: make(map[string]calibration.Result),
		conns:       make(map[*websocket.Conn]struct{}),
	}
}

// Publish stores rec and sends it to every connected client. Clients that
// fail the write are dropped.
func (h *recordHub) Publish(rec record.Record) {
	h.mu.Lock()
	h.latest = rec
	h.haveLatest = true
	h.mu.Unlock()

	h.connMu.Lock()
	defer h.connMu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(rec); err != nil {
			log.Printf("web: websocket write error: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *recordHub) SetCalibration(res calibration.Result) {
	h.mu.Lock()
	h.calibration[res.Sensor] = res
	h.mu.Unlock()
}

func (h *recordHub) clients() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return len(h.conns)
}

func (h *recordHub) serveLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	rec, ok := h.latest, h.haveLatest
	h.mu.RUnlock()

	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, rec)
}

func (h *recordHub) serveCalibration(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	results := make([]calibration.Result, 0, len(h.calibration))
	for _, res := range h.calibration {
		results = append(results, res)
	}
	h.mu.RUnlock()
	sort.Slice(results, func(i, j int) bool { return results[i].Sensor < results[j].Sensor })

	if len(results) == 0 {
		http.Error(w, "no calibration yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, results)
}

func (h *recordHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	h.connMu.Lock()
	h.conns[conn] = struct{}{}
	h.connMu.Unlock()
	log.Println("web: websocket client connected")

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.connMu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	h.connMu.Unlock()
	log.Println("web: websocket client disconnected")
}

func (h *recordHub) routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/latest", h.serveLatest)
	mux.HandleFunc("/api/calibration", h.serveCalibration)
	mux.HandleFunc("/ws/records", h.serveWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// RunWeb serves the paddle stream from MQTT over HTTP and websocket.
func RunWeb() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("web: MQTT_BROKER not configured")
	}

	hub := newRecordHub()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	err = subscribe(client, cfg.TopicRecords, func(_ mqtt.Client, msg mqtt.Message) {
		var rec record.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		hub.Publish(rec)
	})
	if err != nil {
		return err
	}
	log.Printf("web: subscribed to %s", cfg.TopicRecords)

	err = subscribe(client, cfg.TopicCalibration+"/+", func(_ mqtt.Client, msg mqtt.Message) {
		var res calibration.Result
		if err := json.Unmarshal(msg.Payload(), &res); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		hub.SetCalibration(res)
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, hub.routes(cfg.WebStaticDir))
}
