package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/racquet_stream/internal/config"
	"github.com/relabs-tech/racquet_stream/internal/swing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// watcherHub fans mirrored frames out to connected websocket viewers. Each
// viewer gets a small buffered channel; frames are skipped, never queued,
// when a browser tab falls behind.
type watcherHub struct {
	mu       sync.Mutex
	watchers map[*websocket.Conn]chan []byte
}

func newWatcherHub() *watcherHub {
	return &watcherHub{watchers: map[*websocket.Conn]chan []byte{}}
}

func (h *watcherHub) broadcast(raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.watchers {
		select {
		case ch <- raw:
		default: // slow browser tab, skip the frame
		}
	}
}

func (h *watcherHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// serveWS upgrades the request and pumps frames until the viewer goes away.
// The read loop exists only to notice the disconnect: without it a viewer
// that closes during a quiet feed would leave its writer goroutine and hub
// entry behind until the next frame failed to send.
func (h *watcherHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade failed: %v", err)
		return
	}
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.watchers[conn] = ch
	h.mu.Unlock()
	log.Printf("web: websocket viewer connected from %s", r.RemoteAddr)

	go func() {
		for raw := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				conn.Close() // unblocks the read loop below
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Unregister before closing ch: broadcast holds the same lock, so no
	// send can race the close.
	h.mu.Lock()
	delete(h.watchers, conn)
	h.mu.Unlock()
	close(ch)
	conn.Close()
	log.Printf("web: websocket viewer %s disconnected", r.RemoteAddr)
}

// RunWeb serves a local debug view of the mirror: a JSON status endpoint
// with the most recent sample and the last swing summary, and a websocket
// that pushes every mirrored sample to the browser.
func RunWeb() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured, nothing to serve")
	}

	var (
		mu         sync.RWMutex
		lastSample mirrorSample
		haveSample bool
		lastEvent  swing.Summary
		haveEvent  bool
		received   uint64
	)
	hub := newWatcherHub()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicLive, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mirrorSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: sample unmarshal error: %v", err)
			return
		}
		raw := append([]byte(nil), msg.Payload()...)

		mu.Lock()
		lastSample = s
		haveSample = true
		received++
		mu.Unlock()

		hub.broadcast(raw)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicLive)

	token = client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sum swing.Summary
		if err := json.Unmarshal(msg.Payload(), &sum); err != nil {
			log.Printf("web: event unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastEvent = sum
		haveEvent = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicEvents)

	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveSample {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Received  uint64         `json:"received"`
			Last      mirrorSample   `json:"last"`
			LastEvent *swing.Summary `json:"last_event,omitempty"`
		}{Received: received, Last: lastSample}
		if haveEvent {
			status.LastEvent = &lastEvent
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/ws", hub.serveWS)

	// Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
