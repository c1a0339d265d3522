package app

import (
	"context"
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/racquet_stream/internal/config"
	"github.com/relabs-tech/racquet_stream/internal/sample"
	"github.com/relabs-tech/racquet_stream/internal/swing"
)

// mirrorSample is the JSON shape published to the MQTT live topic. Unlike
// the backend payloads it carries the Euler channel, which is what the
// courtside dashboard actually renders.
type mirrorSample struct {
	T     int64       `json:"t"`
	Seq   uint32      `json:"seq"`
	Euler sample.Vec3 `json:"euler"`
	Gyro  sample.Vec3 `json:"gyro"`
	Accel sample.Vec3 `json:"accel"`
}

// liveMirror republishes decimated live samples to an MQTT broker for the
// console and web viewers. Strictly best-effort: its queue drops on
// overflow and publishes go out QoS 0, so a slow broker never backs up
// into the acquisition path.
type liveMirror struct {
	client      mqtt.Client
	topic       string
	topicEvents string
	queue       chan sample.Sample
	events      chan swing.Summary
}

func newLiveMirror(cfg *config.Config) (*liveMirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Printf("mirror: connected to MQTT broker %s", cfg.MQTTBroker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mirror: MQTT connection lost, auto-reconnecting: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return &liveMirror{
		client:      client,
		topic:       cfg.TopicLive,
		topicEvents: cfg.TopicEvents,
		queue:       make(chan sample.Sample, 64),
		events:      make(chan swing.Summary, 8),
	}, nil
}

// offer hands a sample to the mirror without blocking the caller.
func (m *liveMirror) offer(s sample.Sample) {
	select {
	case m.queue <- s:
	default:
	}
}

// offerEvent hands a capture summary to the mirror without blocking the
// caller.
func (m *liveMirror) offerEvent(sum swing.Summary) {
	select {
	case m.events <- sum:
	default:
	}
}

func (m *liveMirror) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-m.queue:
			payload, err := json.Marshal(mirrorSample{
				T:     s.TimestampMS,
				Seq:   s.Seq,
				Euler: s.Euler,
				Gyro:  s.Gyro,
				Accel: s.Accel,
			})
			if err != nil {
				log.Printf("mirror: marshal error: %v", err)
				continue
			}
			m.client.Publish(m.topic, 0, false, payload)
		case sum := <-m.events:
			payload, err := json.Marshal(sum)
			if err != nil {
				log.Printf("mirror: marshal error: %v", err)
				continue
			}
			// Retained, so a dashboard that connects after the swing still
			// sees the most recent event summary.
			m.client.Publish(m.topicEvents, 0, true, payload)
		}
	}
}

func (m *liveMirror) close() {
	m.client.Disconnect(250)
}
