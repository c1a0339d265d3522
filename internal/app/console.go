package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/racquet_stream/internal/config"
)

// RunConsole subscribes to the MQTT live mirror and prints samples to the
// terminal. Debug tooling for bench work; the real consumers are the
// backend payload channels.
func RunConsole() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured, nothing to watch")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicLive, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mirrorSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: sample unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[LIVE] t=%-13d seq=%-8d euler=(%6.1f %6.1f %6.1f) gyro=(%6.2f %6.2f %6.2f) accel=(%6.2f %6.2f %6.2f)\n",
			s.T, s.Seq,
			s.Euler.X, s.Euler.Y, s.Euler.Z,
			s.Gyro.X, s.Gyro.Y, s.Gyro.Z,
			s.Accel.X, s.Accel.Y, s.Accel.Z,
		)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicLive)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("console: exiting")
	return nil
}
