package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/racquet_stream/internal/app"
	"github.com/relabs-tech/racquet_stream/internal/config"
)

func main() {
	configPath := flag.String("config", "./racquet_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting racquet-stream web viewer (MQTT live feed → browser)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
