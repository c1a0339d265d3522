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

	log.Println("starting racquet-stream console (MQTT live feed → terminal)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
