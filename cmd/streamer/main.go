// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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

	log.Println("starting racquet-stream node (IMU → HTTP events + UDP live)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunStreamer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
