// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command producer sends synthetic raw poses to a tracker configured with
// SOURCE=mqtt or SOURCE=udp.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/headtrack/internal/app"
	"github.com/relabs-tech/headtrack/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults when empty)")
	target := flag.String("target", "udp", "Where to send poses: udp or mqtt")
	addr := flag.String("addr", "127.0.0.1:4242", "UDP destination for -target=udp")
	interval := flag.Duration("interval", 10*time.Millisecond, "Time between poses")
	flag.Parse()

	if *configPath != "" {
		if err := config.InitGlobal(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := app.RunMockProducer(*target, *addr, *interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
