// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/pose"
)

// RunConsoleMQTT prints every frame the tracker publishes.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}
	log.Init(cfg.LogLevel)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info("console: connected to MQTT broker", "broker", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Warn("console: frame unmarshal error", "err", err)
			return
		}
		printFrame(os.Stdout, f)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info("console: subscribed", "topic", cfg.TopicPose)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printFrame(w io.Writer, f Frame) {
	state := "on"
	switch {
	case f.Zeroed:
		state = "zero"
	case !f.Enabled:
		state = "off"
	}
	fmt.Fprintf(w, "[%6d %-4s] RAW %s\n", f.Seq, state, formatPose(f.Raw))
	fmt.Fprintf(w, "              MAP %s\n", formatPose(f.Mapped))
}

func formatPose(p pose.Pose) string {
	return fmt.Sprintf("X=%7.2f Y=%7.2f Z=%7.2f  YAW=%7.2f PITCH=%7.2f ROLL=%7.2f",
		p[pose.X], p[pose.Y], p[pose.Z], p[pose.Yaw], p[pose.Pitch], p[pose.Roll])
}
