// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/pose"
)

// RunMockProducer feeds synthetic raw poses to a tracker running with
// SOURCE=mqtt or SOURCE=udp, so the whole chain can be tried without a
// real tracking backend. target is "mqtt" or "udp".
func RunMockProducer(target, udpAddr string, interval time.Duration) error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}
	log.Init(cfg.LogLevel)

	src := pose.NewMockSource()
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Stop()

	var send func(pose.Pose) error
	switch target {
	case config.SourceMQTT:
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDSource + "-producer")
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("MQTT connect error: %w", token.Error())
		}
		defer client.Disconnect(250)

		send = func(p pose.Pose) error {
			payload, err := json.Marshal(p)
			if err != nil {
				return err
			}
			token := client.Publish(cfg.TopicPoseRaw, 0, false, payload)
			token.Wait()
			return token.Error()
		}
		log.Info("mock producer publishing", "broker", cfg.MQTTBroker, "topic", cfg.TopicPoseRaw)

	case config.SourceUDP:
		conn, err := net.Dial("udp", udpAddr)
		if err != nil {
			return fmt.Errorf("udp dial %s: %w", udpAddr, err)
		}
		defer conn.Close()

		send = func(p pose.Pose) error {
			_, err := conn.Write(pose.EncodeDatagram(p))
			return err
		}
		log.Info("mock producer sending datagrams", "addr", udpAddr)

	default:
		return fmt.Errorf("unknown producer target %q", target)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("mock producer stopped")
			return nil
		case <-ticker.C:
		}

		p, err := src.Next()
		if err != nil {
			log.Warn("error from mock source", "err", err)
			continue
		}
		if err := send(p); err != nil {
			log.Warn("send error", "err", err)
			continue
		}
		log.Debug("sent pose", "pose", formatPose(p))
	}
}
