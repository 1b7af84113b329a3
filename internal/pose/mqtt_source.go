// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtrack/internal/log"
)

// MQTTSource takes raw poses published as JSON on an MQTT topic by an
// external tracker process.
type MQTTSource struct {
	broker   string
	clientID string
	topic    string

	client mqtt.Client

	mu      sync.Mutex
	latest  Pose
	fresh   bool
	lastErr error // set while disconnected or unsubscribed
}

func NewMQTTSource(broker, clientID, topic string) *MQTTSource {
	return &MQTTSource{broker: broker, clientID: clientID, topic: topic}
}

func (s *MQTTSource) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt source connection lost", "err", err)
			s.setLinkErr(err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Subscriptions do not survive a reconnect with a clean session.
			if token := c.Subscribe(s.topic, 0, s.onMessage); token.Wait() && token.Error() != nil {
				log.Error("mqtt source subscribe failed", "topic", s.topic, "err", token.Error())
				s.setLinkErr(fmt.Errorf("subscribe %s: %w", s.topic, token.Error()))
				return
			}
			s.setLinkErr(nil)
			log.Info("mqtt source subscribed", "broker", s.broker, "topic", s.topic)
		})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt source connect %s: %w", s.broker, token.Error())
	}
	return nil
}

// setLinkErr records why the source cannot receive, or nil once it is
// subscribed again.
func (s *MQTTSource) setLinkErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.accept(msg.Payload()); err != nil {
		log.Debug("mqtt source bad payload", "topic", msg.Topic(), "err", err)
	}
}

func (s *MQTTSource) accept(payload []byte) error {
	var p Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("pose unmarshal: %w", err)
	}
	s.mu.Lock()
	s.latest = p
	s.fresh = true
	s.mu.Unlock()
	return nil
}

func (s *MQTTSource) Next() (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh {
		s.fresh = false
		return s.latest, nil
	}
	if s.lastErr != nil {
		return Pose{}, fmt.Errorf("%v: %w", s.lastErr, ErrSourceUnavailable)
	}
	return Pose{}, ErrNoSample
}

func (s *MQTTSource) Stop() error {
	if s.client == nil {
		return nil
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).Wait()
	}
	s.client.Disconnect(250)
	return nil
}
