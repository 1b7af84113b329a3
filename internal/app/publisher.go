// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/tracker"
)

// Frame is the payload published for every new pipeline output.
type Frame struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	Time    string    `json:"time"`
	Raw     pose.Pose `json:"raw"`
	Mapped  pose.Pose `json:"mapped"`
	Enabled bool      `json:"enabled"`
	Zeroed  bool      `json:"zeroed"`
}

func newFrame(session string, snap tracker.Snapshot) Frame {
	return Frame{
		Session: session,
		Seq:     snap.Seq,
		Time:    snap.At.Format(time.RFC3339Nano),
		Raw:     snap.Raw,
		Mapped:  snap.Mapped,
		Enabled: snap.Enabled,
		Zeroed:  snap.Zeroed,
	}
}

// publishPoses reads the pipeline every interval and publishes frames that
// have not been sent yet. It returns when ctx is done.
func publishPoses(ctx context.Context, client mqtt.Client, topic, session string, p Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := p.Snapshot()
		if snap.Seq == 0 || snap.Seq == lastSeq {
			continue
		}
		lastSeq = snap.Seq

		payload, err := json.Marshal(newFrame(session, snap))
		if err != nil {
			log.Error("json marshal error (frame)", "err", err)
			continue
		}
		// Retained so late subscribers get the current pose at once. Not
		// waiting on the token keeps a slow broker from stalling the ticker.
		client.Publish(topic, 0, true, payload)
	}
}

// subscribeControl feeds commands from the control topic into p.
func subscribeControl(client mqtt.Client, topic string, p Pipeline) error {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Warn("control payload unmarshal error", "err", err)
			return
		}
		if err := cmd.Apply(p); err != nil {
			log.Warn("control command rejected", "err", err)
			return
		}
		log.Info("control command", "action", cmd.Action)
	})
	token.Wait()
	return token.Error()
}
