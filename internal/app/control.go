// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/headtrack/internal/mapping"
	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/tracker"
)

// Pipeline is the part of tracker.Loop the outer surfaces drive.
type Pipeline interface {
	RequestCenter()
	RequestZero(on bool)
	ToggleZero() bool
	SetEnabled(on bool)
	ToggleEnabled() bool
	Snapshot() tracker.Snapshot
	Status() tracker.Status
	SetMapping(axis pose.Axis, cfg mapping.AxisConfig) error
	Mapping(axis pose.Axis) (mapping.AxisConfig, error)
}

// Command is a control message from the MQTT control topic or the web API.
type Command struct {
	Action string `json:"action"` // center, zero, unzero, toggle_zero, enable, disable, toggle
}

// Apply runs cmd against p.
func (c Command) Apply(p Pipeline) error {
	switch c.Action {
	case "center":
		p.RequestCenter()
	case "zero":
		p.RequestZero(true)
	case "unzero":
		p.RequestZero(false)
	case "toggle_zero":
		p.ToggleZero()
	case "enable":
		p.SetEnabled(true)
	case "disable":
		p.SetEnabled(false)
	case "toggle":
		p.ToggleEnabled()
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	return nil
}
