// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Axis indexes one of the six degrees of freedom of a Pose.
type Axis int

const (
	X Axis = iota
	Y
	Z
	Yaw
	Pitch
	Roll

	NumAxes = 6
)

var axisNames = [NumAxes]string{"x", "y", "z", "yaw", "pitch", "roll"}

func (a Axis) String() string {
	if !a.Valid() {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// Valid reports whether a names one of the six axes.
func (a Axis) Valid() bool {
	return a >= 0 && a < NumAxes
}

// ParseAxis accepts an axis name ("yaw") or index ("3").
func ParseAxis(s string) (Axis, error) {
	for i, n := range axisNames {
		if n == s {
			return Axis(i), nil
		}
	}
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err == nil && Axis(i).Valid() {
		return Axis(i), nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Pose is a 6DOF head pose: translation x,y,z in centimeters and
// orientation yaw,pitch,roll in degrees. It is a plain value; copies are
// independent.
type Pose [NumAxes]float64

// Neutral is the all-zero pose.
var Neutral Pose

// New builds a pose from its six components.
func New(x, y, z, yaw, pitch, roll float64) Pose {
	return Pose{x, y, z, yaw, pitch, roll}
}

func (p Pose) Translation() (x, y, z float64) { return p[X], p[Y], p[Z] }
func (p Pose) Rotation() (yaw, pitch, roll float64) {
	return p[Yaw], p[Pitch], p[Roll]
}

// IsNeutral reports whether every axis is exactly zero.
func (p Pose) IsNeutral() bool { return p == Neutral }

// poseJSON is the wire shape used for MQTT and HTTP payloads.
type poseJSON struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(poseJSON{p[X], p[Y], p[Z], p[Yaw], p[Pitch], p[Roll]})
}

func (p *Pose) UnmarshalJSON(b []byte) error {
	var v poseJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Pose{v.X, v.Y, v.Z, v.Yaw, v.Pitch, v.Roll}
	return nil
}

var (
	// ErrNoSample means the source has nothing new yet. The caller keeps
	// its previous sample.
	ErrNoSample = errors.New("no pose sample available")

	// ErrSourceUnavailable means the backend cannot deliver samples.
	ErrSourceUnavailable = errors.New("pose source unavailable")
)

// Source is anything that can provide raw poses over time: a synthetic
// generator, a network receiver, a tracker plugin.
//
// Next must not block for long; when nothing is ready it returns
// ErrNoSample. Start and Stop bracket the source's own resources, which
// stay owned by the source.
type Source interface {
	Start() error
	Next() (Pose, error)
	Stop() error
}
