// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rotation converts head orientation between yaw/pitch/roll and
// rotation matrices and removes the translation a rotating head induces at
// a tracked point that sits away from the neck pivot.
//
// Frame: x right, y up, z toward the viewer (right-handed). Yaw turns about
// y, pitch about x, roll about z, and the matrix is composed as
// R = Ry(yaw) · Rx(pitch) · Rz(roll).
package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// gimbalEpsilon is the |cos(pitch)| below which yaw and roll can no longer
// be told apart.
const gimbalEpsilon = 1e-9

// Euler holds yaw, pitch and roll in degrees.
type Euler struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Matrix builds R = Ry(yaw) · Rx(pitch) · Rz(roll).
func Matrix(e Euler) mgl64.Mat3 {
	ry := mgl64.Rotate3DY(mgl64.DegToRad(e.Yaw))
	rx := mgl64.Rotate3DX(mgl64.DegToRad(e.Pitch))
	rz := mgl64.Rotate3DZ(mgl64.DegToRad(e.Roll))
	return ry.Mul3(rx).Mul3(rz)
}

// FromMatrix decomposes a rotation matrix built by Matrix.
//
// At pitch = ±90° only yaw−roll (or yaw+roll) is observable. The rule is
// to report roll as zero and give the whole rotation to yaw, so the same
// matrix always yields the same angles.
func FromMatrix(m mgl64.Mat3) Euler {
	// Row 1 of Ry·Rx·Rz is (cp·sr, cp·cr, −sp).
	cp := math.Hypot(m.At(1, 0), m.At(1, 1))
	pitch := math.Atan2(-m.At(1, 2), cp)

	var yaw, roll float64
	if cp > gimbalEpsilon {
		yaw = math.Atan2(m.At(0, 2), m.At(2, 2))
		roll = math.Atan2(m.At(1, 0), m.At(1, 1))
	} else {
		yaw = math.Atan2(-m.At(2, 0), m.At(0, 0))
		roll = 0
	}

	return Euler{
		Yaw:   mgl64.RadToDeg(yaw),
		Pitch: mgl64.RadToDeg(pitch),
		Roll:  mgl64.RadToDeg(roll),
	}
}

// WrapDegrees maps an angle into (−180, 180].
func WrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	switch {
	case a <= -180:
		a += 360
	case a > 180:
		a -= 360
	}
	return a
}

// Sub returns e − ref per axis with yaw and roll wrapped to (−180, 180].
// Pitch differences stay within ±180 on their own.
func (e Euler) Sub(ref Euler) Euler {
	return Euler{
		Yaw:   WrapDegrees(e.Yaw - ref.Yaw),
		Pitch: e.Pitch - ref.Pitch,
		Roll:  WrapDegrees(e.Roll - ref.Roll),
	}
}

// CameraMatrix is the mounting rotation of a camera turned by yaw and
// pitched by pitch degrees relative to the user.
func CameraMatrix(yaw, pitch float64) mgl64.Mat3 {
	return Matrix(Euler{Yaw: yaw, Pitch: pitch})
}
