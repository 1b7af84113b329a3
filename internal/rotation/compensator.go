// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rotation

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/headtrack/internal/pose"
)

// Reference is the orientation and position captured when the user
// centers. Output is expressed relative to it.
type Reference struct {
	Rotation    mgl64.Mat3 `json:"-"`
	Angles      Euler      `json:"angles"`
	Translation mgl64.Vec3 `json:"translation"`
}

// IdentityReference is the reference in effect before the first center:
// no rotation and no offset.
func IdentityReference() Reference {
	return Reference{Rotation: mgl64.Ident3()}
}

// Compensator turns raw poses into pivot-corrected poses relative to a
// Reference. Its fields are set once and not changed while in use.
type Compensator struct {
	// PivotOffset is the vector from the neck pivot to the tracked point,
	// in the head frame at neutral orientation, in centimeters.
	PivotOffset mgl64.Vec3

	// CompensateRoll lets roll take part in the pivot correction. When
	// false only yaw and pitch rotate the offset, for mounts where roll
	// should not move the reported position.
	CompensateRoll bool

	camera    mgl64.Mat3
	hasCamera bool
}

// NewCompensator builds a compensator for the given pivot offset.
func NewCompensator(pivot mgl64.Vec3, compensateRoll bool) Compensator {
	return Compensator{PivotOffset: pivot, CompensateRoll: compensateRoll}
}

// WithCamera returns a copy that first rotates raw samples by the camera
// mounting rotation. Zero yaw and pitch leave samples untouched.
func (c Compensator) WithCamera(yaw, pitch float64) Compensator {
	if yaw == 0 && pitch == 0 {
		c.hasCamera = false
		return c
	}
	c.camera = CameraMatrix(yaw, pitch)
	c.hasCamera = true
	return c
}

// orient returns the raw translation, rotation matrix and angles of p,
// with the camera mounting rotation applied.
func (c Compensator) orient(p pose.Pose) (mgl64.Vec3, mgl64.Mat3, Euler) {
	t := mgl64.Vec3{p[pose.X], p[pose.Y], p[pose.Z]}
	e := Euler{Yaw: p[pose.Yaw], Pitch: p[pose.Pitch], Roll: p[pose.Roll]}
	r := Matrix(e)
	if c.hasCamera {
		r = c.camera.Mul3(r)
		t = c.camera.Mul3x1(t)
		e = FromMatrix(r)
	}
	return t, r, e
}

// pivotMotion returns R·c for the rotation that feeds the correction.
func (c Compensator) pivotMotion(r mgl64.Mat3, e Euler) mgl64.Vec3 {
	if !c.CompensateRoll {
		r = Matrix(Euler{Yaw: e.Yaw, Pitch: e.Pitch})
	}
	return r.Mul3x1(c.PivotOffset)
}

// CorrectTranslation returns t − (R·c − c): the position with the
// displacement caused purely by rotating the pivot offset removed.
func (c Compensator) CorrectTranslation(t mgl64.Vec3, e Euler) mgl64.Vec3 {
	return t.Sub(c.pivotMotion(Matrix(e), e).Sub(c.PivotOffset))
}

// Capture snapshots p as the new centering reference.
func (c Compensator) Capture(p pose.Pose) Reference {
	t, r, e := c.orient(p)
	return Reference{Rotation: r, Angles: e, Translation: t}
}

// Apply returns p relative to ref with the pivot correction applied.
//
// Orientation is raw minus reference per axis. Translation is
// (t − t_ref) − (R·c − R_ref·c), so with the identity reference it reduces
// to t − (R·c − c).
func (c Compensator) Apply(p pose.Pose, ref Reference) pose.Pose {
	t, r, e := c.orient(p)

	motion := c.pivotMotion(r, e).Sub(c.pivotMotion(ref.Rotation, ref.Angles))
	pos := t.Sub(ref.Translation).Sub(motion)
	rel := e.Sub(ref.Angles)

	return pose.New(pos[0], pos[1], pos[2], rel.Yaw, rel.Pitch, rel.Roll)
}
