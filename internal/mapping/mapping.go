// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mapping applies user response curves to each pose axis.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/relabs-tech/headtrack/internal/pose"
)

var (
	ErrAxis   = errors.New("invalid axis")
	ErrDomain = errors.New("degenerate axis domain")
)

// Point is one control point of a response curve. X is the magnitude of
// the input, Y the magnitude of the output.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Curve is a piecewise linear response over non-negative inputs, starting
// at the origin. An empty curve is the identity.
type Curve []Point

// At evaluates the curve at x >= 0. Points must be sorted by X (see
// Normalize). Past the last point the last output is held.
func (c Curve) At(x float64) float64 {
	if len(c) == 0 {
		return x
	}
	prev := Point{}
	for _, p := range c {
		if x <= p.X {
			if p.X == prev.X {
				return p.Y
			}
			f := (x - prev.X) / (p.X - prev.X)
			return prev.Y + f*(p.Y-prev.Y)
		}
		prev = p
	}
	return prev.Y
}

// Normalize returns a sorted copy with non-finite and negative-X points
// dropped.
func (c Curve) Normalize() Curve {
	if c == nil {
		return nil
	}
	out := make(Curve, 0, len(c))
	for _, p := range c {
		if !finite(p.X) || !finite(p.Y) || p.X < 0 {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// AxisConfig is the mapping of one axis.
type AxisConfig struct {
	Curve Curve `json:"curve" yaml:"curve"`
	// AltCurve, when set, is used for negative inputs instead of Curve.
	AltCurve  Curve   `json:"alt_curve,omitempty" yaml:"alt_curve,omitempty"`
	Invert    bool    `json:"invert" yaml:"invert"`
	MaxInput  float64 `json:"max_input" yaml:"max_input"`
	MaxOutput float64 `json:"max_output" yaml:"max_output"`
}

// Clone returns a deep, normalized copy.
func (a AxisConfig) Clone() AxisConfig {
	a.Curve = a.Curve.Normalize()
	a.AltCurve = a.AltCurve.Normalize()
	return a
}

// Validate reports a zero-width or non-finite domain. Map tolerates such
// configs; this is for surfacing them to whoever edited them.
func (a AxisConfig) Validate() error {
	if !finite(a.MaxInput) || a.MaxInput <= 0 {
		return fmt.Errorf("max input %v: %w", a.MaxInput, ErrDomain)
	}
	if !finite(a.MaxOutput) || a.MaxOutput <= 0 {
		return fmt.Errorf("max output %v: %w", a.MaxOutput, ErrDomain)
	}
	return nil
}

// Map clamps v to the input domain, evaluates the response curve on its
// magnitude, restores the sign, clamps to the output domain and negates
// when the axis is inverted. A degenerate domain maps everything to 0.
func Map(v float64, cfg AxisConfig) float64 {
	if cfg.Validate() != nil || math.IsNaN(v) {
		return 0
	}

	x := clamp(v, -cfg.MaxInput, cfg.MaxInput)

	var y float64
	if x < 0 {
		curve := cfg.Curve
		if len(cfg.AltCurve) > 0 {
			curve = cfg.AltCurve
		}
		y = -curve.At(-x)
	} else {
		y = cfg.Curve.At(x)
	}

	y = clamp(y, -cfg.MaxOutput, cfg.MaxOutput)
	if cfg.Invert {
		y = -y
	}
	return y
}

// Set holds the mapping of all six axes, indexed by pose.Axis.
type Set [pose.NumAxes]AxisConfig

// DefaultSet maps every axis linearly: translations over ±100 cm and
// rotations over ±180°.
func DefaultSet() Set {
	var s Set
	for i := range s {
		limit := 180.0
		if pose.Axis(i) <= pose.Z {
			limit = 100
		}
		s[i] = AxisConfig{MaxInput: limit, MaxOutput: limit}
	}
	return s
}

// Apply maps each axis of p independently.
func (s *Set) Apply(p pose.Pose) pose.Pose {
	var out pose.Pose
	for i := range p {
		out[i] = Map(p[i], s[i])
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
