// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/headtrack/internal/pose"
)

// presetFile is the YAML layout of a curve preset file:
//
//	axes:
//	  yaw:
//	    max_input: 90
//	    max_output: 180
//	    curve:
//	      - {x: 10, y: 10}
//	      - {x: 90, y: 180}
//	  z:
//	    invert: true
//	    max_input: 50
//	    max_output: 50
//
// Axes that are not listed keep their defaults.
type presetFile struct {
	Axes map[string]AxisConfig `yaml:"axes"`
}

// Parse reads a preset document on top of DefaultSet.
func Parse(b []byte) (Set, error) {
	var f presetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Set{}, fmt.Errorf("mapping preset: %w", err)
	}

	s := DefaultSet()
	for name, cfg := range f.Axes {
		axis, err := pose.ParseAxis(name)
		if err != nil {
			return Set{}, fmt.Errorf("mapping preset: %w", err)
		}
		s[axis] = cfg.Clone()
	}
	return s, nil
}

// LoadFile reads a preset file. Presets are read-only here; saving edited
// curves is up to whoever owns the settings.
func LoadFile(path string) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to open mapping file: %w", err)
	}
	return Parse(b)
}
