// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"math"
	"sync"
	"time"
)

// MockSource generates a smooth synthetic head motion: slow yaw sweeps,
// nodding pitch, a little roll and a small lean. Useful without a tracker.
type MockSource struct {
	mu      sync.Mutex
	now     func() time.Time
	start   time.Time
	running bool
}

// NewMockSource creates a mock pose source driven by the wall clock.
func NewMockSource() *MockSource {
	return &MockSource{now: time.Now}
}

func (m *MockSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = m.now()
	m.running = true
	return nil
}

func (m *MockSource) Next() (Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return Pose{}, ErrSourceUnavailable
	}

	t := m.now().Sub(m.start).Seconds()
	return Pose{
		X:     2 * math.Sin(t*0.3),
		Y:     1 * math.Cos(t*0.5),
		Z:     3 * math.Sin(t*0.2),
		Yaw:   45 * math.Sin(t*0.5),
		Pitch: 15 * math.Cos(t*0.7),
		Roll:  10 * math.Sin(t),
	}, nil
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}
