// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"sync"
	"time"

	"github.com/relabs-tech/headtrack/internal/pose"
)

// Snapshot is one published (raw, mapped) pair with the gating flags that
// produced the mapped half.
type Snapshot struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Raw     pose.Pose `json:"raw"`
	Mapped  pose.Pose `json:"mapped"`
	Enabled bool      `json:"enabled"`
	Zeroed  bool      `json:"zeroed"`
}

// Store keeps the latest published pair. The lock is only held to copy
// two fixed-size values, so readers never wait on pipeline work.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Publish replaces the pair and the flags it was gated with, and returns
// its sequence number. Called by the sampling worker once per iteration.
func (s *Store) Publish(raw, mapped pose.Pose, enabled, zeroed bool) uint64 {
	now := time.Now()
	s.mu.Lock()
	s.snap.Seq++
	s.snap.At = now
	s.snap.Raw = raw
	s.snap.Mapped = mapped
	s.snap.Enabled = enabled
	s.snap.Zeroed = zeroed
	seq := s.snap.Seq
	s.mu.Unlock()
	return seq
}

// Read returns both halves of the same publication.
func (s *Store) Read() (raw, mapped pose.Pose) {
	s.mu.RLock()
	raw, mapped = s.snap.Raw, s.snap.Mapped
	s.mu.RUnlock()
	return raw, mapped
}

// Snapshot returns the latest publication with its metadata. Seq is 0
// until the first publish.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
