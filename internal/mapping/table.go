// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mapping

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relabs-tech/headtrack/internal/pose"
)

// Table publishes the active Set copy-on-update: readers load an immutable
// snapshot with one atomic load, writers build a new Set and swap it in.
type Table struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Set]
}

func NewTable(s Set) *Table {
	t := &Table{}
	t.Replace(s)
	return t
}

// Snapshot returns the current set. Callers must not modify it.
func (t *Table) Snapshot() *Set {
	return t.cur.Load()
}

// Axis returns a copy of one axis' config.
func (t *Table) Axis(axis pose.Axis) (AxisConfig, error) {
	if !axis.Valid() {
		return AxisConfig{}, fmt.Errorf("axis %d: %w", int(axis), ErrAxis)
	}
	return t.cur.Load()[axis].Clone(), nil
}

// Update replaces the config of a single axis.
func (t *Table) Update(axis pose.Axis, cfg AxisConfig) error {
	if !axis.Valid() {
		return fmt.Errorf("axis %d: %w", int(axis), ErrAxis)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	next := *t.cur.Load()
	next[axis] = cfg.Clone()
	t.cur.Store(&next)
	return nil
}

// Replace swaps in a whole new set.
func (t *Table) Replace(s Set) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var next Set
	for i := range s {
		next[i] = s[i].Clone()
	}
	t.cur.Store(&next)
}
