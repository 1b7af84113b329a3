// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"sync/atomic"

	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/rotation"
)

// Centering holds the centering reference and the zero override.
//
// Any goroutine may request a center or flip the zero override. Only the
// sampling worker consumes center requests and replaces the reference.
type Centering struct {
	requested atomic.Bool
	zero      atomic.Bool
	ref       atomic.Pointer[rotation.Reference]
}

func newCentering() *Centering {
	c := &Centering{}
	ref := rotation.IdentityReference()
	c.ref.Store(&ref)
	return c
}

// RequestCenter asks the worker to take the next sample as the new
// reference. Repeated requests before the worker gets to it collapse
// into one.
func (c *Centering) RequestCenter() {
	c.requested.Store(true)
}

// Pending reports whether a center request has not been consumed yet.
func (c *Centering) Pending() bool {
	return c.requested.Load()
}

// RequestZero turns the neutral-output override on or off.
func (c *Centering) RequestZero(on bool) {
	c.zero.Store(on)
}

// ToggleZero flips the override and returns the new state.
func (c *Centering) ToggleZero() bool {
	for {
		old := c.zero.Load()
		if c.zero.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Zeroed reports whether the override is active.
func (c *Centering) Zeroed() bool {
	return c.zero.Load()
}

// Reference returns the reference currently in effect.
func (c *Centering) Reference() rotation.Reference {
	return *c.ref.Load()
}

// consume captures raw as the reference if a center was requested.
// Worker only.
func (c *Centering) consume(comp rotation.Compensator, raw pose.Pose) bool {
	if !c.requested.Swap(false) {
		return false
	}
	ref := comp.Capture(raw)
	c.ref.Store(&ref)
	return true
}
