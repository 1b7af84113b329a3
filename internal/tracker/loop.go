// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker runs the head tracking pipeline: it samples a pose
// source on a dedicated goroutine, centers and pivot-corrects each sample,
// maps every axis through its response curve and publishes the
// (raw, mapped) pair for readers on other goroutines.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/mapping"
	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/rotation"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("tracker already started")

// Options configures a Loop.
type Options struct {
	// SampleInterval is the pause between iterations.
	SampleInterval time.Duration
	Compensator    rotation.Compensator
	Mappings       mapping.Set
	// Enabled is the initial enabled state.
	Enabled bool
	// CenterAtStart centers on the first sample the source delivers.
	CenterAtStart bool
	// Recorder, when set, receives every iteration's stages on the worker
	// goroutine. It must not block.
	Recorder func(Record)
}

// DefaultOptions samples at 250 Hz with linear mappings and no pivot
// offset.
func DefaultOptions() Options {
	return Options{
		SampleInterval: 4 * time.Millisecond,
		Compensator:    rotation.NewCompensator(mgl64.Vec3{}, true),
		Mappings:       mapping.DefaultSet(),
		Enabled:        true,
		CenterAtStart:  true,
	}
}

// Status describes the worker and its source for display.
type Status struct {
	Running         bool               `json:"running"`
	Enabled         bool               `json:"enabled"`
	Zeroed          bool               `json:"zeroed"`
	CenterPending   bool               `json:"center_pending"`
	Iterations      uint64             `json:"iterations"`
	SourceAvailable bool               `json:"source_available"`
	SourceError     string             `json:"source_error,omitempty"`
	Misses          uint64             `json:"misses"`
	Reference       rotation.Reference `json:"reference"`
}

// Loop owns the sampling worker.
type Loop struct {
	src      pose.Source
	interval time.Duration
	comp     rotation.Compensator
	table    *mapping.Table
	center   *Centering
	store    Store
	log      *slog.Logger
	recorder func(Record)

	enabled  atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	statusMu       sync.Mutex
	status         Status
	errUnavailable bool // kind of the current outage's error

	// Worker-only state.
	last       pose.Pose
	haveSample bool
}

// New builds a loop over src. Nothing runs until Start.
func New(src pose.Source, opts Options) *Loop {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultOptions().SampleInterval
	}
	l := &Loop{
		src:      src,
		interval: opts.SampleInterval,
		comp:     opts.Compensator,
		table:    mapping.NewTable(opts.Mappings),
		center:   newCentering(),
		log:      log.With("component", "tracker"),
		recorder: opts.Recorder,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	l.enabled.Store(opts.Enabled)
	if opts.CenterAtStart {
		l.center.RequestCenter()
	}
	return l
}

// Start starts the source and spawns the worker.
func (l *Loop) Start() error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := l.src.Start(); err != nil {
		// Sampling goes on; the source may come up later and the status
		// shows it as unavailable until then.
		l.log.Warn("pose source failed to start", "err", err)
		l.noteSourceError(fmt.Errorf("start: %w", err))
	}

	l.setRunning(true)
	l.log.Info("tracker started", "interval", l.interval,
		"pivot", l.comp.PivotOffset, "compensate_roll", l.comp.CompensateRoll)
	go l.run()
	return nil
}

func (l *Loop) run() {
	defer close(l.done)
	defer l.setRunning(false)
	defer func() {
		if err := l.src.Stop(); err != nil {
			l.log.Warn("pose source stop", "err", err)
		}
		l.log.Info("tracker stopped")
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.step()

		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// step runs one pipeline pass.
func (l *Loop) step() {
	raw, err := l.src.Next()
	switch {
	case err == nil:
		l.last = raw
		l.haveSample = true
		l.noteSample()
	case errors.Is(err, pose.ErrNoSample):
		raw = l.last
		l.noteMiss()
	default:
		raw = l.last
		l.noteSourceError(err)
	}

	// A center request waits for a real sample rather than centering on
	// the neutral placeholder.
	if l.haveSample && l.center.consume(l.comp, raw) {
		ref := l.center.Reference()
		l.log.Info("centered", "yaw", ref.Angles.Yaw, "pitch", ref.Angles.Pitch, "roll", ref.Angles.Roll)
	}

	compensated := l.comp.Apply(raw, l.center.Reference())

	// Flags are read once so the published pair and flags agree.
	zeroed, enabled := l.center.Zeroed(), l.enabled.Load()
	mapped := pose.Neutral
	if !zeroed && enabled {
		mapped = l.table.Snapshot().Apply(compensated)
	}

	seq := l.store.Publish(raw, mapped, enabled, zeroed)
	if l.recorder != nil {
		l.recorder(Record{Seq: seq, Raw: raw, Compensated: compensated, Mapped: mapped})
	}

	l.statusMu.Lock()
	l.status.Iterations++
	l.statusMu.Unlock()
}

// RequestStop asks the worker to exit after the current iteration. It does
// not wait; use Wait or Done for that.
func (l *Loop) RequestStop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once the worker has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the worker exits. It returns at once if the loop was
// never started.
func (l *Loop) Wait() {
	if !l.started.Load() {
		return
	}
	<-l.done
}

func (l *Loop) SetEnabled(on bool) {
	l.enabled.Store(on)
}

// ToggleEnabled flips the enabled state and returns the new value.
func (l *Loop) ToggleEnabled() bool {
	for {
		old := l.enabled.Load()
		if l.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (l *Loop) Enabled() bool { return l.enabled.Load() }

// RequestCenter makes the next sample the new zero orientation.
func (l *Loop) RequestCenter() { l.center.RequestCenter() }

// RequestZero forces neutral mapped output while on.
func (l *Loop) RequestZero(on bool) { l.center.RequestZero(on) }

func (l *Loop) ToggleZero() bool { return l.center.ToggleZero() }

func (l *Loop) Reference() rotation.Reference { return l.center.Reference() }

// CurrentPoses returns the latest published raw and mapped poses.
func (l *Loop) CurrentPoses() (raw, mapped pose.Pose) {
	return l.store.Read()
}

// Snapshot returns the latest publication with its sequence number.
func (l *Loop) Snapshot() Snapshot {
	return l.store.Snapshot()
}

// SetMapping replaces the response curve of one axis. The worker picks it
// up on its next iteration. A zero-width domain is accepted and maps the
// axis to 0.
func (l *Loop) SetMapping(axis pose.Axis, cfg mapping.AxisConfig) error {
	if err := l.table.Update(axis, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		l.log.Warn("axis mapping is degenerate, output held at 0", "axis", axis, "err", err)
	}
	return nil
}

// SetMappings replaces all six axes at once.
func (l *Loop) SetMappings(s mapping.Set) {
	l.table.Replace(s)
}

// Mapping returns a copy of one axis' mapping.
func (l *Loop) Mapping(axis pose.Axis) (mapping.AxisConfig, error) {
	return l.table.Axis(axis)
}

// Status reports worker and source state.
func (l *Loop) Status() Status {
	l.statusMu.Lock()
	st := l.status
	l.statusMu.Unlock()

	st.Enabled = l.enabled.Load()
	st.Zeroed = l.center.Zeroed()
	st.CenterPending = l.center.Pending()
	st.Reference = l.center.Reference()
	return st
}

func (l *Loop) setRunning(on bool) {
	l.statusMu.Lock()
	l.status.Running = on
	l.statusMu.Unlock()
}

func (l *Loop) noteSample() {
	l.statusMu.Lock()
	recovered := !l.status.SourceAvailable
	l.status.SourceAvailable = true
	l.status.SourceError = ""
	l.status.Misses = 0
	l.statusMu.Unlock()
	if recovered {
		l.log.Info("pose source available")
	}
}

func (l *Loop) noteMiss() {
	l.statusMu.Lock()
	l.status.Misses++
	l.statusMu.Unlock()
}

// noteSourceError records a failed fetch. It logs once per outage, and
// again only if the kind of failure changes; error text alone may vary
// from call to call.
func (l *Loop) noteSourceError(err error) {
	unavailable := errors.Is(err, pose.ErrSourceUnavailable)

	l.statusMu.Lock()
	first := l.status.SourceAvailable || l.status.SourceError == ""
	kindChanged := !first && unavailable != l.errUnavailable
	l.errUnavailable = unavailable
	l.status.SourceAvailable = false
	l.status.SourceError = err.Error()
	l.status.Misses++
	l.statusMu.Unlock()
	if first || kindChanged {
		l.log.Warn("pose source unavailable, holding last pose", "err", err)
	}
}
