// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package swing

import (
	"log"
	"math"

	"github.com/relabs-tech/racquet_stream/internal/ring"
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// State of the capture state machine.
type State int

const (
	Normal State = iota
	Capturing
)

// Config holds the detection tunables. Timestamps are milliseconds on the
// same clock that stamps samples.
type Config struct {
	AccelThreshold float64 // m/s², trigger when |accel| exceeds this
	DebounceMS     int64   // minimum gap between accepted triggers
	PreSamples     int     // history kept before the trigger
	PostSamples    int     // samples collected after the trigger
}

type eventContext struct {
	triggerMS  int64
	triggerMag float64
	postNeeded int
	postCount  int
}

// Summary describes a finalized capture for observers outside the delivery
// path: the dashboard mirror and the debug web surface. The sample window
// itself travels only through the SnapshotStore.
type Summary struct {
	TriggerMS  int64   `json:"trigger_t"`
	TriggerMag float64 `json:"trigger_mag"`
	Samples    int     `json:"samples"`
}

// Detector runs the swing trigger state machine over the sample stream. It
// is owned by the acquisition goroutine and must not be shared; the only
// cross-goroutine hand-off is the SnapshotStore publish at finalize.
//
// A new trigger is suppressed while a previous snapshot is still awaiting
// delivery. The alternative (overwriting the unsent capture) would keep up
// with swings faster than the delivery latency but can destroy an event the
// sender is about to retry; suppression never corrupts in-flight data.
type Detector struct {
	cfg     Config
	history *ring.Buffer
	store   *SnapshotStore

	state         State
	lastTriggerMS int64
	ctx           eventContext
	scratch       []sample.Sample // preallocated finalize window, no hot-loop allocation
	onCapture     func(Summary)
}

// NewDetector wires the state machine to its history buffer and snapshot
// store.
func NewDetector(cfg Config, history *ring.Buffer, store *SnapshotStore) *Detector {
	return &Detector{
		cfg:     cfg,
		history: history,
		store:   store,
		state:   Normal,
		// Far past, so the very first spike is never debounced away even
		// on an uptime clock that starts near zero.
		lastTriggerMS: math.MinInt64 / 2,
		scratch:       make([]sample.Sample, cfg.PreSamples+cfg.PostSamples),
	}
}

// OnCapture installs a callback invoked from the acquisition goroutine after
// every successful publish. It must not block.
func (d *Detector) OnCapture(fn func(Summary)) {
	d.onCapture = fn
}

// State returns the current machine state.
func (d *Detector) State() State {
	return d.state
}

// Observe feeds one sample through the state machine. The sample must
// already have been written to the history buffer.
func (d *Detector) Observe(s *sample.Sample) {
	switch d.state {
	case Normal:
		mag := s.AccelMagnitude()
		if mag <= d.cfg.AccelThreshold {
			return
		}
		if s.TimestampMS-d.lastTriggerMS <= d.cfg.DebounceMS {
			return
		}
		if d.store.Pending() {
			return
		}
		d.state = Capturing
		d.ctx = eventContext{
			triggerMS:  s.TimestampMS,
			triggerMag: mag,
			postNeeded: d.cfg.PostSamples,
		}
		d.lastTriggerMS = s.TimestampMS
		log.Printf("swing: triggered, |accel|=%.1f m/s2 at t=%d", mag, s.TimestampMS)

	case Capturing:
		d.ctx.postCount++
		if d.ctx.postCount >= d.ctx.postNeeded {
			d.finalize()
		}
	}
}

// finalize copies the pre+post window out of history and publishes it. The
// pre-trigger samples are naturally included: they were already in history
// when the trigger fired.
func (d *Detector) finalize() {
	n := d.history.CopyRecent(d.scratch)
	if d.store.Publish(d.scratch[:n], d.ctx.triggerMS) {
		log.Printf("swing: captured %d samples, trigger |accel|=%.1f m/s2",
			n, d.ctx.triggerMag)
		if d.onCapture != nil {
			d.onCapture(Summary{
				TriggerMS:  d.ctx.triggerMS,
				TriggerMag: d.ctx.triggerMag,
				Samples:    n,
			})
		}
	} else {
		// Unreachable while the trigger gate checks Pending, kept as a
		// guard against future policy changes.
		log.Printf("swing: capture dropped, previous snapshot undelivered")
	}
	d.state = Normal
}
