// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
)

// Clock stamps samples in milliseconds. Before a successful sync it counts
// monotonic uptime from process start; after sync it reports wall-clock
// time corrected by the measured NTP offset. Sync failure is
// deployment-visible (logged by the caller) but never fatal and never
// blocks acquisition: NowMS is a couple of atomic loads.
type Clock struct {
	start    time.Time
	synced   atomic.Bool
	offsetMS atomic.Int64

	// query is swappable for tests.
	query func(server string, timeout time.Duration) (offset time.Duration, err error)
}

// New returns an unsynced clock anchored at the current instant.
func New() *Clock {
	return &Clock{
		start: time.Now(),
		query: ntpQuery,
	}
}

func ntpQuery(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid NTP response: %w", err)
	}
	return resp.ClockOffset, nil
}

// Sync performs the one-shot time synchronization with a bounded wait. On
// success subsequent NowMS values are wall-clock milliseconds.
func (c *Clock) Sync(server string, timeout time.Duration) error {
	offset, err := c.query(server, timeout)
	if err != nil {
		return fmt.Errorf("clock sync against %s: %w", server, err)
	}
	c.offsetMS.Store(offset.Milliseconds())
	c.synced.Store(true)
	return nil
}

// Synced reports whether wall-clock time is in effect.
func (c *Clock) Synced() bool {
	return c.synced.Load()
}

// NowMS returns the current timestamp: corrected wall-clock ms when synced,
// uptime ms otherwise.
func (c *Clock) NowMS() int64 {
	if c.synced.Load() {
		return time.Now().UnixMilli() + c.offsetMS.Load()
	}
	return time.Since(c.start).Milliseconds()
}
