// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// mockSource generates smooth synthetic motion at the configured sample
// period, with a brief high-acceleration impulse every swingEvery to
// exercise the capture path without hardware.
type mockSource struct {
	period     time.Duration
	swingEvery time.Duration
	swingMag   float64

	start time.Time
	next  time.Time
}

// NewMockSource creates a hardware-free source pacing reports at period.
// Every swingEvery it injects a swingMag m/s² impulse lasting a few
// samples.
func NewMockSource(period, swingEvery time.Duration, swingMag float64) Source {
	now := time.Now()
	return &mockSource{
		period:     period,
		swingEvery: swingEvery,
		swingMag:   swingMag,
		start:      now,
		next:       now,
	}
}

func (m *mockSource) Poll() (Reports, error) {
	now := time.Now()
	if now.Before(m.next) {
		return Reports{}, nil
	}
	m.next = m.next.Add(m.period)
	// If we fell behind (debugger, loaded host), resynchronize instead of
	// bursting a backlog of reports.
	if now.After(m.next.Add(10 * m.period)) {
		m.next = now.Add(m.period)
	}

	elapsed := now.Sub(m.start).Seconds()

	accel := sample.Vec3{
		X: 0.4 * math.Sin(elapsed*2.1),
		Y: 0.3 * math.Cos(elapsed*1.3),
		Z: 9.81,
	}
	if m.swingEvery > 0 {
		intoCycle := now.Sub(m.start) % m.swingEvery
		if intoCycle < 4*m.period {
			accel.X = m.swingMag // impulse along the stroke axis
		}
	}

	return Reports{
		HasRotation: true,
		Rotation: sample.Vec3{
			X: 20 * math.Sin(elapsed),
			Y: 15 * math.Cos(elapsed*0.7),
			Z: math.Mod(elapsed*30, 360),
		},
		HasGyro: true,
		Gyro: sample.Vec3{
			X: 0.5 * math.Cos(elapsed),
			Y: 0.4 * math.Sin(elapsed*0.7),
			Z: 0.52,
		},
		HasAccel: true,
		Accel:    accel,
	}, nil
}

func (m *mockSource) Close() error {
	return nil
}
