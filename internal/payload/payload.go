// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package payload

import (
	"errors"
	"strconv"

	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// ErrBufferFull is returned when a payload would not fit the builder's
// fixed buffer. The message is dropped whole, never truncated: a partial
// JSON body is worse than a missing one.
var ErrBufferFull = errors.New("payload: buffer capacity exceeded")

// Builder serializes sample batches into a fixed-capacity buffer. The
// buffer is reused across builds; the returned slice is valid until the
// next Build* call. Not safe for concurrent use — each sender owns its own
// Builder.
type Builder struct {
	buf      []byte
	max      int
	overflow bool
}

// NewBuilder creates a builder with the given fixed capacity in bytes.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity), max: capacity}
}

// BuildEvent serializes an event payload:
//
//	{"type":"event","samples":[...],"trigger_t":<ms>}
func (b *Builder) BuildEvent(samples []sample.Sample, triggerMS int64) ([]byte, error) {
	return b.build("event", samples, triggerMS, true)
}

// BuildLive serializes a live payload: {"type":"live","samples":[...]}.
func (b *Builder) BuildLive(samples []sample.Sample) ([]byte, error) {
	return b.build("live", samples, 0, false)
}

func (b *Builder) build(typ string, samples []sample.Sample, triggerMS int64, withTrigger bool) ([]byte, error) {
	b.buf = b.buf[:0]
	b.overflow = false

	b.str(`{"type":"`)
	b.str(typ)
	b.str(`","samples":[`)
	for i := range samples {
		if i > 0 {
			b.str(",")
		}
		b.sample(&samples[i])
	}
	b.str("]")
	if withTrigger {
		b.str(`,"trigger_t":`)
		b.int64(triggerMS)
	}
	b.str("}")

	if b.overflow {
		return nil, ErrBufferFull
	}
	return b.buf, nil
}

func (b *Builder) sample(s *sample.Sample) {
	b.str(`{"t":`)
	b.int64(s.TimestampMS)
	b.str(`,"gyro":`)
	b.vec3(&s.Gyro)
	b.str(`,"accel":`)
	b.vec3(&s.Accel)
	b.str("}")
}

func (b *Builder) vec3(v *sample.Vec3) {
	b.str(`{"x":`)
	b.float(v.X)
	b.str(`,"y":`)
	b.float(v.Y)
	b.str(`,"z":`)
	b.float(v.Z)
	b.str("}")
}

func (b *Builder) str(s string) {
	if b.overflow || len(b.buf)+len(s) > b.max {
		b.overflow = true
		return
	}
	b.buf = append(b.buf, s...)
}

func (b *Builder) int64(v int64) {
	if b.overflow || len(b.buf)+20 > b.max {
		b.overflow = true
		return
	}
	b.buf = strconv.AppendInt(b.buf, v, 10)
}

func (b *Builder) float(v float64) {
	// Reserve the worst case for %.3f of an in-range float64 so append
	// never grows past the fixed buffer.
	if b.overflow || len(b.buf)+24 > b.max {
		b.overflow = true
		return
	}
	b.buf = strconv.AppendFloat(b.buf, v, 'f', 3, 64)
	if len(b.buf) > b.max {
		b.buf = b.buf[:0]
		b.overflow = true
	}
}
