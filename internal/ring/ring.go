// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ring

import (
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// Buffer is a fixed-capacity circular store of samples. It is single-writer:
// only the acquisition goroutine writes, and reads happen on the same
// goroutine (at capture finalize), so no locking is needed or provided.
type Buffer struct {
	slots []sample.Sample
	head  uint64 // total writes since boot; next write goes to head % cap
	count int    // number of valid slots, saturates at capacity
}

// New creates a buffer holding up to capacity samples.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{slots: make([]sample.Sample, capacity)}
}

// Write stores s, overwriting the oldest sample once the buffer is full.
func (b *Buffer) Write(s sample.Sample) {
	b.slots[b.head%uint64(len(b.slots))] = s
	b.head++
	if b.count < len(b.slots) {
		b.count++
	}
}

// Count returns the number of samples currently held.
func (b *Buffer) Count() int {
	return b.count
}

// Capacity returns the fixed slot count.
func (b *Buffer) Capacity() int {
	return len(b.slots)
}

// CopyRecent copies the most recently written samples into dst, oldest
// first, and returns how many were copied. The request is clamped to both
// len(dst) and the number of samples written since boot, so a slot that has
// never been written is never read.
func (b *Buffer) CopyRecent(dst []sample.Sample) int {
	n := len(dst)
	if n > b.count {
		n = b.count
	}
	cap64 := uint64(len(b.slots))
	for i := 0; i < n; i++ {
		idx := (b.head - uint64(n) + uint64(i)) % cap64
		dst[i] = b.slots[idx]
	}
	return n
}
