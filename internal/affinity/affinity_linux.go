//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PinCurrentThread restricts the calling OS thread to a single CPU. The
// caller must hold runtime.LockOSThread so the pinned thread stays bound to
// the acquisition goroutine. This is how the one-exclusive-real-time-lane
// contract is expressed on Linux; pair it with an isolcpus/taskset setup
// that keeps everything else off that CPU.
func PinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin thread to CPU %d: %w", cpu, err)
	}
	return nil
}
