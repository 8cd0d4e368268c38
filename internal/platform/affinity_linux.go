//go:build linux

// Package platform exposes OS-specific capabilities needed by the
// supervisor, starting with CPU affinity pinning for worker processes.
package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetAffinity pins pid to the given CPU core. Grounded on the original's
// set_workers_affinity/set_process_affinity (bin/src/main.rs), which calls
// libc::sched_setaffinity directly; golang.org/x/sys/unix exposes the same
// syscall without cgo.
func SetAffinity(pid int, cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		return fmt.Errorf("platform: set affinity for pid %d to cpu %d: %w", pid, cpu, err)
	}
	return nil
}

// NumCPU returns the number of CPUs available for affinity assignment.
func NumCPU() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 1
	}
	return set.Count()
}
