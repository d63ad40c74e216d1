package affinity

import (
	"fmt"
	"runtime"

	"dispatch-bench/internal/hostinfo"
	"dispatch-bench/internal/logging"

	"golang.org/x/sys/unix"
)

// Validate checks a pin target against the number of online CPUs. Pinning to
// a nonexistent core would fail with a bare EINVAL from the kernel; failing
// here gives the caller an actionable message instead.
func Validate(cpu int, onlineCPUs int) error {
	if cpu < 0 {
		return fmt.Errorf("invalid CPU index %d", cpu)
	}
	if cpu >= onlineCPUs {
		return fmt.Errorf("CPU index %d out of range: host has %d online CPUs", cpu, onlineCPUs)
	}
	return nil
}

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to the given logical CPU. The thread stays locked and pinned for the
// lifetime of the run; timing on an unpinned thread is unreliable, so a
// failure here must abort the benchmark.
func Pin(cpu int) error {
	logger := logging.GetLogger()

	if err := Validate(cpu, hostinfo.Get().OnlineCPUs); err != nil {
		return err
	}

	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	// pid 0 targets the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("failed to set CPU affinity to core %d: %w", cpu, err)
	}

	logger.WithField("cpu", cpu).Debug("Pinned measuring thread")
	return nil
}
