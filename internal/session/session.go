package session

import (
	"errors"
	"fmt"

	"dispatch-bench/internal/artifact"
	"dispatch-bench/internal/device"
	"dispatch-bench/internal/logging"
)

// KernelEntryPoint is the fixed entry name inside the precompiled busy-wait
// program.
const KernelEntryPoint = "eat_time"

// Session owns the runtime resources for one benchmark run: context,
// compiled program, kernel object and command queue. Exactly one live
// session exists per run; Close releases everything in reverse-acquisition
// order.
type Session struct {
	rt device.Runtime

	Context device.Context
	Program device.Program
	Kernel  device.Kernel
	Queue   device.Queue

	closed bool
}

// Open acquires all session resources in order. On any failure the
// already-acquired resources are released before the error is returned, so
// no partial session is ever left dangling.
func Open(rt device.Runtime, loader *artifact.Loader, outOfOrderQueue bool) (*Session, error) {
	s := &Session{rt: rt}

	ctx, err := rt.CreateContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	s.Context = ctx

	binary, err := loader.Load(artifact.KernelBinaryName)
	if err != nil {
		s.unwind()
		return nil, err
	}

	prog, err := rt.CreateProgram(ctx, binary)
	if err != nil {
		s.unwind()
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	s.Program = prog

	if err := rt.BuildProgram(ctx, prog); err != nil {
		s.unwind()
		return nil, fmt.Errorf("failed to build program: %w", err)
	}

	kernel, err := rt.CreateKernel(prog, KernelEntryPoint)
	if err != nil {
		s.unwind()
		return nil, fmt.Errorf("failed to create kernel %q: %w", KernelEntryPoint, err)
	}
	s.Kernel = kernel

	queue, err := rt.CreateQueue(ctx, device.QueueProperties{OutOfOrder: outOfOrderQueue})
	if err != nil {
		s.unwind()
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	s.Queue = queue

	return s, nil
}

// unwind releases whatever Open managed to acquire, in reverse order.
// Release errors during unwind are logged only; the original failure is
// what the caller needs to see.
func (s *Session) unwind() {
	logger := logging.GetLogger()
	if s.Queue != nil {
		if err := s.rt.ReleaseQueue(s.Queue); err != nil {
			logger.WithError(err).Warn("Failed to release queue during unwind")
		}
		s.Queue = nil
	}
	if s.Kernel != nil {
		if err := s.rt.ReleaseKernel(s.Kernel); err != nil {
			logger.WithError(err).Warn("Failed to release kernel during unwind")
		}
		s.Kernel = nil
	}
	if s.Program != nil {
		if err := s.rt.ReleaseProgram(s.Program); err != nil {
			logger.WithError(err).Warn("Failed to release program during unwind")
		}
		s.Program = nil
	}
	if s.Context != nil {
		if err := s.rt.ReleaseContext(s.Context); err != nil {
			logger.WithError(err).Warn("Failed to release context during unwind")
		}
		s.Context = nil
	}
	s.closed = true
}

// Close releases queue, kernel, program and context in that order. All
// releases are attempted even if earlier ones fail; the first error is
// returned so callers can surface it without losing recorded results.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	var errs []error
	if s.Queue != nil {
		if err := s.rt.ReleaseQueue(s.Queue); err != nil {
			errs = append(errs, fmt.Errorf("failed to release queue: %w", err))
		}
		s.Queue = nil
	}
	if s.Kernel != nil {
		if err := s.rt.ReleaseKernel(s.Kernel); err != nil {
			errs = append(errs, fmt.Errorf("failed to release kernel: %w", err))
		}
		s.Kernel = nil
	}
	if s.Program != nil {
		if err := s.rt.ReleaseProgram(s.Program); err != nil {
			errs = append(errs, fmt.Errorf("failed to release program: %w", err))
		}
		s.Program = nil
	}
	if s.Context != nil {
		if err := s.rt.ReleaseContext(s.Context); err != nil {
			errs = append(errs, fmt.Errorf("failed to release context: %w", err))
		}
		s.Context = nil
	}
	s.closed = true

	return errors.Join(errs...)
}
