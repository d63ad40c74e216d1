package harness

import (
	"fmt"

	"dispatch-bench/internal/affinity"
	"dispatch-bench/internal/artifact"
	"dispatch-bench/internal/collectors"
	"dispatch-bench/internal/config"
	"dispatch-bench/internal/device"
	"dispatch-bench/internal/logging"
	"dispatch-bench/internal/session"
	"dispatch-bench/internal/stats"

	"github.com/sirupsen/logrus"
)

// State tracks where a run is in its lifecycle. Transitions are strictly
// forward; the terminal state is reached on both completion and abort.
type State int

const (
	StateIdle State = iota
	StatePinned
	StateSessionOpen
	StateWarmup
	StateMeasuring
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePinned:
		return "pinned"
	case StateSessionOpen:
		return "session_open"
	case StateWarmup:
		return "warmup"
	case StateMeasuring:
		return "measuring"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Runner executes the submit-kernel benchmark against a compute runtime.
// One Runner performs one run at a time on a single goroutine; the only
// asynchrony is the device executing submitted work behind the queue.
type Runner struct {
	Runtime device.Runtime
	Loader  *artifact.Loader
	PinCPU  int

	// EnablePerf opens hardware counters on the pinned thread for the
	// duration of the run. Diagnostic only; open failures are warnings.
	EnablePerf bool

	// PinFunc overrides affinity pinning. Nil selects affinity.Pin; tests
	// substitute a no-op since they make no timing claims.
	PinFunc func(cpu int) error

	state State
}

func (r *Runner) setState(next State) {
	logging.GetLogger().WithFields(logrus.Fields{
		"from": r.state.String(),
		"to":   next.String(),
	}).Debug("Harness state transition")
	r.state = next
}

func (r *Runner) pin() error {
	if r.PinFunc != nil {
		return r.PinFunc(r.PinCPU)
	}
	return affinity.Pin(r.PinCPU)
}

// Run executes warmup plus cfg.Iterations measured rounds and pushes one
// sample per measured round into statistics. A failed run pushes nothing:
// samples are buffered locally and flushed only once every round has
// completed, so the sink never holds partial data.
func (r *Runner) Run(cfg config.RunConfiguration, statistics *stats.Statistics) Outcome {
	logger := logging.GetLogger()
	r.state = StateIdle

	if cfg.Noop {
		statistics.PushUnitAndKind(stats.Microseconds, stats.CPUSingleShot)
		return nooped()
	}

	if err := r.pin(); err != nil {
		return setupFailure(err)
	}
	r.setState(StatePinned)

	var perfCounters *collectors.ThreadCollector
	if r.EnablePerf {
		var err error
		perfCounters, err = collectors.StartThreadCounters()
		if err != nil {
			logger.WithError(err).Warn("Hardware counters unavailable, continuing without them")
			perfCounters = nil
		}
	}

	sess, err := session.Open(r.Runtime, r.Loader, !cfg.InOrderQueue)
	if err != nil {
		r.setState(StateTornDown)
		return setupFailure(err)
	}
	r.setState(StateSessionOpen)

	// EventSlots: one per submission within a round, reused across rounds.
	events := make([]device.Event, cfg.NumKernels)

	abort := func(err error) Outcome {
		if relErr := r.releaseEvents(events); relErr != nil {
			logger.WithError(relErr).Warn("Failed to release events during abort")
		}
		if closeErr := sess.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to release session during abort")
		}
		r.setState(StateTornDown)
		return runtimeCallFailure(err)
	}

	// Warmup absorbs first-use costs (kernel binding, queue lazy init,
	// page faults); its duration is never recorded.
	r.setState(StateWarmup)
	if err := r.submitRound(sess, cfg, events); err != nil {
		return abort(err)
	}
	if err := r.releaseEvents(events); err != nil {
		return abort(err)
	}

	r.setState(StateMeasuring)
	var timer Timer
	samples := make([]float64, 0, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		timer.MeasureStart()

		if err := r.submitRound(sess, cfg, events); err != nil {
			return abort(err)
		}

		if !cfg.MeasureCompletionTime {
			// Stop at the submission boundary: the sample excludes device
			// execution and queue drain entirely.
			timer.MeasureEnd()
			samples = append(samples, timer.Microseconds())
		}

		// The queue is drained every round so the kernel and queue handles
		// can be safely reused by the next round.
		if err := r.Runtime.Finish(sess.Queue); err != nil {
			return abort(fmt.Errorf("failed to drain queue: %w", err))
		}

		if cfg.MeasureCompletionTime {
			timer.MeasureEnd()
			samples = append(samples, timer.Microseconds())
		}

		if err := r.releaseEvents(events); err != nil {
			return abort(err)
		}
	}

	for _, value := range samples {
		statistics.PushValue(value, stats.Microseconds, stats.CPUSingleShot)
	}

	if perfCounters != nil {
		perfCounters.ReadAndLog()
		perfCounters.Close()
	}

	closeErr := sess.Close()
	r.setState(StateTornDown)
	if closeErr != nil {
		// Teardown failures are surfaced but never discard recorded samples.
		logger.WithError(closeErr).Warn("Failed to release session after measurement")
		return Outcome{Code: Success, Err: closeErr}
	}

	return success()
}

// submitRound issues one round of cfg.NumKernels enqueues back-to-back. The
// scalar execution-time argument is rebound before every enqueue since the
// runtime is not assumed to retain argument state across submissions.
func (r *Runner) submitRound(sess *session.Session, cfg config.RunConfiguration, events []device.Event) error {
	wantEvent := !cfg.DiscardEvents
	for i := 0; i < cfg.NumKernels; i++ {
		if err := r.Runtime.SetKernelArg(sess.Kernel, 0, int32(cfg.KernelExecutionTime)); err != nil {
			return fmt.Errorf("failed to set kernel argument: %w", err)
		}

		event, err := r.Runtime.EnqueueKernel(sess.Queue, sess.Kernel, device.DefaultWorkSize, wantEvent)
		if err != nil {
			return fmt.Errorf("failed to enqueue kernel: %w", err)
		}
		if wantEvent {
			events[i] = event
		}
	}
	return nil
}

// releaseEvents releases every non-empty slot and resets it for the next
// round. With DiscardEvents set all slots are empty and this is a no-op.
func (r *Runner) releaseEvents(events []device.Event) error {
	var firstErr error
	for i, event := range events {
		if event == nil {
			continue
		}
		if err := r.Runtime.ReleaseEvent(event); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to release event: %w", err)
		}
		events[i] = nil
	}
	return firstErr
}
