package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"dispatch-bench/internal/artifact"
	"dispatch-bench/internal/config"
	"dispatch-bench/internal/device"
	"dispatch-bench/internal/stats"
)

func writeKernelArtifact(t *testing.T) *artifact.Loader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, artifact.KernelBinaryName)
	if err := os.WriteFile(path, []byte{0x03, 0x02, 0x23, 0x07}, 0o644); err != nil {
		t.Fatalf("failed to write kernel artifact: %v", err)
	}
	return artifact.NewLoader(dir)
}

func newTestRunner(t *testing.T, rt *device.StubRuntime) *Runner {
	t.Helper()
	return &Runner{
		Runtime: rt,
		Loader:  writeKernelArtifact(t),
		PinCPU:  config.DefaultPinCPU,
		PinFunc: func(int) error { return nil },
	}
}

func baseConfig() config.RunConfiguration {
	return config.RunConfiguration{
		KernelExecutionTime: 1,
		NumKernels:          10,
		Iterations:          5,
		InOrderQueue:        true,
	}
}

func TestRunProducesOneSamplePerIteration(t *testing.T) {
	configs := []config.RunConfiguration{
		baseConfig(),
		{KernelExecutionTime: 0, NumKernels: 1, Iterations: 3, InOrderQueue: false},
		{KernelExecutionTime: 5, NumKernels: 7, Iterations: 2, InOrderQueue: true, DiscardEvents: true},
		{KernelExecutionTime: 2, NumKernels: 4, Iterations: 8, MeasureCompletionTime: true},
	}

	for i, cfg := range configs {
		rt := device.NewStubRuntime()
		runner := newTestRunner(t, rt)
		statistics := stats.New()

		outcome := runner.Run(cfg, statistics)
		if outcome.Code != Success {
			t.Fatalf("config %d: expected success, got %v (%v)", i, outcome.Code, outcome.Err)
		}
		if statistics.Count() != cfg.Iterations {
			t.Errorf("config %d: expected %d samples, got %d", i, cfg.Iterations, statistics.Count())
		}
		if statistics.Unit() != stats.Microseconds {
			t.Errorf("config %d: expected unit %q, got %q", i, stats.Microseconds, statistics.Unit())
		}
		if statistics.Kind() != stats.CPUSingleShot {
			t.Errorf("config %d: expected kind %q, got %q", i, stats.CPUSingleShot, statistics.Kind())
		}
		for _, v := range statistics.Samples() {
			if v < 0 {
				t.Errorf("config %d: negative sample %v", i, v)
			}
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	cfg := config.RunConfiguration{
		KernelExecutionTime: 1,
		NumKernels:          10,
		Iterations:          5,
		InOrderQueue:        true,
	}

	rt := device.NewStubRuntime()
	runner := newTestRunner(t, rt)
	statistics := stats.New()

	outcome := runner.Run(cfg, statistics)
	if outcome.Code != Success {
		t.Fatalf("expected success, got %v (%v)", outcome.Code, outcome.Err)
	}
	if statistics.Count() != 5 {
		t.Fatalf("expected 5 samples, got %d", statistics.Count())
	}
	for i, v := range statistics.Samples() {
		if v < 0 {
			t.Errorf("sample %d is negative: %v", i, v)
		}
	}

	// warmup round plus 5 measured rounds, 10 completion events each
	wantEvents := 6 * 10
	if rt.Created["event"] != wantEvents {
		t.Errorf("expected %d events created, got %d", wantEvents, rt.Created["event"])
	}
	if rt.Released["event"] != wantEvents {
		t.Errorf("expected %d events released, got %d", wantEvents, rt.Released["event"])
	}
	if leaked := rt.Leaked(); len(leaked) != 0 {
		t.Errorf("leaked handles after run: %v", leaked)
	}
}

func TestNoopRun(t *testing.T) {
	cfg := baseConfig()
	cfg.Noop = true

	rt := device.NewStubRuntime()
	runner := newTestRunner(t, rt)
	statistics := stats.New()

	outcome := runner.Run(cfg, statistics)
	if outcome.Code != Nooped {
		t.Fatalf("expected nooped, got %v", outcome.Code)
	}
	if statistics.Count() != 0 {
		t.Errorf("expected zero samples, got %d", statistics.Count())
	}
	if !statistics.Tagged() {
		t.Error("expected unit/kind tag to be recorded")
	}
	if statistics.Unit() != stats.Microseconds || statistics.Kind() != stats.CPUSingleShot {
		t.Errorf("unexpected tag: %q/%q", statistics.Unit(), statistics.Kind())
	}
	if rt.Enqueues() != 0 {
		t.Errorf("dry run touched the runtime: %d enqueues", rt.Enqueues())
	}
}

func TestDiscardEventsRequestsNoHandles(t *testing.T) {
	cfg := baseConfig()
	cfg.DiscardEvents = true

	rt := device.NewStubRuntime()
	runner := newTestRunner(t, rt)

	outcome := runner.Run(cfg, stats.New())
	if outcome.Code != Success {
		t.Fatalf("expected success, got %v (%v)", outcome.Code, outcome.Err)
	}
	if rt.Created["event"] != 0 {
		t.Errorf("expected zero completion handles, got %d", rt.Created["event"])
	}
}

func TestWarmupRoundPrecedesMeasurement(t *testing.T) {
	cfg := baseConfig()

	rt := device.NewStubRuntime()
	runner := newTestRunner(t, rt)

	outcome := runner.Run(cfg, stats.New())
	if outcome.Code != Success {
		t.Fatalf("expected success, got %v (%v)", outcome.Code, outcome.Err)
	}

	wantEnqueues := (cfg.Iterations + 1) * cfg.NumKernels
	if rt.Enqueues() != wantEnqueues {
		t.Errorf("expected %d enqueues (warmup + measured), got %d", wantEnqueues, rt.Enqueues())
	}
}

func TestSetupFailureMissingArtifact(t *testing.T) {
	rt := device.NewStubRuntime()
	runner := &Runner{
		Runtime: rt,
		Loader:  artifact.NewLoader(t.TempDir()),
		PinCPU:  config.DefaultPinCPU,
		PinFunc: func(int) error { return nil },
	}
	statistics := stats.New()

	outcome := runner.Run(baseConfig(), statistics)
	if outcome.Code != SetupFailure {
		t.Fatalf("expected setup failure, got %v", outcome.Code)
	}
	if statistics.Count() != 0 {
		t.Errorf("expected zero samples, got %d", statistics.Count())
	}
	if leaked := rt.Leaked(); len(leaked) != 0 {
		t.Errorf("leaked handles after setup failure: %v", leaked)
	}
}

func TestSetupFailurePinning(t *testing.T) {
	rt := device.NewStubRuntime()
	runner := newTestRunner(t, rt)
	runner.PinFunc = func(int) error { return fmt.Errorf("no such core") }
	statistics := stats.New()

	outcome := runner.Run(baseConfig(), statistics)
	if outcome.Code != SetupFailure {
		t.Fatalf("expected setup failure, got %v", outcome.Code)
	}
	if statistics.Count() != 0 {
		t.Errorf("expected zero samples, got %d", statistics.Count())
	}
	if rt.Enqueues() != 0 {
		t.Errorf("pin failure still touched the runtime: %d enqueues", rt.Enqueues())
	}
}

func TestRuntimeCallFailureMidRun(t *testing.T) {
	cfg := baseConfig()

	// Fail the first enqueue of the second measured round: warmup is 10
	// calls, first round another 10.
	rt := device.NewStubRuntime()
	rt.EnqueueErr = func(call int) error {
		if call == 21 {
			return fmt.Errorf("device lost")
		}
		return nil
	}

	runner := newTestRunner(t, rt)
	statistics := stats.New()

	outcome := runner.Run(cfg, statistics)
	if outcome.Code != RuntimeCallFailure {
		t.Fatalf("expected runtime call failure, got %v", outcome.Code)
	}
	if statistics.Count() != 0 {
		t.Errorf("aborted run polluted the sink with %d samples", statistics.Count())
	}
	if leaked := rt.Leaked(); len(leaked) != 0 {
		t.Errorf("leaked handles after abort: %v", leaked)
	}
}

func TestQueueDrainFailure(t *testing.T) {
	rt := device.NewStubRuntime()
	rt.FinishErr = func(call int) error {
		return fmt.Errorf("queue wedged")
	}

	runner := newTestRunner(t, rt)
	statistics := stats.New()

	outcome := runner.Run(baseConfig(), statistics)
	if outcome.Code != RuntimeCallFailure {
		t.Fatalf("expected runtime call failure, got %v", outcome.Code)
	}
	if statistics.Count() != 0 {
		t.Errorf("expected zero samples, got %d", statistics.Count())
	}
}

func TestCompletionTimeDominatesSubmissionTime(t *testing.T) {
	run := func(measureCompletion bool) float64 {
		rt := device.NewStubRuntime()
		rt.SimulateExecution = true

		cfg := config.RunConfiguration{
			KernelExecutionTime:   500,
			NumKernels:            4,
			Iterations:            3,
			InOrderQueue:          true,
			MeasureCompletionTime: measureCompletion,
		}

		runner := newTestRunner(t, rt)
		statistics := stats.New()
		outcome := runner.Run(cfg, statistics)
		if outcome.Code != Success {
			t.Fatalf("expected success, got %v (%v)", outcome.Code, outcome.Err)
		}

		sum := 0.0
		for _, v := range statistics.Samples() {
			sum += v
		}
		return sum / float64(statistics.Count())
	}

	submission := run(false)
	completion := run(true)

	// Completion waits for 4 x 500us of simulated execution per round, so
	// its mean must sit clearly above the submission-only mean.
	if completion < submission {
		t.Errorf("completion mean %v below submission mean %v", completion, submission)
	}
	if completion < 1000 {
		t.Errorf("completion mean %v did not include simulated execution", completion)
	}
}

func TestCompletionTimeMonotonicInBatchSize(t *testing.T) {
	run := func(numKernels int) float64 {
		rt := device.NewStubRuntime()
		rt.SimulateExecution = true

		cfg := config.RunConfiguration{
			KernelExecutionTime:   200,
			NumKernels:            numKernels,
			Iterations:            3,
			InOrderQueue:          true,
			MeasureCompletionTime: true,
		}

		runner := newTestRunner(t, rt)
		statistics := stats.New()
		outcome := runner.Run(cfg, statistics)
		if outcome.Code != Success {
			t.Fatalf("expected success, got %v (%v)", outcome.Code, outcome.Err)
		}

		sum := 0.0
		for _, v := range statistics.Samples() {
			sum += v
		}
		return sum / float64(statistics.Count())
	}

	small := run(1)
	large := run(32)
	if large < small {
		t.Errorf("mean for 32 kernels (%v) below mean for 1 kernel (%v)", large, small)
	}
}
