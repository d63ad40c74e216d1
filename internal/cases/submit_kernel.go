// Package cases registers the invocable benchmark cases. Importing it for
// side effects populates the registry.
package cases

import (
	"dispatch-bench/internal/config"
	"dispatch-bench/internal/harness"
	"dispatch-bench/internal/registry"
	"dispatch-bench/internal/stats"
)

// StubBackend tags cases that run against the in-process stub runtime.
const StubBackend = "stub"

func init() {
	registry.Register(registry.Case{
		Name:    "submit_kernel",
		Backend: StubBackend,
		New: func(env registry.Environment) registry.Runner {
			runner := &harness.Runner{
				Runtime:    env.Runtime,
				Loader:     env.Loader,
				PinCPU:     env.PinCPU,
				EnablePerf: env.EnablePerf,
			}
			return func(cfg config.RunConfiguration, statistics *stats.Statistics) harness.Outcome {
				return runner.Run(cfg, statistics)
			}
		},
	})
}
