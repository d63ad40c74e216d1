package registry

import (
	"fmt"
	"sort"
	"sync"

	"dispatch-bench/internal/artifact"
	"dispatch-bench/internal/config"
	"dispatch-bench/internal/device"
	"dispatch-bench/internal/harness"
	"dispatch-bench/internal/stats"
)

// Runner invokes one registered benchmark case.
type Runner func(cfg config.RunConfiguration, statistics *stats.Statistics) harness.Outcome

// Environment carries the collaborators a case needs to build its runner:
// the runtime backend, the artifact loader and the harness knobs that the
// benchmark config resolved.
type Environment struct {
	Runtime    device.Runtime
	Loader     *artifact.Loader
	PinCPU     int
	EnablePerf bool
}

// Case is one named, invocable benchmark bound to a fixed API backend tag.
type Case struct {
	Name    string
	Backend string
	New     func(env Environment) Runner
}

var (
	mu    sync.Mutex
	cases = make(map[string]Case)
)

// Register adds a case at init time. Duplicate names are a programming
// error.
func Register(c Case) {
	mu.Lock()
	defer mu.Unlock()
	if c.Name == "" || c.New == nil {
		panic("registry: case needs a name and a constructor")
	}
	if _, exists := cases[c.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate case %q", c.Name))
	}
	cases[c.Name] = c
}

func Lookup(name string) (Case, bool) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := cases[name]
	return c, ok
}

// List returns all registered cases sorted by name.
func List() []Case {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Case, 0, len(cases))
	for _, c := range cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
