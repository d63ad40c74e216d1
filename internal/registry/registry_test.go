package registry

import (
	"testing"

	"dispatch-bench/internal/config"
	"dispatch-bench/internal/harness"
	"dispatch-bench/internal/stats"
)

func noopRunner(env Environment) Runner {
	return func(cfg config.RunConfiguration, statistics *stats.Statistics) harness.Outcome {
		return harness.Outcome{Code: harness.Nooped}
	}
}

func TestRegisterAndLookup(t *testing.T) {
	Register(Case{Name: "lookup_case", Backend: "stub", New: noopRunner})

	c, ok := Lookup("lookup_case")
	if !ok {
		t.Fatal("registered case not found")
	}
	if c.Backend != "stub" {
		t.Errorf("backend = %q", c.Backend)
	}

	runner := c.New(Environment{})
	outcome := runner(config.RunConfiguration{Noop: true}, stats.New())
	if outcome.Code != harness.Nooped {
		t.Errorf("outcome = %v", outcome.Code)
	}

	if _, ok := Lookup("no_such_case"); ok {
		t.Error("lookup of unknown case succeeded")
	}
}

func TestListSortsByName(t *testing.T) {
	Register(Case{Name: "zz_case", Backend: "stub", New: noopRunner})
	Register(Case{Name: "aa_case", Backend: "stub", New: noopRunner})

	cases := List()
	for i := 1; i < len(cases); i++ {
		if cases[i-1].Name > cases[i].Name {
			t.Fatalf("list not sorted: %q before %q", cases[i-1].Name, cases[i].Name)
		}
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(Case{Name: "dup_case", Backend: "stub", New: noopRunner})
	Register(Case{Name: "dup_case", Backend: "stub", New: noopRunner})
}
