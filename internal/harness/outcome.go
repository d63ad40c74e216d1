package harness

// Code categorizes how a run ended. A run either completes with exactly
// iterations samples, noops with none, or fails in one of two phases.
type Code int

const (
	// Success: all measured rounds completed and the session was released.
	Success Code = iota

	// Nooped: dry-run mode, deliberately short-circuited with zero samples.
	Nooped

	// SetupFailure: affinity pinning, artifact loading or resource
	// acquisition failed before any measurement started.
	SetupFailure

	// RuntimeCallFailure: a bind, enqueue, drain or release call failed
	// after the session was open.
	RuntimeCallFailure
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Nooped:
		return "nooped"
	case SetupFailure:
		return "setup_failure"
	case RuntimeCallFailure:
		return "runtime_call_failure"
	default:
		return "unknown"
	}
}

// Outcome is what a registered benchmark case reports back to its caller:
// the category plus the underlying error for the failed categories.
type Outcome struct {
	Code Code
	Err  error
}

func (o Outcome) Failed() bool {
	return o.Code == SetupFailure || o.Code == RuntimeCallFailure
}

func success() Outcome {
	return Outcome{Code: Success}
}

func nooped() Outcome {
	return Outcome{Code: Nooped}
}

func setupFailure(err error) Outcome {
	return Outcome{Code: SetupFailure, Err: err}
}

func runtimeCallFailure(err error) Outcome {
	return Outcome{Code: RuntimeCallFailure, Err: err}
}
