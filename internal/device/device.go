package device

// Opaque runtime handles. What stands behind each one is private to the
// Runtime implementation; the harness only threads them between calls and
// releases them when done.
type (
	Context interface{}
	Program interface{}
	Kernel  interface{}
	Queue   interface{}
	Event   interface{}
)

// QueueProperties selects the command queue ordering mode. In-order is the
// default; out-of-order allows submitted operations to overlap.
type QueueProperties struct {
	OutOfOrder bool
}

// WorkSize is the 3-dimensional global/local work descriptor for one kernel
// launch.
type WorkSize struct {
	Dimensions int
	Global     [3]uint64
	Local      [3]uint64
}

// DefaultWorkSize launches a single work-item; the benchmark measures
// submission cost, so the device-side work shape is kept minimal.
var DefaultWorkSize = WorkSize{
	Dimensions: 3,
	Global:     [3]uint64{1, 1, 1},
	Local:      [3]uint64{1, 1, 1},
}

// Runtime is the capability surface the harness needs from a compute
// runtime. Every call returns an error; any non-nil error is fatal for the
// run and triggers best-effort release of already-acquired handles.
type Runtime interface {
	CreateContext() (Context, error)
	CreateProgram(ctx Context, il []byte) (Program, error)
	BuildProgram(ctx Context, prog Program) error
	CreateKernel(prog Program, entryPoint string) (Kernel, error)
	CreateQueue(ctx Context, props QueueProperties) (Queue, error)

	SetKernelArg(k Kernel, index int, value int32) error

	// EnqueueKernel submits one kernel launch. When wantEvent is true the
	// runtime produces a completion handle for the submission; when false it
	// is told not to, and the returned Event is nil.
	EnqueueKernel(q Queue, k Kernel, ws WorkSize, wantEvent bool) (Event, error)

	// Finish blocks until all work submitted to the queue has completed.
	// There is no deadline: a wedged queue blocks the run indefinitely.
	Finish(q Queue) error

	ReleaseEvent(e Event) error
	ReleaseQueue(q Queue) error
	ReleaseKernel(k Kernel) error
	ReleaseProgram(p Program) error
	ReleaseContext(c Context) error
}
