package device

import (
	"fmt"
	"sync"
	"time"
)

type stubHandle struct {
	kind string
	id   int
}

// StubRuntime is an in-process Runtime that completes every call
// immediately. It backs the default CLI backend when no real driver is
// linked and the harness tests. All handle creations and releases are
// counted so callers can check resource accounting after a run.
//
// The hook fields let tests inject a failure into a single call site; a nil
// hook means the call succeeds.
type StubRuntime struct {
	// SimulateExecution makes Finish sleep for the pending work, using the
	// last value bound with SetKernelArg as a per-kernel microsecond cost.
	SimulateExecution bool

	CreateContextErr func() error
	CreateProgramErr func() error
	BuildProgramErr  func() error
	CreateKernelErr  func() error
	CreateQueueErr   func() error
	SetKernelArgErr  func(call int) error
	EnqueueErr       func(call int) error
	FinishErr        func(call int) error
	ReleaseErr       func(kind string) error

	mu sync.Mutex

	nextID      int
	lastArg     int32
	pending     int
	setArgCalls int
	enqueues    int
	finishes    int

	Created  map[string]int
	Released map[string]int
}

func NewStubRuntime() *StubRuntime {
	return &StubRuntime{
		Created:  make(map[string]int),
		Released: make(map[string]int),
	}
}

func (s *StubRuntime) newHandle(kind string) *stubHandle {
	s.nextID++
	s.Created[kind]++
	return &stubHandle{kind: kind, id: s.nextID}
}

func (s *StubRuntime) release(kind string, h interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReleaseErr != nil {
		if err := s.ReleaseErr(kind); err != nil {
			return err
		}
	}
	sh, ok := h.(*stubHandle)
	if !ok || sh.kind != kind {
		return fmt.Errorf("release of foreign %s handle", kind)
	}
	s.Released[kind]++
	return nil
}

func (s *StubRuntime) CreateContext() (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateContextErr != nil {
		if err := s.CreateContextErr(); err != nil {
			return nil, err
		}
	}
	return s.newHandle("context"), nil
}

func (s *StubRuntime) CreateProgram(ctx Context, il []byte) (Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateProgramErr != nil {
		if err := s.CreateProgramErr(); err != nil {
			return nil, err
		}
	}
	if len(il) == 0 {
		return nil, fmt.Errorf("empty program binary")
	}
	return s.newHandle("program"), nil
}

func (s *StubRuntime) BuildProgram(ctx Context, prog Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BuildProgramErr != nil {
		if err := s.BuildProgramErr(); err != nil {
			return err
		}
	}
	return nil
}

func (s *StubRuntime) CreateKernel(prog Program, entryPoint string) (Kernel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateKernelErr != nil {
		if err := s.CreateKernelErr(); err != nil {
			return nil, err
		}
	}
	if entryPoint == "" {
		return nil, fmt.Errorf("empty kernel entry point")
	}
	return s.newHandle("kernel"), nil
}

func (s *StubRuntime) CreateQueue(ctx Context, props QueueProperties) (Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateQueueErr != nil {
		if err := s.CreateQueueErr(); err != nil {
			return nil, err
		}
	}
	return s.newHandle("queue"), nil
}

func (s *StubRuntime) SetKernelArg(k Kernel, index int, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setArgCalls++
	if s.SetKernelArgErr != nil {
		if err := s.SetKernelArgErr(s.setArgCalls); err != nil {
			return err
		}
	}
	s.lastArg = value
	return nil
}

func (s *StubRuntime) EnqueueKernel(q Queue, k Kernel, ws WorkSize, wantEvent bool) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueues++
	if s.EnqueueErr != nil {
		if err := s.EnqueueErr(s.enqueues); err != nil {
			return nil, err
		}
	}
	s.pending++
	if !wantEvent {
		return nil, nil
	}
	return s.newHandle("event"), nil
}

func (s *StubRuntime) Finish(q Queue) error {
	s.mu.Lock()
	s.finishes++
	if s.FinishErr != nil {
		if err := s.FinishErr(s.finishes); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	pending := s.pending
	lastArg := s.lastArg
	s.pending = 0
	s.mu.Unlock()

	if s.SimulateExecution && pending > 0 {
		time.Sleep(time.Duration(pending) * time.Duration(lastArg) * time.Microsecond)
	}
	return nil
}

func (s *StubRuntime) ReleaseEvent(e Event) error   { return s.release("event", e) }
func (s *StubRuntime) ReleaseQueue(q Queue) error   { return s.release("queue", q) }
func (s *StubRuntime) ReleaseKernel(k Kernel) error { return s.release("kernel", k) }

func (s *StubRuntime) ReleaseProgram(p Program) error { return s.release("program", p) }
func (s *StubRuntime) ReleaseContext(c Context) error { return s.release("context", c) }

// Enqueues reports the total number of enqueue calls seen.
func (s *StubRuntime) Enqueues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueues
}

// Leaked reports handle kinds with more creations than releases.
func (s *StubRuntime) Leaked() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	leaked := make(map[string]int)
	for kind, created := range s.Created {
		if diff := created - s.Released[kind]; diff > 0 {
			leaked[kind] = diff
		}
	}
	return leaked
}
