package stats

// Unit is the measurement unit shared by all samples in one Statistics.
type Unit string

// Kind describes how a sample was obtained and how a reporting layer should
// aggregate it.
type Kind string

const (
	Microseconds Unit = "microseconds"

	// CPUSingleShot marks a host-side wall-clock interval measured once per
	// round on the pinned thread.
	CPUSingleShot Kind = "cpu"
)

// Statistics is the sink for one benchmark run: an append-ordered sequence
// of samples tagged once with their unit and kind. The harness only appends;
// aggregation (mean, percentiles) belongs to the reporting layer.
type Statistics struct {
	unit    Unit
	kind    Kind
	tagged  bool
	samples []float64
}

func New() *Statistics {
	return &Statistics{}
}

// PushUnitAndKind records the tag without a value. Dry runs use it so the
// reporting layer still learns what the case would have measured.
func (s *Statistics) PushUnitAndKind(unit Unit, kind Kind) {
	s.unit = unit
	s.kind = kind
	s.tagged = true
}

// PushValue appends one sample, tagging the sink on first use.
func (s *Statistics) PushValue(value float64, unit Unit, kind Kind) {
	if !s.tagged {
		s.PushUnitAndKind(unit, kind)
	}
	s.samples = append(s.samples, value)
}

func (s *Statistics) Unit() Unit {
	return s.unit
}

func (s *Statistics) Kind() Kind {
	return s.kind
}

func (s *Statistics) Tagged() bool {
	return s.tagged
}

func (s *Statistics) Count() int {
	return len(s.samples)
}

// Samples returns a copy of the accumulated values in append order.
func (s *Statistics) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}
