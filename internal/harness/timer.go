package harness

import "time"

// Timer measures one wall-clock interval on the calling thread. Go's
// monotonic clock backs time.Since, so samples are immune to wall-clock
// adjustments mid-run.
type Timer struct {
	start   time.Time
	elapsed time.Duration
}

func (t *Timer) MeasureStart() {
	t.start = time.Now()
}

func (t *Timer) MeasureEnd() {
	t.elapsed = time.Since(t.start)
}

// Microseconds returns the last measured interval.
func (t *Timer) Microseconds() float64 {
	return float64(t.elapsed.Nanoseconds()) / 1e3
}
