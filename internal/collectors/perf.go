package collectors

import (
	"fmt"

	"dispatch-bench/internal/logging"

	"github.com/elastic/go-perf"
	"github.com/sirupsen/logrus"
)

// ThreadCollector counts hardware events for the calling thread while the
// measured phase runs. It is diagnostic only: the harness works identically
// with or without it, and counter values are logged, never mixed into the
// sample stream.
type ThreadCollector struct {
	events []*perf.Event
	labels []string
}

// StartThreadCounters opens instruction, cycle and context-switch counters
// on the calling thread. Call it from the pinned goroutine so the counters
// follow the measuring thread.
func StartThreadCounters() (*ThreadCollector, error) {
	collector := &ThreadCollector{}

	hardwareCounters := []perf.HardwareCounter{
		perf.Instructions,
		perf.CPUCycles,
	}

	for _, counter := range hardwareCounters {
		attr := &perf.Attr{}
		counter.Configure(attr)
		attr.CountFormat.Enabled = true
		attr.CountFormat.Running = true
		event, err := perf.Open(attr, perf.CallingThread, perf.AnyCPU, nil)
		if err != nil {
			collector.Close()
			return nil, fmt.Errorf("failed to open perf event %v: %w", counter, err)
		}
		collector.events = append(collector.events, event)
		collector.labels = append(collector.labels, attr.Label)
	}

	switchAttr := &perf.Attr{Label: "context-switches"}
	perf.ContextSwitches.Configure(switchAttr)
	switchAttr.CountFormat.Enabled = true
	switchAttr.CountFormat.Running = true
	if event, err := perf.Open(switchAttr, perf.CallingThread, perf.AnyCPU, nil); err == nil {
		collector.events = append(collector.events, event)
		collector.labels = append(collector.labels, switchAttr.Label)
	}

	for _, event := range collector.events {
		if err := event.Enable(); err != nil {
			collector.Close()
			return nil, fmt.Errorf("failed to enable perf event: %w", err)
		}
	}

	return collector, nil
}

// ReadAndLog disables the counters and logs their totals. Context switches
// above zero on the pinned thread indicate scheduler interference worth
// investigating before trusting the samples.
func (tc *ThreadCollector) ReadAndLog() {
	logger := logging.GetLogger()

	fields := logrus.Fields{}
	for i, event := range tc.events {
		if err := event.Disable(); err != nil {
			continue
		}
		count, err := event.ReadCount()
		if err != nil {
			continue
		}
		label := count.Label
		if label == "" && i < len(tc.labels) {
			label = tc.labels[i]
		}
		fields[label] = count.Value
	}

	if len(fields) > 0 {
		logger.WithFields(fields).Info("Measured-phase hardware counters")
	}
}

func (tc *ThreadCollector) Close() {
	for _, event := range tc.events {
		if event != nil {
			event.Close()
		}
	}
	tc.events = nil
}
