package stats

import (
	"reflect"
	"testing"
)

func TestPushValueTagsOnFirstUse(t *testing.T) {
	s := New()
	if s.Tagged() {
		t.Fatal("new sink should be untagged")
	}

	s.PushValue(12.5, Microseconds, CPUSingleShot)
	if !s.Tagged() {
		t.Fatal("push should tag the sink")
	}
	if s.Unit() != Microseconds || s.Kind() != CPUSingleShot {
		t.Errorf("unexpected tag: %q/%q", s.Unit(), s.Kind())
	}
}

func TestSamplesPreserveAppendOrder(t *testing.T) {
	s := New()
	values := []float64{3.0, 1.5, 8.25, 0.0}
	for _, v := range values {
		s.PushValue(v, Microseconds, CPUSingleShot)
	}

	if s.Count() != len(values) {
		t.Fatalf("expected %d samples, got %d", len(values), s.Count())
	}
	if !reflect.DeepEqual(s.Samples(), values) {
		t.Errorf("samples %v, want %v", s.Samples(), values)
	}
}

func TestSamplesReturnsCopy(t *testing.T) {
	s := New()
	s.PushValue(1.0, Microseconds, CPUSingleShot)

	got := s.Samples()
	got[0] = 99.0
	if s.Samples()[0] != 1.0 {
		t.Error("mutating the returned slice changed the sink")
	}
}

func TestPushUnitAndKindWithoutValues(t *testing.T) {
	s := New()
	s.PushUnitAndKind(Microseconds, CPUSingleShot)

	if s.Count() != 0 {
		t.Errorf("expected zero samples, got %d", s.Count())
	}
	if !s.Tagged() {
		t.Error("expected sink to be tagged")
	}
}
