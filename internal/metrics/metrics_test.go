package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, operation string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(operation).Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestIntervalEndDecrementsInFlightAndRecordsCompleted(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	im := r.Interval("AddUser")
	if got := gaugeValue(t, r.inFlight, "AddUser"); got != 1 {
		t.Fatalf("expected in-flight gauge 1, got %v", got)
	}
	im.End()
	if got := gaugeValue(t, r.inFlight, "AddUser"); got != 0 {
		t.Fatalf("expected in-flight gauge back to 0, got %v", got)
	}
}

func TestIntervalCancelIsIdempotentWithEnd(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	im := r.Interval("RemoveUser")
	im.Cancel()
	im.End() // second call on either must be a no-op
	im.Cancel()

	if got := gaugeValue(t, r.inFlight, "RemoveUser"); got != 0 {
		t.Fatalf("expected in-flight gauge to settle at 0 after repeated End/Cancel, got %v", got)
	}
}

func TestAmountSkipsZeroValues(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.Amount("HasAccessToEntity", AmountGroupShardsQueried, 0)
	if got := counterValue(t, r.amounts, "HasAccessToEntity", AmountGroupShardsQueried); got != 0 {
		t.Fatalf("expected zero-value amount to be a no-op, got %v", got)
	}
	r.Amount("HasAccessToEntity", AmountGroupShardsQueried, 3)
	if got := counterValue(t, r.amounts, "HasAccessToEntity", AmountGroupShardsQueried); got != 3 {
		t.Fatalf("expected amount 3, got %v", got)
	}
}

func TestCountIncrementsIndependentlyOfInterval(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.Count("ContainsUser")
	r.Count("ContainsUser")
	if got := counterValue(t, r.counts, "ContainsUser"); got != 2 {
		t.Fatalf("expected count 2, got %v", got)
	}
}
