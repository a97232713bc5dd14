// Package metrics implements the coordinator's metrics surface: interval
// metrics (begin/end/cancel around one operation invocation), count
// metrics (a bare occurrence counter), and the two traversal amount
// metrics (groupsMappedToGroups, groupShardsQueried) a group-traversal
// query accumulates while it runs.
//
// Built on github.com/prometheus/client_golang. Naming and label
// conventions follow Prometheus's own idiom: snake_case names under an
// "authzd_" namespace.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns every metric this repository emits, registered against a
// single prometheus.Registerer at construction time.
type Recorder struct {
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	counts   *prometheus.CounterVec
	amounts  *prometheus.CounterVec
}

// NewRecorder registers the full metric set against reg and returns a
// Recorder ready for use. reg is a fresh prometheus.NewRegistry() both
// in tests and in cmd/coordinator.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authzd",
			Name:      "operation_duration_seconds",
			Help:      "Duration of an operation from begin to end or cancel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "authzd",
			Name:      "operation_in_flight",
			Help:      "Number of operations currently between begin and end/cancel.",
		}, []string{"operation"}),
		counts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authzd",
			Name:      "operation_total",
			Help:      "Count of discrete operation occurrences.",
		}, []string{"operation"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authzd",
			Name:      "operation_amount_total",
			Help:      "Accumulated amount metrics (e.g. groups mapped to groups, group shards queried).",
		}, []string{"operation", "kind"}),
	}
	reg.MustRegister(r.duration, r.inFlight, r.counts, r.amounts)
	return r
}

// IntervalMetric tracks one in-flight operation invocation. Exactly one
// of End or Cancel must be called; a second call on either is a no-op.
type IntervalMetric struct {
	once      sync.Once
	recorder  *Recorder
	operation string
	started   time.Time
}

// Interval begins tracking operation: it increments the in-flight gauge
// immediately and returns a handle whose End/Cancel closes it out.
func (r *Recorder) Interval(operation string) *IntervalMetric {
	r.inFlight.WithLabelValues(operation).Inc()
	return &IntervalMetric{recorder: r, operation: operation, started: time.Now()}
}

// End closes the interval as having completed successfully.
func (im *IntervalMetric) End() {
	im.once.Do(func() { im.finish("completed") })
}

// Cancel closes the interval as having failed or been abandoned.
func (im *IntervalMetric) Cancel() {
	im.once.Do(func() { im.finish("canceled") })
}

func (im *IntervalMetric) finish(outcome string) {
	im.recorder.inFlight.WithLabelValues(im.operation).Dec()
	im.recorder.duration.WithLabelValues(im.operation, outcome).Observe(time.Since(im.started).Seconds())
}

// Count records one occurrence of operation (e.g. one call to
// ContainsUser), independent of any interval tracking for that call.
func (r *Recorder) Count(operation string) {
	r.counts.WithLabelValues(operation).Inc()
}

// Amount kind names for group-traversal queries.
const (
	AmountGroupsMappedToGroups = "groupsMappedToGroups"
	AmountGroupShardsQueried   = "groupShardsQueried"
)

// Amount accumulates value under (operation, kind), e.g. the number of
// group shards a single HasAccessToEntity traversal queried.
func (r *Recorder) Amount(operation, kind string, value float64) {
	if value == 0 {
		return
	}
	r.amounts.WithLabelValues(operation, kind).Add(value)
}
