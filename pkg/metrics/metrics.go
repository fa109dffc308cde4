// Package metrics exposes nodescaler's per-iteration decisions as
// Prometheus gauges under the "nodescaler" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDesired = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescaler",
			Name:      "asg_desired_capacity",
			Help:      "Computed DesiredCapacity for an ASG after this iteration",
		},
		[]string{"asg"},
	)

	metricRequired = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescaler",
			Name:      "asg_required_nodes",
			Help:      "Required node count before scale-down damping and clamping",
		},
		[]string{"asg"},
	)

	metricPartitionDemandCPU = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescaler",
			Name:      "partition_demand_cpu_milli",
			Help:      "Buffered CPU demand for an (asg, az) partition in millicores",
		},
		[]string{"asg", "az"},
	)

	metricPartitionDemandMemory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescaler",
			Name:      "partition_demand_memory_bytes",
			Help:      "Buffered memory demand for an (asg, az) partition in bytes",
		},
		[]string{"asg", "az"},
	)

	metricEffectorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodescaler",
			Name:      "effector_calls_total",
			Help:      "Cloud set_desired_capacity calls, partitioned by outcome",
		},
		[]string{"asg", "outcome"},
	)

	metricPendingUnsatisfiable = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nodescaler",
			Name:      "pending_unsatisfiable_total",
			Help:      "Iterations where pending demand existed but no partition could absorb it",
		},
	)

	metricIterationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nodescaler",
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of one driver iteration",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RecordDecision records the scaling outcome for one ASG.
func RecordDecision(asg string, required, final int64) {
	metricRequired.WithLabelValues(asg).Set(float64(required))
	metricDesired.WithLabelValues(asg).Set(float64(final))
}

// RecordPartitionDemand records the buffered demand computed for a
// partition, for dashboards that break capacity down by AZ.
func RecordPartitionDemand(asg, az string, cpuMilli, memoryBytes int64) {
	metricPartitionDemandCPU.WithLabelValues(asg, az).Set(float64(cpuMilli))
	metricPartitionDemandMemory.WithLabelValues(asg, az).Set(float64(memoryBytes))
}

// RecordEffectorCall records the outcome of one set_desired_capacity call.
func RecordEffectorCall(asg string, succeeded bool) {
	outcome := "success"
	if !succeeded {
		outcome = "error"
	}
	metricEffectorCalls.WithLabelValues(asg, outcome).Inc()
}

// RecordPendingUnsatisfiable marks an iteration where pending demand existed
// but no partition existed to distribute it onto.
func RecordPendingUnsatisfiable() {
	metricPendingUnsatisfiable.Inc()
}

// ObserveIterationDuration records how long one driver iteration took.
func ObserveIterationDuration(seconds float64) {
	metricIterationDuration.Observe(seconds)
}

// ClearASGMetrics removes the desired-capacity and required-nodes gauges for
// an ASG that no longer exists, to bound cardinality as ASGs come and go.
// The per-partition demand gauges and the effector call counter for that
// ASG are not removed.
func ClearASGMetrics(asg string) {
	metricDesired.DeleteLabelValues(asg)
	metricRequired.DeleteLabelValues(asg)
}
