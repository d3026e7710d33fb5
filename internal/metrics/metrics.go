// Package metrics records per-allocation lifecycle metrics and pushes
// them to a Prometheus Pushgateway. Batch allocations are short-lived
// and run on compute nodes a scrape target cannot reach, so push is the
// only delivery model that fits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Recorder collects the lifecycle metrics of one allocation. A nil
// Recorder is valid and records nothing, so callers never branch on
// whether metrics are enabled.
type Recorder struct {
	gateway string
	jobName string

	registry         *prometheus.Registry
	allocations      *prometheus.CounterVec
	interruptions    prometheus.Counter
	resubmissions    prometheus.Counter
	workloadDuration prometheus.Gauge
}

// NewRecorder creates a recorder pushing to gateway, grouped by job
// name. An empty gateway disables metrics entirely (returns nil).
func NewRecorder(gateway, jobName string) *Recorder {
	if gateway == "" {
		return nil
	}

	r := &Recorder{
		gateway:  gateway,
		jobName:  jobName,
		registry: prometheus.NewRegistry(),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easy_slurm_allocations_total",
			Help: "Allocations started, by first run vs. resumed continuation",
		}, []string{"kind"}),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easy_slurm_interruptions_total",
			Help: "Timeout warnings received from the scheduler",
		}),
		resubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easy_slurm_resubmissions_total",
			Help: "Continuations accepted by the scheduler",
		}),
		workloadDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "easy_slurm_workload_duration_seconds",
			Help: "Wall-clock runtime of this allocation's workload",
		}),
	}

	// A private registry keeps repeated agent runs in one process (tests)
	// from colliding on the default registry.
	r.registry.MustRegister(r.allocations)
	r.registry.MustRegister(r.interruptions)
	r.registry.MustRegister(r.resubmissions)
	r.registry.MustRegister(r.workloadDuration)

	return r
}

// AllocationStarted records one allocation start.
func (r *Recorder) AllocationStarted(firstRun bool) {
	if r == nil {
		return
	}
	kind := "resume"
	if firstRun {
		kind = "first"
	}
	r.allocations.WithLabelValues(kind).Inc()
}

// InterruptionReceived records a timeout warning.
func (r *Recorder) InterruptionReceived() {
	if r == nil {
		return
	}
	r.interruptions.Inc()
}

// ContinuationSubmitted records a successful resubmission.
func (r *Recorder) ContinuationSubmitted() {
	if r == nil {
		return
	}
	r.resubmissions.Inc()
}

// WorkloadFinished records how long the workload ran.
func (r *Recorder) WorkloadFinished(d time.Duration) {
	if r == nil {
		return
	}
	r.workloadDuration.Set(d.Seconds())
}

// Push delivers the collected metrics to the gateway. Failures are
// logged, not returned: metrics must never fail an allocation.
func (r *Recorder) Push() {
	if r == nil {
		return
	}
	err := push.New(r.gateway, "easy_slurm").
		Gatherer(r.registry).
		Grouping("job_name", r.jobName).
		Push()
	if err != nil {
		utils.PrintDebug("Failed to push metrics to %s: %v", r.gateway, err)
	}
}
