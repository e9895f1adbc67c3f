package scheduler

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "jobclass"
	SUBSYSTEM = "scheduler"
)

type SchedulerMetrics struct {
	// Number of equivalence classes computed in the most recent cycle with jobs to classify.
	equivalenceClasses prometheus.Gauge
	// Distribution of the number of equivalence classes per cycle.
	equivalenceClassesPerCycle prometheus.Histogram
	// Number of jobs classified in the most recent cycle.
	classifiedJobs prometheus.Gauge
	// Number of jobs left out of the most recent cycle, by reason.
	skippedJobs *prometheus.GaugeVec
	// Time taken by a cycle, from syncing jobs to handing classes to the placer.
	cycleTime prometheus.Histogram
}

// NewSchedulerMetrics creates the scheduler metrics and registers them with registerer.
func NewSchedulerMetrics(registerer prometheus.Registerer) (*SchedulerMetrics, error) {
	equivalenceClasses := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "equivalence_classes",
			Help:      "Number of equivalence classes in the last cycle with jobs to classify.",
		},
	)

	equivalenceClassesPerCycle := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "equivalence_classes_per_cycle",
			Help:      "Number of equivalence classes per cycle with jobs to classify.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	classifiedJobs := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "classified_jobs",
			Help:      "Number of jobs classified in the last cycle.",
		},
	)

	skippedJobs := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "skipped_jobs",
			Help:      "Number of jobs not classified in the last cycle.",
		},
		[]string{"reason"},
	)

	cycleTime := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "cycle_time_seconds",
			Help:      "Time taken by a classification cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	for _, collector := range []prometheus.Collector{
		equivalenceClasses,
		equivalenceClassesPerCycle,
		classifiedJobs,
		skippedJobs,
		cycleTime,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return &SchedulerMetrics{
		equivalenceClasses:         equivalenceClasses,
		equivalenceClassesPerCycle: equivalenceClassesPerCycle,
		classifiedJobs:             classifiedJobs,
		skippedJobs:                skippedJobs,
		cycleTime:                  cycleTime,
	}, nil
}

// ObserveClassCount records the number of classes of a cycle.
func (metrics *SchedulerMetrics) ObserveClassCount(count int) {
	metrics.equivalenceClasses.Set(float64(count))
	metrics.equivalenceClassesPerCycle.Observe(float64(count))
}

func (metrics *SchedulerMetrics) ReportClassifiedJobs(classified int, skipped map[string]int) {
	metrics.classifiedJobs.Set(float64(classified))
	metrics.skippedJobs.Reset()
	for reason, count := range skipped {
		metrics.skippedJobs.WithLabelValues(reason).Set(float64(count))
	}
}

func (metrics *SchedulerMetrics) ReportCycleTime(cycleTime time.Duration) {
	metrics.cycleTime.Observe(cycleTime.Seconds())
}
