package scheduler

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobclass/internal/common/logctx"
	"github.com/armadaproject/jobclass/internal/common/logging"
	"github.com/armadaproject/jobclass/internal/scheduler/configuration"
	"github.com/armadaproject/jobclass/internal/scheduler/equivclass"
	"github.com/armadaproject/jobclass/internal/scheduler/jobdb"
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
)

// Scheduler runs the classification cycle.
// Each cycle it syncs jobs from its JobSource, partitions the non-terminal jobs of a JobDb snapshot into equivalence
// classes and hands the classes to its Placer.
type Scheduler struct {
	jobDb *jobdb.JobDb
	// Optional; if nil, the JobDb is assumed to be kept up to date by someone else.
	jobSource  JobSource
	classifier *equivclass.Classifier
	// Optional; if nil, classes are computed and discarded.
	placer     Placer
	scheduling *configuration.Scheduling
	clock      clock.WithTicker
	// How often the cycle should run.
	cyclePeriod time.Duration
	// Optional.
	metrics *SchedulerMetrics
}

func NewScheduler(
	jobDb *jobdb.JobDb,
	jobSource JobSource,
	placer Placer,
	scheduling *configuration.Scheduling,
	clock clock.WithTicker,
	cyclePeriod time.Duration,
	metrics *SchedulerMetrics,
) *Scheduler {
	var observer equivclass.ClassCountObserver
	if metrics != nil {
		observer = metrics
	}
	return &Scheduler{
		jobDb:     jobDb,
		jobSource: jobSource,
		classifier: equivclass.NewClassifier(
			scheduling.Registry,
			scheduling.ResourcesLine,
			scheduling.DefaultQueue,
			scheduling.Calendar,
			observer,
		),
		placer:      placer,
		scheduling:  scheduling,
		clock:       clock,
		cyclePeriod: cyclePeriod,
		metrics:     metrics,
	}
}

// Run enters a loop running one cycle every cyclePeriod until ctx is cancelled.
// A failed cycle is logged and does not stop the loop.
func (s *Scheduler) Run(ctx *logctx.Context) error {
	ticker := s.clock.NewTicker(s.cyclePeriod)
	defer ticker.Stop()
	ctx.Log.Infof("Will run a cycle every %s", s.cyclePeriod)
	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			cycle++
			cycleCtx := logctx.WithLogField(ctx, "cycle", cycle)
			start := s.clock.Now()
			if _, err := s.CycleAt(cycleCtx, start); err != nil {
				logging.WithStacktrace(cycleCtx.Log, err).Error("Error in classification cycle")
			}
			taken := s.clock.Since(start)
			if s.metrics != nil {
				s.metrics.ReportCycleTime(taken)
			}
			cycleCtx.Log.Infof("Completed classification cycle in %s", taken)
		}
	}
}

// CycleAt runs one cycle as if the current time were now and returns the classes it computed.
// If classification fails, nothing is handed to the placer.
func (s *Scheduler) CycleAt(ctx *logctx.Context, now time.Time) (*equivclass.Result, error) {
	if s.jobSource != nil {
		if err := s.jobSource.Sync(ctx, s.jobDb); err != nil {
			return nil, errors.WithMessage(err, "syncing jobs")
		}
	}

	// All reads of this cycle come from one snapshot.
	txn := s.jobDb.ReadTxn()
	jobs, err := s.jobDb.GetAll(txn)
	if err != nil {
		return nil, err
	}
	queues, err := s.jobDb.GetQueues(txn)
	if err != nil {
		return nil, err
	}
	queueLimits := make(map[string][]limits.Limit, len(queues))
	for _, q := range queues {
		queueLimits[q.Name] = q.Limits
	}
	dims := limits.Resolve(s.scheduling.ServerLimits, queueLimits, s.scheduling.FairshareEnabled)

	result, err := s.classifier.Classify(jobs, queues, dims, now)
	if err != nil {
		return nil, errors.WithMessage(err, "classifying jobs")
	}
	if s.metrics != nil {
		s.metrics.ReportClassifiedJobs(result.NumJobs(), result.Skipped())
	}
	// A cycle without jobs reports no class count at all, not a count of zero.
	if result.NumJobs() > 0 {
		ctx.Log.WithFields(logrus.Fields{
			"jobs":       result.NumJobs(),
			"classes":    result.Count(),
			"dimensions": dims.String(),
		}).Infof("Classified %d jobs into %d classes", result.NumJobs(), result.Count())
	} else {
		ctx.Log.Debug("No jobs to classify")
	}

	if s.placer != nil {
		if err := s.placer.Place(ctx, result); err != nil {
			return nil, errors.WithMessage(err, "placing jobs")
		}
	}
	return result, nil
}
