package scheduler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobclass/internal/common/app"
	"github.com/armadaproject/jobclass/internal/common/health"
	"github.com/armadaproject/jobclass/internal/common/logctx"
	"github.com/armadaproject/jobclass/internal/common/serve"
	"github.com/armadaproject/jobclass/internal/scheduler/configuration"
	"github.com/armadaproject/jobclass/internal/scheduler/equivclass"
	"github.com/armadaproject/jobclass/internal/scheduler/jobdb"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

// Run sets up a classification service and runs it until a SIGTERM is received
func Run(config configuration.Configuration) error {
	g, ctx := logctx.ErrGroup(app.CreateContextWithShutdown(logctx.Background()))

	scheduling, err := config.Parse()
	if err != nil {
		return errors.WithMessage(err, "error parsing configuration")
	}

	//////////////////////////////////////////////////////////////////////////
	// Health Checks
	//////////////////////////////////////////////////////////////////////////
	mux := http.NewServeMux()
	startupCompleteCheck := health.NewStartupCompleteChecker()
	healthChecks := health.NewMultiChecker(startupCompleteCheck)
	health.SetupHttpMux(mux, healthChecks)

	//////////////////////////////////////////////////////////////////////////
	// Metrics
	//////////////////////////////////////////////////////////////////////////
	var metrics *SchedulerMetrics
	if !config.Metrics.Disabled {
		metrics, err = NewSchedulerMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return errors.WithMessage(err, "error registering metrics")
		}
		mux.Handle("/metrics", promhttp.Handler())
	}

	//////////////////////////////////////////////////////////////////////////
	// Job database
	//////////////////////////////////////////////////////////////////////////
	db, err := newJobDb(scheduling)
	if err != nil {
		return err
	}
	var jobSource JobSource
	if config.JobsFile != "" {
		log.Infof("Jobs will be read from %s", config.JobsFile)
		jobSource = NewFileJobSource(config.JobsFile)
	}

	//////////////////////////////////////////////////////////////////////////
	// Classification
	//////////////////////////////////////////////////////////////////////////
	log.Infof("Setting up classification loop")
	scheduler := NewScheduler(
		db,
		jobSource,
		LoggingPlacer{},
		scheduling,
		clock.RealClock{},
		config.CyclePeriod,
		metrics,
	)

	server := &http.Server{Addr: fmt.Sprintf(":%d", config.Http.Port), Handler: mux}
	g.Go(func() error { return serve.ListenAndServe(ctx, server) })
	g.Go(func() error { return scheduler.Run(ctx) })

	// Mark startup as complete, will allow the health check to return healthy
	startupCompleteCheck.MarkComplete()

	return g.Wait()
}

// ClassifyOnce runs a single cycle over the jobs in jobsFile as if the current time were at.
// Nothing is served, placed or recorded in metrics.
func ClassifyOnce(config configuration.Configuration, jobsFile string, at time.Time) (*equivclass.Result, error) {
	scheduling, err := config.Parse()
	if err != nil {
		return nil, errors.WithMessage(err, "error parsing configuration")
	}
	db, err := newJobDb(scheduling)
	if err != nil {
		return nil, err
	}
	if jobsFile == "" {
		jobsFile = config.JobsFile
	}
	if jobsFile == "" {
		return nil, errors.New("no jobs file given")
	}
	scheduler := NewScheduler(db, NewFileJobSource(jobsFile), nil, scheduling, clock.RealClock{}, config.CyclePeriod, nil)
	return scheduler.CycleAt(logctx.Background(), at)
}

func newJobDb(scheduling *configuration.Scheduling) (*jobdb.JobDb, error) {
	db, err := jobdb.NewJobDb()
	if err != nil {
		return nil, errors.WithMessage(err, "error creating job database")
	}
	queues := make([]*schedulerobjects.Queue, len(scheduling.Queues))
	for i, q := range scheduling.Queues {
		queues[i] = q.DeepCopy()
	}
	txn := db.WriteTxn()
	defer txn.Abort()
	if err := db.UpsertQueues(txn, queues); err != nil {
		return nil, errors.WithMessage(err, "error storing queues")
	}
	txn.Commit()
	return db, nil
}
