// Package equivclass partitions the non-terminal jobs of a scheduling cycle into equivalence classes:
// sets of jobs that are guaranteed to behave identically with respect to placement and limit
// checking. The scheduler evaluates each class once and applies the outcome to all its members.
//
// The partition is computed from scratch every cycle. Nothing computed in one cycle is consulted
// in the next.
package equivclass

import (
	"time"

	"github.com/pkg/errors"

	"github.com/armadaproject/jobclass/internal/scheduler/calendar"
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
	"github.com/armadaproject/jobclass/internal/scheduler/queueclass"
	"github.com/armadaproject/jobclass/internal/scheduler/resources"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

// ClassCountObserver receives the number of classes computed in a cycle.
type ClassCountObserver interface {
	ObserveClassCount(count int)
}

type ClassCountObserverFunc func(count int)

func (f ClassCountObserverFunc) ObserveClassCount(count int) {
	f(count)
}

// Classifier partitions jobs into equivalence classes.
// It holds only configuration fixed for the lifetime of the process; all per-cycle state lives in
// the Result returned by Classify.
type Classifier struct {
	registry      *resources.Registry
	resourcesLine *resources.Line
	defaultQueue  string
	calendar      *calendar.Calendar
	observer      ClassCountObserver
}

// NewClassifier returns a new Classifier. observer may be nil.
func NewClassifier(
	registry *resources.Registry,
	resourcesLine []string,
	defaultQueue string,
	cal *calendar.Calendar,
	observer ClassCountObserver,
) *Classifier {
	if cal == nil {
		cal = calendar.AlwaysPrimetime()
	}
	return &Classifier{
		registry:      registry,
		resourcesLine: resources.NewLine(resourcesLine),
		defaultQueue:  defaultQueue,
		calendar:      cal,
		observer:      observer,
	}
}

// Classify partitions the jobs among jobs given the queues and distinguishing dimensions in effect
// at instant now.
//
// Every job that is not terminal is classified, whatever its state. Terminal jobs are skipped and
// counted under the name of their state. Jobs in queues that cannot run jobs at now are classified
// apart under the name of their queue. The observer is notified of the class count if and only if
// at least one job was classified. An error means the partition could not be built and no part of
// it may be used.
func (c *Classifier) Classify(
	jobs []*schedulerobjects.Job,
	queues []*schedulerobjects.Queue,
	dims limits.Dimensions,
	now time.Time,
) (*Result, error) {
	queueClassifier := queueclass.New(queues, c.defaultQueue, c.calendar, dims, now)
	extractor := NewExtractor(c.registry, c.resourcesLine, dims, queueClassifier)
	result := NewResult()
	for _, job := range jobs {
		if job == nil {
			return nil, errors.New("nil job")
		}
		if job.State.IsTerminal() {
			result.skip(job.State.String())
			continue
		}
		if err := result.Add(job.Id, extractor.Extract(job)); err != nil {
			return nil, err
		}
	}
	if result.NumJobs() > 0 && c.observer != nil {
		c.observer.ObserveClassCount(result.Count())
	}
	return result, nil
}
