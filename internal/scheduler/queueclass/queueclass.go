package queueclass

import (
	"time"

	"github.com/armadaproject/jobclass/internal/scheduler/calendar"
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

// SharedLabel is the effective label of every queue that does not distinguish its jobs.
const SharedLabel = "*"

// Reason records why a queue distinguishes its jobs.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonLimits
	ReasonNodes
	ReasonWindow
	ReasonIneligible
)

func (r Reason) String() string {
	switch r {
	case ReasonLimits:
		return "limits"
	case ReasonNodes:
		return "nodes"
	case ReasonWindow:
		return "window"
	case ReasonIneligible:
		return "ineligible"
	default:
		return "none"
	}
}

type Classification struct {
	// True if jobs in this queue are never interchangeable with jobs in other queues.
	Distinguishing bool
	// The queue name if Distinguishing, otherwise SharedLabel.
	Label  string
	Reason Reason
	// False if jobs in this queue cannot be placed this cycle, e.g., because the queue is a route
	// queue or its calendar window is closed. Such jobs are kept apart from runnable ones.
	Eligible bool
}

// Classifier classifies queues at a fixed instant. Create a new Classifier every cycle.
type Classifier struct {
	classifications map[string]Classification
}

// New classifies every queue at instant now.
// defaultQueue names the queue jobs land in when submitted without one; time-windowed queues
// distinguish their jobs only if their window differs from the default queue's.
func New(
	queues []*schedulerobjects.Queue,
	defaultQueue string,
	cal *calendar.Calendar,
	dims limits.Dimensions,
	now time.Time,
) *Classifier {
	if cal == nil {
		cal = calendar.AlwaysPrimetime()
	}
	defaultWindow := schedulerobjects.WindowNone
	for _, q := range queues {
		if q.Name == defaultQueue {
			defaultWindow = q.Window
		}
	}
	primetime := cal.IsPrimetime(now)
	dedicated := cal.InDedicatedTime(now)

	classifications := make(map[string]Classification, len(queues))
	for _, q := range queues {
		classifications[q.Name] = classify(q, defaultWindow, dims, primetime, dedicated)
	}
	return &Classifier{classifications: classifications}
}

func classify(q *schedulerobjects.Queue, defaultWindow schedulerobjects.Window, dims limits.Dimensions, primetime, dedicated bool) Classification {
	open := windowOpen(q.Window, primetime, dedicated)
	eligible := q.Type == schedulerobjects.QueueTypeExecution && open
	distinguishing := func(reason Reason) Classification {
		return Classification{Distinguishing: true, Label: q.Name, Reason: reason, Eligible: eligible}
	}
	if q.HasLimits() || dims.QueueHasLimits(q.Name) {
		return distinguishing(ReasonLimits)
	}
	if q.HasNodes() {
		return distinguishing(ReasonNodes)
	}
	if q.Window != schedulerobjects.WindowNone && q.Window != defaultWindow && open {
		return distinguishing(ReasonWindow)
	}
	if !eligible {
		return distinguishing(ReasonIneligible)
	}
	return Classification{Label: SharedLabel, Reason: ReasonNone, Eligible: eligible}
}

func windowOpen(w schedulerobjects.Window, primetime, dedicated bool) bool {
	switch w {
	case schedulerobjects.WindowPrimetime:
		return primetime
	case schedulerobjects.WindowNonPrimetime:
		return !primetime
	case schedulerobjects.WindowDedicated:
		return dedicated
	default:
		return true
	}
}

// Classify returns the classification of the named queue.
// Queues unknown to the classifier are plain, eligible queues.
func (c *Classifier) Classify(queue string) Classification {
	if classification, ok := c.classifications[queue]; ok {
		return classification
	}
	return Classification{Label: SharedLabel, Reason: ReasonNone, Eligible: true}
}
