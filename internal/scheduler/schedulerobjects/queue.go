package schedulerobjects

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/jobclass/internal/scheduler/limits"
)

type QueueType int

const (
	QueueTypeExecution QueueType = iota
	QueueTypeRoute
)

func (t QueueType) String() string {
	switch t {
	case QueueTypeExecution:
		return "execution"
	case QueueTypeRoute:
		return "route"
	default:
		return "unknown"
	}
}

func ParseQueueType(s string) (QueueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "execution", "e":
		return QueueTypeExecution, nil
	case "route", "r":
		return QueueTypeRoute, nil
	default:
		return QueueTypeExecution, errors.Errorf("unknown queue type %q", s)
	}
}

// Window is the calendar window during which jobs of a queue may run.
type Window int

const (
	// WindowNone indicates the queue is not restricted by the calendar.
	WindowNone Window = iota
	// WindowPrimetime indicates jobs may run only during primetime.
	WindowPrimetime
	// WindowNonPrimetime indicates jobs may run only outside primetime.
	WindowNonPrimetime
	// WindowDedicated indicates jobs may run only during dedicated time.
	WindowDedicated
)

func (w Window) String() string {
	switch w {
	case WindowNone:
		return "none"
	case WindowPrimetime:
		return "primetime"
	case WindowNonPrimetime:
		return "nonprimetime"
	case WindowDedicated:
		return "dedicated"
	default:
		return "unknown"
	}
}

func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return WindowNone, nil
	case "primetime", "prime":
		return WindowPrimetime, nil
	case "nonprimetime", "nonprime", "non-primetime":
		return WindowNonPrimetime, nil
	case "dedicated", "dedicatedtime":
		return WindowDedicated, nil
	default:
		return WindowNone, errors.Errorf("unknown queue window %q", s)
	}
}

// Queue is the scheduler-internal representation of a queue and the parts of its configuration
// that affect which jobs are interchangeable.
type Queue struct {
	// Unique name of the queue.
	Name     string
	Type     QueueType
	Priority int
	// Limits set on the queue itself.
	Limits []limits.Limit
	// Nodes associated exclusively with this queue.
	Nodes  []string
	Window Window
}

// HasLimits returns true if any limit is set on the queue.
func (q *Queue) HasLimits() bool {
	return len(q.Limits) > 0
}

// HasNodes returns true if some nodes are bound exclusively to the queue.
func (q *Queue) HasNodes() bool {
	return len(q.Nodes) > 0
}

func (q *Queue) DeepCopy() *Queue {
	if q == nil {
		return nil
	}
	rv := *q
	rv.Limits = slices.Clone(q.Limits)
	rv.Nodes = slices.Clone(q.Nodes)
	return &rv
}
