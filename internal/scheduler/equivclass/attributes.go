package equivclass

import (
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
	"github.com/armadaproject/jobclass/internal/scheduler/queueclass"
	"github.com/armadaproject/jobclass/internal/scheduler/resources"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

// Names of the entries of an attribute bag.
// Resource and time-limit entries are prefixed so that no resource name can collide with another entry.
const (
	AttributeSelect      = "select"
	AttributePlace       = "place"
	AttributeUser        = "user"
	AttributeGroup       = "group"
	AttributeProject     = "project"
	AttributeQueue       = "queue"
	AttributeReservation = "reservation"
	AttributeSuspended   = "suspended"

	resourcePrefix  = "resource."
	timeLimitPrefix = "timelimit."
)

// ResourceAttribute returns the bag entry name of a requested resource.
func ResourceAttribute(resource string) string {
	return resourcePrefix + resource
}

// TimeLimitAttribute returns the bag entry name of a time-limit resource.
func TimeLimitAttribute(resource string) string {
	return timeLimitPrefix + resource
}

// Attributes is the set of job attributes relevant to placement and limit checking in one cycle,
// keyed by entry name. Values are normalised.
type Attributes map[string]string

// Extractor computes the attribute bag of jobs for one cycle.
type Extractor struct {
	registry      *resources.Registry
	resourcesLine *resources.Line
	dims          limits.Dimensions
	queues        *queueclass.Classifier
}

// NewExtractor returns an extractor for a cycle in which dims are the distinguishing dimensions and
// queues classifies queues at the cycle instant. Requested resources not on resourcesLine are ignored,
// both as plain requests and inside select chunks.
func NewExtractor(
	registry *resources.Registry,
	resourcesLine *resources.Line,
	dims limits.Dimensions,
	queues *queueclass.Classifier,
) *Extractor {
	return &Extractor{
		registry:      registry,
		resourcesLine: resourcesLine,
		dims:          dims,
		queues:        queues,
	}
}

// Extract returns the attribute bag of job.
func (e *Extractor) Extract(job *schedulerobjects.Job) Attributes {
	attrs := make(Attributes, len(job.Resources)+4)
	for name, value := range job.Resources {
		switch {
		case name == schedulerobjects.SelectResource:
			attrs[AttributeSelect] = e.registry.CanonicalSelect(value, e.resourcesLine)
		case name == schedulerobjects.PlaceResource:
			attrs[AttributePlace] = value
		case resources.IsTimeLimit(name):
			attrs[TimeLimitAttribute(name)] = e.registry.Normalize(name, value)
		case e.resourcesLine.Contains(name):
			attrs[ResourceAttribute(name)] = e.registry.Normalize(name, value)
		}
	}
	if e.dims.User() {
		attrs[AttributeUser] = job.User
	}
	if e.dims.Group() {
		attrs[AttributeGroup] = job.Group
	}
	if e.dims.Project() {
		attrs[AttributeProject] = job.Project
	}
	attrs[AttributeQueue] = e.queues.Classify(job.Queue).Label
	// Always present; the empty value marks jobs outside any reservation.
	attrs[AttributeReservation] = job.Reservation
	if job.State == schedulerobjects.JobStateSuspended {
		attrs[AttributeSuspended] = job.Id
	}
	return attrs
}
