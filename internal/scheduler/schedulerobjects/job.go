package schedulerobjects

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// JobState is the lifecycle state of a job as reported by the server.
type JobState int

const (
	JobStateQueued JobState = iota
	JobStateRunning
	JobStateHeld
	JobStateSuspended
	JobStateExiting
	JobStateFinished
)

var jobStateNames = map[JobState]string{
	JobStateQueued:    "Queued",
	JobStateRunning:   "Running",
	JobStateHeld:      "Held",
	JobStateSuspended: "Suspended",
	JobStateExiting:   "Exiting",
	JobStateFinished:  "Finished",
}

// Single-letter state codes as printed by qstat-like tools.
var jobStateCodes = map[string]JobState{
	"q": JobStateQueued,
	"r": JobStateRunning,
	"h": JobStateHeld,
	"s": JobStateSuspended,
	"e": JobStateExiting,
	"f": JobStateFinished,
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal returns true if the job will never run again.
func (s JobState) IsTerminal() bool {
	return s == JobStateFinished
}

// ParseJobState accepts either a full state name (case-insensitive) or a single-letter state code.
func ParseJobState(s string) (JobState, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if state, ok := jobStateCodes[lower]; ok {
		return state, nil
	}
	for state, name := range jobStateNames {
		if strings.ToLower(name) == lower {
			return state, nil
		}
	}
	return JobStateQueued, errors.Errorf("unknown job state %q", s)
}

// Well-known keys of Job.Resources that are not plain resources.
const (
	SelectResource = "select"
	PlaceResource  = "place"
)

// Job is the scheduler-internal representation of a job.
// Jobs stored in the JobDb must not be modified in place; use DeepCopy.
type Job struct {
	// Unique, stable job id.
	Id string
	// Owner of the job.
	User string
	// Effective group of the job owner.
	Group string
	// Project the job is charged to. Empty if none.
	Project string
	// Name of the queue the job resides in.
	Queue string
	// Id of the reservation the job runs in. Empty if the job is not part of a reservation.
	Reservation string
	State       JobState
	// True for array jobs and their subjobs.
	IsArray bool
	// Requested resources keyed by name, including select and place statements and time limits.
	// Values are the raw strings supplied at submission.
	Resources map[string]string
	// Logical timestamp indicating the order in which jobs were submitted.
	Timestamp int64
}

// GetId returns the id of the job.
func (job *Job) GetId() string {
	return job.Id
}

// GetQueue returns the queue this job belongs to.
func (job *Job) GetQueue() string {
	return job.Queue
}

// Select returns the raw select statement of the job and whether one was requested.
func (job *Job) Select() (string, bool) {
	v, ok := job.Resources[SelectResource]
	return v, ok
}

// Place returns the raw place statement of the job and whether one was requested.
func (job *Job) Place() (string, bool) {
	v, ok := job.Resources[PlaceResource]
	return v, ok
}

// InReservation returns true if the job runs inside a reservation.
func (job *Job) InReservation() bool {
	return job.Reservation != ""
}

// DeepCopy returns a copy of the job sharing no mutable state with the original.
func (job *Job) DeepCopy() *Job {
	if job == nil {
		return nil
	}
	rv := *job
	if job.Resources != nil {
		rv.Resources = maps.Clone(job.Resources)
	}
	return &rv
}
