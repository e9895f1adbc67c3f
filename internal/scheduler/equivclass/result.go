package equivclass

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrDuplicateJob is returned when a job is added to a Result more than once.
var ErrDuplicateJob = errors.New("job classified more than once")

// Class is a set of jobs that are interchangeable for the current cycle.
type Class struct {
	Key        Key
	Attributes Attributes
	// Ids of member jobs in the order they were classified.
	JobIds []string
}

func (c *Class) Size() int {
	return len(c.JobIds)
}

// Representative returns the id of the first job classified into c.
// Placement decisions computed for the representative apply to every member.
func (c *Class) Representative() string {
	return c.JobIds[0]
}

// Result is the partition of the non-terminal jobs of one cycle into classes.
// A Result belongs to the cycle that produced it and must not be retained across cycles.
type Result struct {
	// Classes in the order they were first seen.
	classes []*Class
	byKey   map[Key]*Class
	byJobId map[string]*Class
	// Number of jobs not classified, by reason.
	skipped map[string]int
}

func NewResult() *Result {
	return &Result{
		byKey:   make(map[Key]*Class),
		byJobId: make(map[string]*Class),
		skipped: make(map[string]int),
	}
}

// Add assigns the job with the given id to the class identified by attrs.
// Adding the same job id twice would break the partition and returns ErrDuplicateJob.
func (r *Result) Add(jobId string, attrs Attributes) error {
	if class, ok := r.byJobId[jobId]; ok {
		return errors.Wrapf(ErrDuplicateJob, "job %s already in class %s", jobId, class.Key)
	}
	key := KeyOf(attrs)
	class, ok := r.byKey[key]
	if !ok {
		class = &Class{Key: key, Attributes: attrs}
		r.byKey[key] = class
		r.classes = append(r.classes, class)
	}
	class.JobIds = append(class.JobIds, jobId)
	r.byJobId[jobId] = class
	return nil
}

func (r *Result) skip(reason string) {
	r.skipped[reason]++
}

// Count returns the number of classes.
func (r *Result) Count() int {
	return len(r.classes)
}

// NumJobs returns the number of classified jobs.
func (r *Result) NumJobs() int {
	return len(r.byJobId)
}

// Classes returns all classes in the order they were first seen.
func (r *Result) Classes() []*Class {
	return slices.Clone(r.classes)
}

// Get returns the class with the given key.
func (r *Result) Get(key Key) (*Class, bool) {
	class, ok := r.byKey[key]
	return class, ok
}

// ClassOf returns the class the job with the given id was assigned to.
func (r *Result) ClassOf(jobId string) (*Class, bool) {
	class, ok := r.byJobId[jobId]
	return class, ok
}

// Skipped returns the number of jobs left out of classification, keyed by reason.
func (r *Result) Skipped() map[string]int {
	return maps.Clone(r.skipped)
}

// Report returns a human-readable table of the classes.
func (r *Result) Report() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 1, 1, 1, ' ', 0)
	fmt.Fprintf(w, "Classes:\t%d\n", r.Count())
	fmt.Fprintf(w, "Jobs classified:\t%d\n", r.NumJobs())
	reasons := maps.Keys(r.skipped)
	slices.Sort(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "Jobs skipped (%s):\t%d\n", reason, r.skipped[reason])
	}
	w.Flush()
	w = tabwriter.NewWriter(&sb, 1, 1, 2, ' ', 0)
	fmt.Fprint(w, "CLASS\tSIZE\tREPRESENTATIVE\tKEY\n")
	for i, class := range r.classes {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i, class.Size(), class.Representative(), class.Key)
	}
	w.Flush()
	return sb.String()
}
