package limits

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Dimensions records which job attributes distinguish jobs in the current cycle as a consequence of
// the configured limits. A Dimensions value is immutable once resolved.
type Dimensions struct {
	user    bool
	group   bool
	project bool
	// Queues carrying at least one limit of their own.
	queuesWithLimits map[string]bool
	fairshare        bool
}

// Resolve derives the distinguishing dimensions from every limit currently configured.
//
// Any user, group or project limit, hard or soft, on any resource and of any value, at server or
// queue scope, makes that dimension distinguishing. Overall server limits apply to all jobs alike
// and distinguish nothing. With fairshare enabled, user, group and project are never distinguishing.
func Resolve(server []Limit, byQueue map[string][]Limit, fairshareEnabled bool) Dimensions {
	d := Dimensions{
		queuesWithLimits: make(map[string]bool, len(byQueue)),
		fairshare:        fairshareEnabled,
	}
	d.note(server)
	for queue, queueLimits := range byQueue {
		if len(queueLimits) > 0 {
			d.queuesWithLimits[queue] = true
		}
		d.note(queueLimits)
	}
	if fairshareEnabled {
		d.user = false
		d.group = false
		d.project = false
	}
	return d
}

func (d *Dimensions) note(ls []Limit) {
	for _, l := range ls {
		switch l.Entity {
		case EntityUser:
			d.user = true
		case EntityGroup:
			d.group = true
		case EntityProject:
			d.project = true
		}
	}
}

func (d Dimensions) User() bool {
	return d.user
}

func (d Dimensions) Group() bool {
	return d.group
}

func (d Dimensions) Project() bool {
	return d.project
}

// Fairshare returns true if fairshare forced user, group and project out of the dimensions.
func (d Dimensions) Fairshare() bool {
	return d.fairshare
}

// QueueHasLimits returns true if the named queue carries limits of its own.
func (d Dimensions) QueueHasLimits(queue string) bool {
	return d.queuesWithLimits[queue]
}

func (d Dimensions) String() string {
	var parts []string
	if d.user {
		parts = append(parts, "user")
	}
	if d.group {
		parts = append(parts, "group")
	}
	if d.project {
		parts = append(parts, "project")
	}
	queues := maps.Keys(d.queuesWithLimits)
	slices.Sort(queues)
	for _, q := range queues {
		parts = append(parts, "queue:"+q)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
