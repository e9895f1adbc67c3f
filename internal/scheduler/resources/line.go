package resources

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DefaultLine is the resources line used when the server configures none.
var DefaultLine = []string{"ncpus", "mem", "arch", "host", "vnode", "aoe"}

// Line is the set of resources that can make otherwise identical jobs differ.
// Requests for resources not on the line are ignored when comparing jobs.
type Line struct {
	names map[string]bool
	// Sorted names; identifies the line in memo keys.
	id string
}

// NewLine returns the line made of names. Duplicates are ignored.
func NewLine(names []string) *Line {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[strings.TrimSpace(name)] = true
	}
	sorted := maps.Keys(set)
	slices.Sort(sorted)
	return &Line{names: set, id: strings.Join(sorted, ",")}
}

// Contains returns true if name is on the line. A nil line contains every resource.
func (l *Line) Contains(name string) bool {
	if l == nil {
		return true
	}
	return l.names[name]
}

// Names returns the resources on the line in sorted order.
func (l *Line) Names() []string {
	if l == nil {
		return nil
	}
	names := maps.Keys(l.names)
	slices.Sort(names)
	return names
}
