package limits

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Scope int

const (
	ScopeServer Scope = iota
	ScopeQueue
)

func (s Scope) String() string {
	if s == ScopeQueue {
		return "queue"
	}
	return "server"
}

// EntityType is the kind of entity a limit applies to.
type EntityType int

const (
	EntityOverall EntityType = iota
	EntityUser
	EntityGroup
	EntityProject
)

func (e EntityType) String() string {
	switch e {
	case EntityOverall:
		return "overall"
	case EntityUser:
		return "user"
	case EntityGroup:
		return "group"
	case EntityProject:
		return "project"
	default:
		return "unknown"
	}
}

type Kind int

const (
	Hard Kind = iota
	Soft
)

func (k Kind) String() string {
	if k == Soft {
		return "soft"
	}
	return "hard"
}

const (
	// GenericEntity applies a limit to each entity of a type individually.
	GenericEntity = "PBS_GENERIC"
	// AllEntities is the only entity name allowed for overall limits.
	AllEntities = "PBS_ALL"
)

// Limit is a single (scope, entity, resource, kind, value) entry.
type Limit struct {
	Scope Scope
	// Queue the limit is set on. Empty for server limits.
	Queue      string
	Entity     EntityType
	EntityName string
	// Resource the limit applies to. Empty for limits on the number of running jobs.
	Resource string
	Kind     Kind
	Value    string
}

// IsGeneric returns true if the limit applies to every entity of its type individually.
func (l Limit) IsGeneric() bool {
	return l.EntityName == GenericEntity
}

func (l Limit) String() string {
	resource := "jobs"
	if l.Resource != "" {
		resource = l.Resource
	}
	where := l.Scope.String()
	if l.Scope == ScopeQueue {
		where = fmt.Sprintf("queue %s", l.Queue)
	}
	return fmt.Sprintf("%s %s limit on %s for %s %s = %s", where, l.Kind, resource, l.Entity, l.EntityName, l.Value)
}

var entitySelectors = map[string]EntityType{
	"o": EntityOverall,
	"u": EntityUser,
	"g": EntityGroup,
	"p": EntityProject,
}

// Old-style limit attributes carry a plain value and an implied generic entity.
type oldStyleAttribute struct {
	entity EntityType
	kind   Kind
}

var oldStyleAttributes = map[string]oldStyleAttribute{
	"max_running":        {entity: EntityOverall, kind: Hard},
	"max_user_run":       {entity: EntityUser, kind: Hard},
	"max_user_run_soft":  {entity: EntityUser, kind: Soft},
	"max_group_run":      {entity: EntityGroup, kind: Hard},
	"max_group_run_soft": {entity: EntityGroup, kind: Soft},
}

var oldStyleResourceAttributes = map[string]oldStyleAttribute{
	"max_user_res":       {entity: EntityUser, kind: Hard},
	"max_user_res_soft":  {entity: EntityUser, kind: Soft},
	"max_group_res":      {entity: EntityGroup, kind: Hard},
	"max_group_res_soft": {entity: EntityGroup, kind: Soft},
}

var newStyleAttributes = map[string]Kind{
	"max_run":      Hard,
	"max_run_soft": Soft,
}

var newStyleResourceAttributes = map[string]Kind{
	"max_run_res":      Hard,
	"max_run_res_soft": Soft,
}

var entryPattern = regexp.MustCompile(`^\[\s*([^:\]\s]*)\s*:\s*([^=\]\s]+)\s*=\s*([^\]]*?)\s*\]$`)

// ParseAttribute parses a single limit attribute, e.g., max_run_res.ncpus = "[u:PBS_GENERIC=4]",
// into the limit entries it defines.
func ParseAttribute(scope Scope, queue, attribute, value string) ([]Limit, error) {
	name, resource, hasResource := strings.Cut(strings.TrimSpace(attribute), ".")
	if hasResource && resource == "" {
		return nil, errors.Errorf("limit attribute %s names no resource", attribute)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.Errorf("limit attribute %s has no value", attribute)
	}
	base := Limit{Scope: scope, Queue: queue, Resource: resource}

	if attr, ok := oldStyleAttributes[name]; ok && !hasResource {
		return []Limit{oldStyleLimit(base, attr, value)}, nil
	}
	if attr, ok := oldStyleResourceAttributes[name]; ok && hasResource {
		return []Limit{oldStyleLimit(base, attr, value)}, nil
	}
	if kind, ok := newStyleAttributes[name]; ok && !hasResource {
		base.Kind = kind
		return parseEntries(base, attribute, value)
	}
	if kind, ok := newStyleResourceAttributes[name]; ok && hasResource {
		base.Kind = kind
		return parseEntries(base, attribute, value)
	}
	return nil, errors.Errorf("unknown limit attribute %s", attribute)
}

// ParseAttributes parses all limit attributes set on one scope.
// All errors are returned together so an operator can fix a configuration in one pass.
func ParseAttributes(scope Scope, queue string, attributes map[string]string) ([]Limit, error) {
	var result *multierror.Error
	var rv []Limit
	names := maps.Keys(attributes)
	slices.Sort(names)
	for _, name := range names {
		parsed, err := ParseAttribute(scope, queue, name, attributes[name])
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		rv = append(rv, parsed...)
	}
	return rv, result.ErrorOrNil()
}

func oldStyleLimit(base Limit, attr oldStyleAttribute, value string) Limit {
	base.Entity = attr.entity
	base.Kind = attr.kind
	base.EntityName = GenericEntity
	if attr.entity == EntityOverall {
		base.EntityName = AllEntities
	}
	base.Value = value
	return base
}

func parseEntries(base Limit, attribute, value string) ([]Limit, error) {
	var rv []Limit
	for _, raw := range splitEntries(value) {
		match := entryPattern.FindStringSubmatch(raw)
		if match == nil {
			return nil, errors.Errorf("malformed entry %q for limit attribute %s", raw, attribute)
		}
		entity, ok := entitySelectors[match[1]]
		if !ok {
			return nil, errors.Errorf("unknown entity selector %q for limit attribute %s", match[1], attribute)
		}
		entityName := match[2]
		if entity == EntityOverall && entityName != AllEntities {
			return nil, errors.Errorf("overall limit for attribute %s must use %s, got %s", attribute, AllEntities, entityName)
		}
		if entity != EntityOverall && entityName == AllEntities {
			return nil, errors.Errorf("%s may only be used with the o selector in limit attribute %s", AllEntities, attribute)
		}
		if match[3] == "" {
			return nil, errors.Errorf("entry %q for limit attribute %s has no value", raw, attribute)
		}
		l := base
		l.Entity = entity
		l.EntityName = entityName
		l.Value = match[3]
		rv = append(rv, l)
	}
	return rv, nil
}

// splitEntries splits "[u:a=1], [g:b=2]" into its bracketed entries.
func splitEntries(value string) []string {
	var rv []string
	depth := 0
	start := -1
	stray := false
	for i, c := range value {
		switch {
		case c == '[':
			if depth == 0 {
				start = i
			}
			depth++
		case c == ']':
			depth--
			if depth == 0 && start >= 0 {
				rv = append(rv, value[start:i+1])
				start = -1
			}
		case depth == 0 && c != ',' && c != ' ' && c != '\t':
			stray = true
		}
	}
	if depth != 0 || stray || len(rv) == 0 {
		// Let the caller report the whole value as malformed.
		return []string{value}
	}
	return rv
}
