package resources

import (
	"strings"

	"github.com/pkg/errors"
)

// Type determines how values of a resource are compared.
type Type int

const (
	TypeString Type = iota
	TypeLong
	TypeFloat
	// Sizes, e.g., 1gb. Compared in bytes.
	TypeSize
	// Durations, e.g., 01:30:00. Compared in seconds.
	TypeTime
	TypeBoolean
	// Comma-separated strings, compared as a set.
	TypeStringArray
)

var typeNames = map[Type]string{
	TypeString:      "string",
	TypeLong:        "long",
	TypeFloat:       "float",
	TypeSize:        "size",
	TypeTime:        "time",
	TypeBoolean:     "boolean",
	TypeStringArray: "string_array",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

func ParseType(s string) (Type, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == lower {
			return t, nil
		}
	}
	return TypeString, errors.Errorf("unknown resource type %q", s)
}

// Definition describes a resource known to the server.
type Definition struct {
	Name string
	Type Type
	// True if the resource is consumed per host (e.g., ncpus) rather than per job (e.g., walltime).
	HostLevel bool
}

// Time-limit resources. These distinguish jobs through the time-limit signature rather than as
// ordinary resources.
const (
	Cput        = "cput"
	Walltime    = "walltime"
	MinWalltime = "min_walltime"
	MaxWalltime = "max_walltime"
)

// TimeLimitResources lists the time-limit resources in signature order.
var TimeLimitResources = []string{Cput, Walltime, MinWalltime, MaxWalltime}

// IsTimeLimit returns true if name is one of TimeLimitResources.
func IsTimeLimit(name string) bool {
	switch name {
	case Cput, Walltime, MinWalltime, MaxWalltime:
		return true
	}
	return false
}

var builtinDefinitions = []Definition{
	{Name: "ncpus", Type: TypeLong, HostLevel: true},
	{Name: "ngpus", Type: TypeLong, HostLevel: true},
	{Name: "mem", Type: TypeSize, HostLevel: true},
	{Name: "vmem", Type: TypeSize, HostLevel: true},
	{Name: "nodect", Type: TypeLong},
	{Name: "arch", Type: TypeString, HostLevel: true},
	{Name: "host", Type: TypeString, HostLevel: true},
	{Name: "vnode", Type: TypeString, HostLevel: true},
	{Name: "aoe", Type: TypeString, HostLevel: true},
	{Name: "software", Type: TypeString},
	{Name: Cput, Type: TypeTime},
	{Name: Walltime, Type: TypeTime},
	{Name: MinWalltime, Type: TypeTime},
	{Name: MaxWalltime, Type: TypeTime},
}

// BuiltinDefinitions returns the resources every server defines.
func BuiltinDefinitions() []Definition {
	rv := make([]Definition, len(builtinDefinitions))
	copy(rv, builtinDefinitions)
	return rv
}
