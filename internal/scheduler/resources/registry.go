package resources

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const defaultSelectCacheSize = 1024

// Registry holds the resource definitions of the server and normalises resource values so that
// equal amounts written differently compare equal.
//
// Canonical select statements are memoised in an LRU keyed by the statement text and the resources
// line it was filtered against; the definitions are fixed for the lifetime of the Registry.
type Registry struct {
	definitions map[string]Definition
	selectCache *lru.Cache
}

type selectCacheKey struct {
	// True for the nil line, which keeps every resource.
	unfiltered bool
	line       string
	spec       string
}

// NewRegistry returns a registry with the builtin definitions plus custom, which may redefine builtins.
func NewRegistry(custom []Definition, selectCacheSize int) (*Registry, error) {
	if selectCacheSize <= 0 {
		selectCacheSize = defaultSelectCacheSize
	}
	cache, err := lru.New(selectCacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	definitions := make(map[string]Definition, len(builtinDefinitions)+len(custom))
	for _, d := range builtinDefinitions {
		definitions[d.Name] = d
	}
	for _, d := range custom {
		if d.Name == "" {
			return nil, errors.New("resource definition with empty name")
		}
		definitions[d.Name] = d
	}
	return &Registry{
		definitions: definitions,
		selectCache: cache,
	}, nil
}

// Lookup returns the definition of the named resource.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.definitions[name]
	return d, ok
}

// Normalize returns the canonical form of value for the named resource.
// Resources without a definition are treated as strings.
// Values that cannot be parsed according to their type are returned unchanged.
func (r *Registry) Normalize(name, value string) string {
	value = strings.TrimSpace(value)
	d, ok := r.definitions[name]
	if !ok {
		return value
	}
	normalized, err := normalize(d.Type, value)
	if err != nil {
		return value
	}
	return normalized
}

// CanonicalSelect returns the canonical form of a select statement such as "2:ncpus=4:mem=1gb+ncpus=1".
// Chunk counts default to 1, resources within a chunk are sorted by name and their values normalised.
// Resources not on line are dropped; a nil line keeps them all. Chunk order is preserved.
func (r *Registry) CanonicalSelect(spec string, line *Line) string {
	key := selectCacheKey{unfiltered: line == nil, spec: spec}
	if line != nil {
		key.line = line.id
	}
	if cached, ok := r.selectCache.Get(key); ok {
		return cached.(string)
	}
	chunks := strings.Split(strings.TrimSpace(spec), "+")
	for i, chunk := range chunks {
		chunks[i] = r.canonicalChunk(chunk, line)
	}
	canonical := strings.Join(chunks, "+")
	r.selectCache.Add(key, canonical)
	return canonical
}

func (r *Registry) canonicalChunk(chunk string, line *Line) string {
	parts := strings.Split(strings.TrimSpace(chunk), ":")
	count := "1"
	if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		count = strconv.Itoa(n)
		parts = parts[1:]
	}
	resources := make([]string, 0, len(parts))
	for _, part := range parts {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			resources = append(resources, strings.TrimSpace(part))
			continue
		}
		name = strings.TrimSpace(name)
		if !line.Contains(name) {
			continue
		}
		resources = append(resources, name+"="+r.Normalize(name, value))
	}
	slices.Sort(resources)
	return strings.Join(append([]string{count}, resources...), ":")
}

func normalize(t Type, value string) (string, error) {
	switch t {
	case TypeLong:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return strconv.FormatInt(n, 10), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case TypeSize:
		bytes, err := units.RAMInBytes(value)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return strconv.FormatInt(bytes, 10) + "b", nil
	case TypeTime:
		seconds, err := ParseSeconds(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(seconds, 10), nil
	case TypeBoolean:
		return normalizeBoolean(value)
	case TypeStringArray:
		elements := strings.Split(value, ",")
		for i := range elements {
			elements[i] = strings.TrimSpace(elements[i])
		}
		slices.Sort(elements)
		return strings.Join(slices.Compact(elements), ","), nil
	default:
		return value, nil
	}
}

func normalizeBoolean(value string) (string, error) {
	switch strings.ToLower(value) {
	case "true", "t", "y", "yes", "1":
		return "true", nil
	case "false", "f", "n", "no", "0":
		return "false", nil
	}
	return "", errors.Errorf("invalid boolean %q", value)
}

// ParseSeconds parses a duration written as [[HH:]MM:]SS, as a plain number of seconds,
// or as a Go duration such as 1h30m. Fractional seconds are truncated.
func ParseSeconds(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty duration")
	}
	fields := strings.Split(value, ":")
	if len(fields) <= 3 {
		var total float64
		ok := true
		for _, field := range fields {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
				ok = false
				break
			}
			total = total*60 + f
		}
		if ok {
			return int64(total), nil
		}
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.Errorf("invalid duration %q", value)
	}
	return int64(d / time.Second), nil
}
