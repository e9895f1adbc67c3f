package configuration

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/jobclass/internal/common/config"
	"github.com/armadaproject/jobclass/internal/scheduler/calendar"
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
	"github.com/armadaproject/jobclass/internal/scheduler/resources"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

type Configuration struct {
	// How often the classification cycle should run
	CyclePeriod time.Duration `validate:"required"`
	Http        HttpConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
	Server      ServerConfig
	Queues      []QueueConfig    `validate:"dive"`
	Resources   []ResourceConfig `validate:"dive"`
	Calendar    calendar.Config
	// YAML file holding the jobs to classify each cycle.
	// Re-read every cycle, so edits take effect at the next cycle.
	JobsFile string
	// Maximum number of canonical select statements to memoise. Zero selects a default.
	SelectCacheSize int `validate:"gte=0"`
}

type HttpConfig struct {
	Port int `validate:"required"`
}

type LoggingConfig struct {
	// Log level, e.g. info, debug.
	Level string
	// Either text, json or plain.
	Format string
}

type MetricsConfig struct {
	// If true, no metrics are registered or served.
	Disabled bool
}

type ServerConfig struct {
	// Queue jobs are submitted to when they name none.
	DefaultQueue string `validate:"required"`
	// If true, user, group and project never distinguish jobs, whatever the limits.
	FairshareEnabled bool
	// Resources that distinguish jobs requesting them. Defaults to resources.DefaultLine.
	ResourcesLine []string
	// Server-wide limit attributes, e.g., max_run_res.ncpus: "[u:PBS_GENERIC=8]".
	Limits map[string]string
}

type QueueConfig struct {
	Name     string `validate:"required"`
	Type     schedulerobjects.QueueType
	Priority int
	// Limit attributes set on the queue.
	Limits map[string]string
	// Nodes associated exclusively with the queue.
	Nodes  []string
	Window schedulerobjects.Window
}

type ResourceConfig struct {
	Name string `validate:"required"`
	// One of long, float, size, time, boolean, string, string_array.
	Type      string `validate:"required"`
	HostLevel bool
}

// DecodeHooks returns the decode hooks needed to load a Configuration.
func DecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		config.StringParserHookFunc(schedulerobjects.ParseQueueType),
		config.StringParserHookFunc(schedulerobjects.ParseWindow),
	}
}

// Validate checks the struct tags of c.
func (c Configuration) Validate() error {
	return config.Validate(c)
}

// Scheduling is the configuration in the form consumed by the scheduler.
type Scheduling struct {
	DefaultQueue     string
	FairshareEnabled bool
	ResourcesLine    []string
	ServerLimits     []limits.Limit
	Queues           []*schedulerobjects.Queue
	Registry         *resources.Registry
	Calendar         *calendar.Calendar
}

// QueueLimits returns the limits of every queue keyed by queue name.
func (s *Scheduling) QueueLimits() map[string][]limits.Limit {
	rv := make(map[string][]limits.Limit, len(s.Queues))
	for _, q := range s.Queues {
		rv[q.Name] = q.Limits
	}
	return rv
}

// Parse parses limits, resource definitions and the calendar.
// All problems found are returned together.
func (c Configuration) Parse() (*Scheduling, error) {
	var result *multierror.Error
	rv := &Scheduling{
		DefaultQueue:     c.Server.DefaultQueue,
		FairshareEnabled: c.Server.FairshareEnabled,
		ResourcesLine:    c.Server.ResourcesLine,
	}
	if len(rv.ResourcesLine) == 0 {
		rv.ResourcesLine = slices.Clone(resources.DefaultLine)
	}

	serverLimits, err := limits.ParseAttributes(limits.ScopeServer, "", c.Server.Limits)
	if err != nil {
		result = multierror.Append(result, err)
	}
	rv.ServerLimits = serverLimits

	seen := make(map[string]bool, len(c.Queues))
	for _, qc := range c.Queues {
		if seen[qc.Name] {
			result = multierror.Append(result, errors.Errorf("queue %s configured more than once", qc.Name))
			continue
		}
		seen[qc.Name] = true
		queueLimits, err := limits.ParseAttributes(limits.ScopeQueue, qc.Name, qc.Limits)
		if err != nil {
			result = multierror.Append(result, err)
		}
		rv.Queues = append(rv.Queues, &schedulerobjects.Queue{
			Name:     qc.Name,
			Type:     qc.Type,
			Priority: qc.Priority,
			Limits:   queueLimits,
			Nodes:    qc.Nodes,
			Window:   qc.Window,
		})
	}
	if len(c.Queues) > 0 && !seen[c.Server.DefaultQueue] {
		result = multierror.Append(result, errors.Errorf("default queue %s is not configured", c.Server.DefaultQueue))
	}

	definitions := make([]resources.Definition, 0, len(c.Resources))
	for _, rc := range c.Resources {
		t, err := resources.ParseType(rc.Type)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "resource %s", rc.Name))
			continue
		}
		definitions = append(definitions, resources.Definition{Name: rc.Name, Type: t, HostLevel: rc.HostLevel})
	}
	registry, err := resources.NewRegistry(definitions, c.SelectCacheSize)
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		for _, name := range rv.ResourcesLine {
			if _, ok := registry.Lookup(name); !ok {
				result = multierror.Append(result, errors.Errorf("resource %s on the resources line is not defined", name))
			}
		}
	}
	rv.Registry = registry

	cal, err := calendar.New(c.Calendar)
	if err != nil {
		result = multierror.Append(result, err)
	}
	rv.Calendar = cal

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return rv, nil
}
