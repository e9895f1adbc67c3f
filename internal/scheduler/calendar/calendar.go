// Package calendar decides whether an instant falls in primetime or in dedicated time.
//
// Primetime is configured per day of the week as the time of day at which primetime starts and the
// time of day at which non-primetime starts. Either may be "all" or "none" instead of a time.
// Holidays are non-primetime all day. Dedicated time is a list of absolute intervals.
package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	All  = "all"
	None = "none"
	// Applies to Monday through Friday unless a specific day is configured.
	Weekday = "weekday"

	dateLayout    = "2006-01-02"
	minutesPerDay = 24 * 60
)

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// DayConfig holds the raw primetime boundaries of one day.
type DayConfig struct {
	// Time of day primetime starts, as HHMM or HH:MM, or "all" or "none".
	Prime string
	// Time of day non-primetime starts, as HHMM or HH:MM, or "all" or "none".
	NonPrime string
}

type IntervalConfig struct {
	Start time.Time
	End   time.Time
}

// Config is the operator-facing calendar configuration.
type Config struct {
	// IANA name of the time zone in which days and times of day are interpreted. Defaults to UTC.
	Location string
	// Keyed by "weekday", "saturday", "sunday" or a specific day name such as "monday".
	Days map[string]DayConfig
	// Dates in YYYY-MM-DD format.
	Holidays      []string
	DedicatedTime []IntervalConfig
}

type boundaryKind int

const (
	boundaryAt boundaryKind = iota
	boundaryAll
	boundaryNone
)

type boundary struct {
	kind   boundaryKind
	minute int
}

type daySchedule struct {
	prime    boundary
	nonPrime boundary
}

// isPrime reports whether minute-of-day m is in primetime under this schedule.
func (s daySchedule) isPrime(m int) bool {
	switch {
	case s.prime.kind == boundaryAll:
		return true
	case s.prime.kind == boundaryNone:
		return false
	case s.nonPrime.kind == boundaryAll:
		return false
	}
	p := s.prime.minute
	n := minutesPerDay
	if s.nonPrime.kind == boundaryAt {
		n = s.nonPrime.minute
	}
	switch {
	case p < n:
		return m >= p && m < n
	case p > n:
		return m >= p || m < n
	default:
		return false
	}
}

type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Calendar is immutable once created and safe for concurrent use.
type Calendar struct {
	location  *time.Location
	days      map[time.Weekday]daySchedule
	holidays  map[string]bool
	dedicated []Interval
}

// AlwaysPrimetime returns a calendar with no schedule, no holidays and no dedicated time.
func AlwaysPrimetime() *Calendar {
	return &Calendar{
		location: time.UTC,
		days:     map[time.Weekday]daySchedule{},
		holidays: map[string]bool{},
	}
}

// New validates config and returns the calendar it describes.
func New(config Config) (*Calendar, error) {
	var result *multierror.Error
	c := AlwaysPrimetime()

	if config.Location != "" {
		loc, err := time.LoadLocation(config.Location)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid calendar location %s", config.Location))
		} else {
			c.location = loc
		}
	}

	// Specific days take precedence over the weekday entry.
	for name, day := range config.Days {
		if strings.ToLower(name) != Weekday {
			continue
		}
		schedule, err := parseDay(name, day)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for d := time.Monday; d <= time.Friday; d++ {
			c.days[d] = schedule
		}
	}
	for name, day := range config.Days {
		if strings.ToLower(name) == Weekday {
			continue
		}
		weekday, ok := dayNames[strings.ToLower(name)]
		if !ok {
			result = multierror.Append(result, errors.Errorf("unknown calendar day %s", name))
			continue
		}
		schedule, err := parseDay(name, day)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		c.days[weekday] = schedule
	}

	for _, holiday := range config.Holidays {
		date, err := time.Parse(dateLayout, strings.TrimSpace(holiday))
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid holiday %s", holiday))
			continue
		}
		c.holidays[date.Format(dateLayout)] = true
	}

	for i, interval := range config.DedicatedTime {
		if !interval.End.After(interval.Start) {
			result = multierror.Append(result, errors.Errorf("dedicated time interval %d ends at %s, not after its start %s", i, interval.End, interval.Start))
			continue
		}
		c.dedicated = append(c.dedicated, Interval{Start: interval.Start, End: interval.End})
	}
	slices.SortFunc(c.dedicated, func(a, b Interval) bool {
		return a.Start.Before(b.Start)
	})

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsPrimetime reports whether t falls in primetime.
// Days without a configured schedule are primetime all day.
func (c *Calendar) IsPrimetime(t time.Time) bool {
	local := t.In(c.location)
	if c.holidays[local.Format(dateLayout)] {
		return false
	}
	schedule, ok := c.days[local.Weekday()]
	if !ok {
		return true
	}
	return schedule.isPrime(local.Hour()*60 + local.Minute())
}

// InDedicatedTime reports whether t falls in any dedicated time interval.
func (c *Calendar) InDedicatedTime(t time.Time) bool {
	for _, interval := range c.dedicated {
		if interval.Contains(t) {
			return true
		}
	}
	return false
}

// DedicatedTime returns the dedicated time intervals sorted by start time.
func (c *Calendar) DedicatedTime() []Interval {
	return slices.Clone(c.dedicated)
}

func parseDay(name string, day DayConfig) (daySchedule, error) {
	prime, err := parseBoundary(day.Prime)
	if err != nil {
		return daySchedule{}, errors.WithMessagef(err, "invalid prime boundary for %s", name)
	}
	nonPrime, err := parseBoundary(day.NonPrime)
	if err != nil {
		return daySchedule{}, errors.WithMessagef(err, "invalid non-prime boundary for %s", name)
	}
	return daySchedule{prime: prime, nonPrime: nonPrime}, nil
}

func parseBoundary(s string) (boundary, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case All:
		return boundary{kind: boundaryAll}, nil
	case None:
		return boundary{kind: boundaryNone}, nil
	}
	digits := strings.Replace(s, ":", "", 1)
	if len(digits) != 4 {
		return boundary{}, errors.Errorf("time of day %q is not HHMM", s)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil || hours < 0 || hours > 23 {
		return boundary{}, errors.Errorf("time of day %q has invalid hours", s)
	}
	minutes, err := strconv.Atoi(digits[2:])
	if err != nil || minutes < 0 || minutes > 59 {
		return boundary{}, errors.Errorf("time of day %q has invalid minutes", s)
	}
	return boundary{kind: boundaryAt, minute: hours*60 + minutes}, nil
}
