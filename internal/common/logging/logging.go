package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const Stacktrace = "stacktrace"

var formatters = map[string]func() log.Formatter{
	"text": func() log.Formatter { return &log.TextFormatter{ForceColors: true, FullTimestamp: true} },
	"json": func() log.Formatter { return &log.JSONFormatter{} },
	// Bare messages, for command-line output.
	"plain": func() log.Formatter { return &CommandLineFormatter{} },
}

// ConfigureLogging sets up the standard logrus logger to write to stdout at the given level and in the given format.
// An empty level or format selects info and text respectively.
func ConfigureLogging(level, format string) error {
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}
	newFormatter, ok := formatters[strings.ToLower(format)]
	if !ok {
		names := maps.Keys(formatters)
		slices.Sort(names)
		return errors.Errorf("unknown log format %s; valid formats are %v", format, names)
	}
	log.SetLevel(logLevel)
	log.SetFormatter(newFormatter())
	log.SetOutput(os.Stdout)
	return nil
}

// CommandLineFormatter writes only the message of each entry.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStacktrace returns a new logrus.Entry obtained by adding error information and, if available, a stack trace
// as fields to the provided logrus.Entry.
func WithStacktrace(logger *log.Entry, err error) *log.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack returns the innermost errors.StackTrace in the chain of err, which is the one recorded closest to
// where the error originated. If no stack traces are found, it returns nil.
func ExtractStack(err error) errors.StackTrace {
	var stack errors.StackTrace
	for err != nil {
		if tracer, ok := err.(stackTracer); ok {
			stack = tracer.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return stack
}
