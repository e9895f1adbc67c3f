package logctx

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context is a context.Context carrying a contextual logger, so that everything running on behalf of one scheduling
// cycle logs with the same fields.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background creates an empty context with the standard logger. It is analogous to context.Background()
func Background() *Context {
	return New(context.Background(), logrus.NewEntry(logrus.StandardLogger()))
}

// New returns a Context that encapsulates both ctx and log
func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{
		Context: ctx,
		Log:     log,
	}
}

// WithCancel returns a copy of parent with a new Done channel. It is analogous to context.WithCancel()
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return New(c, parent.Log), cancel
}

// WithTimeout returns a copy of parent that is cancelled after timeout. It is analogous to context.WithTimeout()
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return New(c, parent.Log), cancel
}

// WithLogField returns a copy of parent with the supplied key-value added to the logger
func WithLogField(parent *Context, key string, val interface{}) *Context {
	return New(parent.Context, parent.Log.WithField(key, val))
}

// WithLogFields returns a copy of parent with the supplied key-values added to the logger
func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return New(parent.Context, parent.Log.WithFields(fields))
}

// ErrGroup returns a new Error Group and an associated Context derived from ctx.
// It is analogous to errgroup.WithContext(ctx)
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goctx := errgroup.WithContext(ctx)
	return group, New(goctx, ctx.Log)
}
