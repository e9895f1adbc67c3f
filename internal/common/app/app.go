package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/armadaproject/jobclass/internal/common/logctx"
)

// CreateContextWithShutdown returns a context that will report done when SIGINT or SIGTERM is received.
// The context logs with parent's logger.
func CreateContextWithShutdown(parent *logctx.Context) *logctx.Context {
	ctx, cancel := logctx.WithCancel(parent)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(signals)
		select {
		case sig := <-signals:
			ctx.Log.Infof("Received %s; shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

