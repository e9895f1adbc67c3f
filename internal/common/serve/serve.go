package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/armadaproject/jobclass/internal/common/logctx"
)

// How long in-flight requests get to finish once ctx is cancelled.
const shutdownTimeout = 5 * time.Second

// ListenAndServe runs server until ctx is cancelled, then shuts it down gracefully.
// Returns nil on a clean shutdown.
func ListenAndServe(ctx *logctx.Context, server *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		ctx.Log.Infof("Listening on %s", server.Addr)
		errs <- server.ListenAndServe()
	}()
	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		ctx.Log.Infof("Shutting down server on %s", server.Addr)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.WithStack(err)
		}
		return nil
	}
}
