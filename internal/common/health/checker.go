package health

import (
	"net/http"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Checker reports whether a component is healthy.
type Checker interface {
	Check() error
}

// StartupCompleteChecker fails until MarkComplete is called.
type StartupCompleteChecker struct {
	complete int32
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	return &StartupCompleteChecker{}
}

func (c *StartupCompleteChecker) MarkComplete() {
	atomic.StoreInt32(&c.complete, 1)
}

func (c *StartupCompleteChecker) Check() error {
	if atomic.LoadInt32(&c.complete) == 1 {
		return nil
	}
	return errors.New("startup is not complete")
}

// MultiChecker is healthy if all its checkers are.
type MultiChecker struct {
	checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{
		checkers: checkers,
	}
}

func (mc *MultiChecker) Add(checker Checker) {
	mc.checkers = append(mc.checkers, checker)
}

func (mc *MultiChecker) Check() error {
	var result *multierror.Error
	for _, checker := range mc.checkers {
		if err := checker.Check(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// SetupHttpMux serves the result of checker on /health.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle("/health", NewHealthCheckHttpHandler(checker))
}

type HealthCheckHttpHandler struct {
	checker Checker
}

func NewHealthCheckHttpHandler(checker Checker) *HealthCheckHttpHandler {
	return &HealthCheckHttpHandler{
		checker: checker,
	}
}

func (h *HealthCheckHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	err := h.checker.Check()
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log.Warnf("Health check failed: %v", err)
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := w.Write([]byte(err.Error())); err != nil {
		log.Errorf("Failed to write health check response: %v", err)
	}
}
