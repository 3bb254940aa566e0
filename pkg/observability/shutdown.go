package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type shutdownStep struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs cleanup steps in reverse registration order, so a
// resource opened first is released last
type ShutdownManager struct {
	logger          logrus.FieldLogger
	shutdownTimeout time.Duration

	mu    sync.Mutex
	steps []shutdownStep
	done  bool
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ShutdownManager{
		logger:          logger,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, shutdownStep{name: name, fn: fn})
}

// Shutdown runs every registered step once. A failing step does not stop
// the remaining ones; all failures are returned joined.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	sm.mu.Lock()
	if sm.done {
		sm.mu.Unlock()
		return nil
	}
	sm.done = true
	steps := sm.steps
	sm.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, sm.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached, skipping remaining steps")
			errs = append(errs, fmt.Errorf("shutdown timeout reached before %s", step.name))
			break
		}

		log := sm.logger.WithField("step", step.name)
		log.Info("Executing shutdown step")
		if err := step.fn(ctx); err != nil {
			log.WithError(err).Error("Shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
