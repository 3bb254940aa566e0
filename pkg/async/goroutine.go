package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// PanicError is returned by SafeCall when fn panics
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Task, e.Value)
}

// SafeCall runs fn on the calling goroutine and converts a panic into a
// *PanicError. A positive timeout bounds the context handed to fn; fn is
// expected to honor it, SafeCall does not abandon a running call.
//
// Example:
//
//	err := SafeCall(ctx, 0, "feed.onInit", func(ctx context.Context) error {
//	    return plugin.OnInit(ctx, manager)
//	})
func SafeCall(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) (err error) {
	ctx := parentCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: taskName, Value: r, Stack: debug.Stack()}
		}
	}()

	return fn(ctx)
}

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (when timeout > 0)
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, log, 5*time.Second, "state persistence", func(ctx context.Context) error {
//	    return store.Save(ctx, snapshot)
//	})
func SafeGo(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	go func() {
		err := SafeCall(parentCtx, timeout, taskName, fn)
		if err == nil {
			return
		}

		entry := log.WithField("task", taskName)
		if p, ok := err.(*PanicError); ok {
			entry.WithField("stack", string(p.Stack)).Errorf("Recovered panic: %v", p.Value)
			return
		}
		// Log error but don't crash
		// Caller can decide if this is critical or not
		entry.WithError(err).Warn("Background task failed")
	}()
}
