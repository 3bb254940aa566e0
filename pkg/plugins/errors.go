package plugins

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("invalid plugin descriptor")
	ErrDuplicateID        = errors.New("plugin already registered")
	ErrMissingDependency  = errors.New("missing plugin dependency")
	ErrCircularDependency = errors.New("circular plugin dependency")
	ErrPluginInit         = errors.New("plugin initialization failed")
	ErrHookExecution      = errors.New("plugin hook failed")
	ErrDependencyFailed   = errors.New("plugin dependency failed to initialize")
	ErrLifecycleBusy      = errors.New("plugin lifecycle operation already running")
	ErrNotFound           = errors.New("plugin not found")
)

// ValidationError represents a descriptor validation error
type ValidationError struct {
	PluginID string `json:"plugin_id,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.PluginID == "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s: %s", ErrValidation, e.PluginID, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateIDError is returned when a plugin ID is registered twice
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateID, e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// MissingDependencyError names a dependency that was never registered.
// Known lists the registered plugin IDs at the time of the failure.
type MissingDependencyError struct {
	PluginID   string
	Dependency string
	Known      []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: %q requires %q (known plugins: [%s])",
		ErrMissingDependency, e.PluginID, e.Dependency, strings.Join(e.Known, ", "))
}

func (e *MissingDependencyError) Is(target error) bool { return target == ErrMissingDependency }

// CircularDependencyError carries the dependency path that closes a cycle,
// e.g. [a b a]
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCircularDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// InitError wraps the failure of a plugin's OnInit
type InitError struct {
	PluginID string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPluginInit, e.PluginID, e.Err)
}

func (e *InitError) Is(target error) bool { return target == ErrPluginInit }

func (e *InitError) Unwrap() error { return e.Err }

// HookExecutionError wraps the failure of a single hook during ExecuteHook
type HookExecutionError struct {
	PluginID string
	Hook     string
	Err      error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %v", ErrHookExecution, e.PluginID, e.Hook, e.Err)
}

func (e *HookExecutionError) Is(target error) bool { return target == ErrHookExecution }

func (e *HookExecutionError) Unwrap() error { return e.Err }
