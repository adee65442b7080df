package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidScope is returned when a task is added under a scope other than
// the builder's own root scope.
var ErrInvalidScope = errors.New("tasks can only be added to root scope")

// InvalidScopeError describes a rejected AddTask call.
// It matches ErrInvalidScope with errors.Is.
type InvalidScopeError struct {
	Workflow string
	Task     string
	// Scope is the name of the offered scope, empty if the scope was nil.
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("workflow %q: task %q rejected for scope %q: %v", e.Workflow, e.Task, e.Scope, ErrInvalidScope)
}

// Unwrap returns ErrInvalidScope.
func (e *InvalidScopeError) Unwrap() error {
	return ErrInvalidScope
}
